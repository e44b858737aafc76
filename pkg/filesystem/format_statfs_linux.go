package filesystem

import (
	"golang.org/x/sys/unix"
)

// formatFromStatfs extracts the filesystem format from Linux filesystem
// metadata.
func formatFromStatfs(metadata *unix.Statfs_t) Format {
	switch metadata.Type {
	case unix.EXT4_SUPER_MAGIC:
		return FormatEXT
	case unix.NFS_SUPER_MAGIC:
		return FormatNFS
	default:
		return FormatUnknown
	}
}
