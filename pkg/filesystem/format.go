package filesystem

// Format represents a coarse classification of filesystem implementation.
// It is used to select an appropriate traversal Strategy and to report
// filesystem kind in scan metadata.
type Format uint8

const (
	// FormatUnknown represents a filesystem format that could not be
	// classified or that isn't recognized.
	FormatUnknown Format = iota
	// FormatEXT represents an EXT2, EXT3, or EXT4 filesystem format.
	FormatEXT
	// FormatNFS represents an NFS filesystem format.
	FormatNFS
	// FormatAPFS represents an APFS filesystem format.
	FormatAPFS
	// FormatHFS represents an HFS (or variant thereof) filesystem format.
	FormatHFS
	// FormatNTFS represents an NTFS filesystem format.
	FormatNTFS
)

// String returns a human-readable representation of the format.
func (f Format) String() string {
	switch f {
	case FormatEXT:
		return "ext"
	case FormatNFS:
		return "nfs"
	case FormatAPFS:
		return "apfs"
	case FormatHFS:
		return "hfs"
	case FormatNTFS:
		return "ntfs"
	default:
		return "unknown"
	}
}
