package scan

import (
	"github.com/duscan/duscan/pkg/filesystem"
)

// identityOf extracts a FileId from filesystem metadata, reporting whether a
// stable identity could be determined. Metadata sourced from a full stat
// call (POSIX, or Windows' per-handle query) always carries a usable
// identity; metadata sourced from a large-fetch enumeration API that doesn't
// populate device/file indices (the Windows-optimized strategy's
// FindFirstFile path) does not.
func identityOf(meta *filesystem.Metadata) (FileId, bool) {
	if meta.DeviceID == 0 && meta.FileID == 0 {
		return FileId{}, false
	}
	return FileId{Device: meta.DeviceID, Inode: meta.FileID}, true
}
