package filesystem

import (
	"github.com/pkg/errors"

	"golang.org/x/sys/windows"
)

// DeviceID returns the volume serial number of the volume on which path
// resides. It is used to detect filesystem boundary crossings during
// traversal, mirroring the role that st_dev plays on POSIX systems.
func DeviceID(path string) (uint64, error) {
	// Convert the path to UTF-16.
	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, errors.Wrap(err, "unable to convert path to UTF-16")
	}

	// Open the path without requesting any particular access, just enough to
	// query metadata. FILE_FLAG_BACKUP_SEMANTICS is required to open
	// directories.
	handle, err := windows.CreateFile(
		path16,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return 0, errors.Wrap(err, "unable to open path")
	}
	defer windows.CloseHandle(handle)

	// Query metadata.
	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(handle, &info); err != nil {
		return 0, errors.Wrap(err, "unable to query file information")
	}

	// Success.
	return uint64(info.VolumeSerialNumber), nil
}
