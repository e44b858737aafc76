package filesystem

import (
	"github.com/pkg/errors"

	"golang.org/x/sys/windows"
)

// QueryFormatByPath queries the filesystem format for the specified path.
func QueryFormatByPath(path string) (Format, error) {
	// GetVolumeInformation requires a root path (e.g. "C:\"), so resolve the
	// volume name for the given path first.
	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return FormatUnknown, errors.Wrap(err, "unable to convert path to UTF-16")
	}
	volume := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumePathName(path16, &volume[0], uint32(len(volume))); err != nil {
		return FormatUnknown, errors.Wrap(err, "unable to determine volume path")
	}

	// Query the filesystem type name for the volume.
	fsName := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumeInformation(
		&volume[0],
		nil, 0,
		nil,
		nil,
		nil,
		&fsName[0], uint32(len(fsName)),
	); err != nil {
		return FormatUnknown, errors.Wrap(err, "unable to query volume information")
	}

	// Classify the filesystem.
	switch windows.UTF16ToString(fsName) {
	case "NTFS":
		return FormatNTFS, nil
	default:
		return FormatUnknown, nil
	}
}

// QueryFormat queries the filesystem format for the specified directory.
// There is no handle-relative equivalent of GetVolumeInformation readily
// available, so on Windows this always returns FormatUnknown and an error;
// QueryFormatByPath performs the path-based classification.
func QueryFormat(_ *Directory) (Format, error) {
	return FormatUnknown, errors.New("handle-relative format queries unsupported on Windows")
}
