package filesystem

import (
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"golang.org/x/sys/windows"

	osvendor "github.com/duscan/duscan/pkg/filesystem/third_party/os"
)

// Directory represents a directory on disk. Unlike the POSIX implementation,
// Windows has no descriptor-relative ("at") family of calls, so this
// implementation tracks the directory by its resolved path and relies on
// FindFirstFile/FindNextFile for efficient, single-pass content enumeration
// that returns metadata for every entry without a separate per-entry query.
type Directory struct {
	// handle is the open handle backing the directory, used to keep the
	// directory pinned open (and to detect deletion/rename races) for the
	// lifetime of the Directory value.
	handle windows.Handle
	// file is an os.File wrapping a path-based handle to the directory. It
	// exists for parity with the POSIX implementation and is closed along
	// with the directory.
	file *os.File
	// path is the resolved path of the directory. It is required since
	// Windows has no efficient handle-relative open primitive.
	path string
}

// Close closes the directory.
func (d *Directory) Close() error {
	windows.CloseHandle(d.handle)
	return d.file.Close()
}

// OpenDirectory opens the subdirectory within the directory specified by
// name.
func (d *Directory) OpenDirectory(name string) (*Directory, error) {
	if err := ensureValidName(name); err != nil {
		return nil, err
	}

	childPath := filepath.Join(d.path, name)
	childPath = osvendor.FixLongPath(childPath)
	path16, err := windows.UTF16PtrFromString(childPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert path to UTF-16")
	}

	handle, err := windows.CreateFile(
		path16,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open directory")
	}

	metadata, err := queryHandleMetadata(name, handle)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, errors.Wrap(err, "unable to query directory metadata")
	}
	if metadata.Mode&ModeTypeDirectory == 0 {
		windows.CloseHandle(handle)
		return nil, ErrUnsupportedOpenType
	}

	file, err := os.Open(childPath)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, errors.Wrap(err, "unable to open directory file object")
	}

	return &Directory{
		handle: handle,
		file:   file,
		path:   childPath,
	}, nil
}

// ensureValidName verifies that the provided name does not reference the
// current directory, the parent directory, or contain a path separator
// character.
func ensureValidName(name string) error {
	if name == "." {
		return errors.New("name is directory reference")
	} else if name == ".." {
		return errors.New("name is parent directory reference")
	}
	for i := 0; i < len(name); i++ {
		if os.IsPathSeparator(name[i]) {
			return errors.New("path separator appears in name")
		}
	}
	return nil
}

// ReadContentNames queries the directory contents and returns their base
// names. It does not return "." or ".." entries.
func (d *Directory) ReadContentNames() ([]string, error) {
	entries, err := d.readFindData()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	return names, nil
}

// findEntry pairs a WIN32_FIND_DATA-derived name with its metadata, avoiding
// a second round trip to the filesystem for each directory entry.
type findEntry struct {
	name     string
	metadata *Metadata
}

// readFindData performs a single FindFirstFile/FindNextFile pass over the
// directory, fetching names and metadata for every entry in one sweep. This
// is the large-fetch enumeration strategy that makes Windows traversal
// competitive with the POSIX descriptor-relative approach.
func (d *Directory) readFindData() ([]findEntry, error) {
	searchPath := filepath.Join(d.path, "*")
	searchPath16, err := windows.UTF16PtrFromString(osvendor.FixLongPath(searchPath))
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert search path to UTF-16")
	}

	var data windows.Win32finddata
	handle, err := windows.FindFirstFile(searchPath16, &data)
	if err != nil {
		if err == windows.ERROR_FILE_NOT_FOUND {
			return nil, nil
		}
		return nil, errors.Wrap(err, "unable to initiate directory enumeration")
	}
	defer windows.FindClose(handle)

	var results []findEntry
	for {
		name := windows.UTF16ToString(data.FileName[:])
		if name != "." && name != ".." {
			results = append(results, findEntry{
				name:     name,
				metadata: metadataFromFindData(name, &data),
			})
		}

		if err := windows.FindNextFile(handle, &data); err != nil {
			if err == syscall.ERROR_NO_MORE_FILES {
				break
			}
			return nil, errors.Wrap(err, "unable to continue directory enumeration")
		}
	}

	return results, nil
}

// metadataFromFindData converts a WIN32_FIND_DATA record into Metadata
// without any additional filesystem queries. It follows the same mode and
// size computation logic as queryHandleMetadata for consistency.
func metadataFromFindData(name string, data *windows.Win32finddata) *Metadata {
	mode := Mode(0666)
	if data.FileAttributes&windows.FILE_ATTRIBUTE_READONLY != 0 {
		mode = Mode(0444)
	}
	isSymlink := data.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 &&
		(data.Reserved0 == windows.IO_REPARSE_TAG_SYMLINK || data.Reserved0 == windows.IO_REPARSE_TAG_MOUNT_POINT)
	if isSymlink {
		mode |= ModeTypeSymbolicLink
	} else if data.FileAttributes&windows.FILE_ATTRIBUTE_DIRECTORY != 0 {
		mode |= ModeTypeDirectory | 0111
	}

	size := uint64(data.FileSizeHigh)<<32 + uint64(data.FileSizeLow)

	return &Metadata{
		Name:             name,
		Mode:             mode,
		Size:             size,
		BlocksAllocated:  size / 512,
		ModificationTime: time.Unix(0, data.LastWriteTime.Nanoseconds()),
	}
}

// ReadContentMetadata reads metadata for the content within the directory
// specified by name.
func (d *Directory) ReadContentMetadata(name string) (*Metadata, error) {
	entries, err := d.readFindData()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.name == name {
			return e.metadata, nil
		}
	}
	return nil, os.ErrNotExist
}

// ReadContents queries the directory contents and their associated metadata
// in a single enumeration pass.
func (d *Directory) ReadContents() ([]*Metadata, error) {
	entries, err := d.readFindData()
	if err != nil {
		return nil, errors.Wrap(err, "unable to enumerate directory contents")
	}
	results := make([]*Metadata, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.metadata)
	}
	return results, nil
}
