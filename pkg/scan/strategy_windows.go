//go:build windows

package scan

import (
	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/filesystem"
	"github.com/duscan/duscan/pkg/must"
)

// windowsStrategy is the Windows-optimized traversal backend. It relies on
// Directory.ReadContents' single FindFirstFile/FindNextFile sweep, which
// returns metadata for every entry in one pass with no secondary per-entry
// query, and fans subdirectory recursion out across the process-wide pool.
type windowsStrategy struct{}

// Kind implements Strategy.Kind.
func (windowsStrategy) Kind() StrategyKind {
	return StrategyWindows
}

// IsEligible implements Strategy.IsEligible. The Windows-optimized strategy
// is eligible on every build of this file, which is only compiled on
// Windows.
func (windowsStrategy) IsEligible(Options) bool {
	return true
}

// Traverse implements Strategy.Traverse.
func (windowsStrategy) Traverse(root string, context *Context) uint64 {
	object, meta, err := filesystem.Open(root, false)
	if err != nil {
		context.RecordError(root, errors.Wrap(err, "unable to open scan root"))
		return 0
	}
	defer must.Close(object, context.Logger())

	context.SetRootDeviceID(meta.DeviceID)
	normalizedRoot := toSlash(root)

	directory, isDirectory := object.(*filesystem.Directory)
	if !isDirectory {
		return emitFileRoot(normalizedRoot, meta, context)
	}

	total := windowsWalkDirectory(directory, normalizedRoot, "", 0, context)
	context.FinalizeProgress()
	return total
}

// windowsWalkDirectory mirrors legacyWalkDirectory's accounting and emission
// rules exactly, but uses a single enumeration sweep per directory and
// recurses into subdirectories through the shared pool.
func windowsWalkDirectory(directory *filesystem.Directory, path, parentPath string, depth int, context *Context) uint64 {
	if context.Aborted() {
		return 0
	}

	options := context.Options()

	contents, err := directory.ReadContents()
	if err != nil {
		context.RecordError(path, errors.Wrap(err, "unable to enumerate directory contents"))
		context.RegisterDirectoryProgress()
		return 0
	}

	var fileTotal uint64
	var fileCount, dirCount uint64
	var directoryMetas []*filesystem.Metadata

	for _, meta := range contents {
		switch meta.Mode & filesystem.ModeTypeMask {
		case filesystem.ModeTypeDirectory:
			dirCount++
			directoryMetas = append(directoryMetas, meta)
		case filesystem.ModeTypeFile:
			fileCount++
			fileTotal += processLegacyChildFile(join(path, meta.Name), path, meta, depth, context, options)
		case filesystem.ModeTypeSymbolicLink:
			if options.FollowSymlinks {
				context.Logger().Debugf("symlink traversal is not implemented; skipping %s", join(path, meta.Name))
			}
		default:
			context.Logger().Debugf("skipping unsupported entry type at %s", join(path, meta.Name))
		}
	}

	directoryTotals := make([]uint64, len(directoryMetas))
	tasks := make([]func(), len(directoryMetas))
	for i, meta := range directoryMetas {
		i, meta := i, meta
		childPath := join(path, meta.Name)
		tasks[i] = func() {
			directoryTotals[i] = processWindowsChildDirectory(directory, childPath, path, meta, depth, context)
		}
	}
	globalPool.fork(tasks)

	total := fileTotal
	for _, t := range directoryTotals {
		total += t
	}

	if withinDepth(depth, options.MaxDepth) {
		if err := context.EmitEntry(DirectoryEntry{
			Path:        path,
			ParentPath:  parentPath,
			Depth:       uint32(depth),
			SizeBytes:   total,
			FileCount:   fileCount,
			DirCount:    dirCount,
			IsDirectory: true,
		}); err != nil {
			return 0
		}
	}
	context.RegisterDirectoryProgress()

	return total
}

// processWindowsChildDirectory opens and recurses into a child directory,
// honoring the filesystem-boundary policy, from within a pool task.
//
// Unlike identityOf's general caveat, device identity is unavailable for
// entries sourced from FindFirstFile. When that's the case and a boundary
// check is actually required, filesystem.DeviceID resolves the child's
// volume serial number directly (at the cost of a second open) rather than
// skipping the check outright.
func processWindowsChildDirectory(parent *filesystem.Directory, childPath, parentPath string, meta *filesystem.Metadata, depth int, context *Context) uint64 {
	if context.Aborted() {
		return 0
	}

	options := context.Options()

	if !options.CrossFilesystem {
		if rootDeviceID, ok := context.RootDeviceID(); ok {
			deviceID := meta.DeviceID
			if deviceID == 0 {
				if resolved, err := filesystem.DeviceID(childPath); err == nil {
					deviceID = resolved
				}
			}
			if deviceID != 0 && deviceID != rootDeviceID {
				context.Logger().Debugf("declining to cross filesystem boundary at %s", childPath)
				return 0
			}
		}
	}

	child, err := parent.OpenDirectory(meta.Name)
	if err != nil {
		context.RecordError(childPath, errors.Wrap(err, "unable to open subdirectory"))
		return 0
	}
	defer must.Close(child, context.Logger())

	return windowsWalkDirectory(child, childPath, parentPath, depth+1, context)
}
