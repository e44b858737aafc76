//go:build !windows

package scan

import (
	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/filesystem"
	"github.com/duscan/duscan/pkg/must"
)

// posixStrategy is the POSIX-optimized traversal backend. It replaces the
// legacy strategy's serial per-entry metadata queries with a parallel batch
// query (Directory.ReadContentMetadataParallel) and fans subdirectory
// recursion out across the process-wide pool, while still using the same
// descriptor-relative open primitives as the legacy strategy so that neither
// symlink traversal nor filesystem-boundary crossing is possible by accident.
type posixStrategy struct{}

// Kind implements Strategy.Kind.
func (posixStrategy) Kind() StrategyKind {
	return StrategyPOSIX
}

// IsEligible implements Strategy.IsEligible. The POSIX-optimized strategy is
// eligible on every non-Windows build; it has no further platform
// requirements beyond what's already required to build this file.
func (posixStrategy) IsEligible(Options) bool {
	return true
}

// Traverse implements Strategy.Traverse.
func (posixStrategy) Traverse(root string, context *Context) uint64 {
	object, meta, err := filesystem.Open(root, false)
	if err != nil {
		context.RecordError(root, errors.Wrap(err, "unable to open scan root"))
		return 0
	}

	context.SetRootDeviceID(meta.DeviceID)
	normalizedRoot := toSlash(root)

	directory, isDirectory := object.(*filesystem.Directory)
	if !isDirectory {
		defer must.Close(object, context.Logger())
		return emitFileRoot(normalizedRoot, meta, context)
	}

	total := posixWalkDirectory(directory, normalizedRoot, "", 0, context)
	context.FinalizeProgress()
	return total
}

// posixOpenChild pairs an already-opened child directory handle with its
// normalized path, so it can be recursed into after the parent that opened
// it has released its own handle.
type posixOpenChild struct {
	handle *filesystem.Directory
	path   string
}

// posixWalkDirectory mirrors legacyWalkDirectory's accounting and emission
// rules exactly, but queries child metadata in a batch and recurses into
// subdirectories through the shared pool instead of strictly serially.
//
// posixWalkDirectory takes ownership of directory: every return path closes
// it. Every immediate child directory is opened relative to directory's own
// descriptor before directory is released, so the fd is held only for as
// long as it takes to enumerate and open its children, not for the duration
// of their entire subtree traversal.
func posixWalkDirectory(directory *filesystem.Directory, path, parentPath string, depth int, context *Context) uint64 {
	if context.Aborted() {
		must.Close(directory, context.Logger())
		return 0
	}

	options := context.Options()

	names, err := directory.ReadContentNames()
	if err != nil {
		context.RecordError(path, errors.Wrap(err, "unable to read directory content names"))
		context.RegisterDirectoryProgress()
		must.Close(directory, context.Logger())
		return 0
	}

	contents, err := directory.ReadContentMetadataParallel(names)
	if err != nil {
		context.RecordError(path, errors.Wrap(err, "unable to query directory content metadata"))
		context.RegisterDirectoryProgress()
		must.Close(directory, context.Logger())
		return 0
	}

	var fileTotal uint64
	var fileCount, dirCount uint64
	var openChildren []posixOpenChild

	for _, meta := range contents {
		switch meta.Mode & filesystem.ModeTypeMask {
		case filesystem.ModeTypeDirectory:
			dirCount++
			childPath := join(path, meta.Name)

			if !options.CrossFilesystem {
				if rootDeviceID, ok := context.RootDeviceID(); ok && meta.DeviceID != rootDeviceID {
					context.Logger().Debugf("declining to cross filesystem boundary at %s", childPath)
					continue
				}
			}

			child, err := directory.OpenDirectory(meta.Name)
			if err != nil {
				context.RecordError(childPath, errors.Wrap(err, "unable to open subdirectory"))
				continue
			}
			openChildren = append(openChildren, posixOpenChild{handle: child, path: childPath})
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

	must.Close(directory, context.Logger())

	directoryTotals := make([]uint64, len(openChildren))
	tasks := make([]func(), len(openChildren))
	for i, oc := range openChildren {
		i, oc := i, oc
		tasks[i] = func() {
			directoryTotals[i] = posixWalkDirectory(oc.handle, oc.path, path, depth+1, context)
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
