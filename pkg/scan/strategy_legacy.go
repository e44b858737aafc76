package scan

import (
	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/filesystem"
	"github.com/duscan/duscan/pkg/must"
)

// legacyStrategy is the portable, single-threaded correctness oracle. It
// uses only the language-standard directory reader (via pkg/filesystem's
// descriptor-relative primitives, used here purely serially) and is
// reserved for filesystems the Dispatcher doesn't recognize, and for
// regression testing against the optimized strategies.
type legacyStrategy struct{}

// Kind implements Strategy.Kind.
func (legacyStrategy) Kind() StrategyKind {
	return StrategyLegacy
}

// IsEligible implements Strategy.IsEligible. The legacy strategy is always
// eligible; it has no platform dependencies.
func (legacyStrategy) IsEligible(Options) bool {
	return true
}

// Traverse implements Strategy.Traverse.
func (legacyStrategy) Traverse(root string, context *Context) uint64 {
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

	return legacyWalkDirectory(directory, normalizedRoot, "", 0, context)
}

// emitFileRoot handles the degenerate case of a scan root that is itself a
// regular file rather than a directory.
func emitFileRoot(normalizedRoot string, meta *filesystem.Metadata, context *Context) uint64 {
	size := context.SizeOf(meta)
	id, hasID := identityOf(meta)
	if !context.ShouldCountFile(id, hasID) {
		size = 0
	}

	if err := context.EmitEntry(DirectoryEntry{
		Path:      normalizedRoot,
		Depth:     0,
		SizeBytes: size,
	}); err != nil {
		return 0
	}
	context.RegisterFileProgress(size)
	context.FinalizeProgress()
	return size
}

// legacyWalkDirectory recursively processes directory (located at the
// normalized path) and returns the inclusive byte total attributed to it.
// Traversal always continues past max_depth so that ancestor byte totals
// remain accurate; only entry emission is gated by depth, per §8 scenario 2.
func legacyWalkDirectory(directory *filesystem.Directory, path, parentPath string, depth int, context *Context) uint64 {
	if context.Aborted() {
		return 0
	}

	options := context.Options()

	contents, err := directory.ReadContents()
	if err != nil {
		context.RecordError(path, errors.Wrap(err, "unable to read directory contents"))
		context.RegisterDirectoryProgress()
		return 0
	}

	var total uint64
	var fileCount, dirCount uint64

	for _, meta := range contents {
		childPath := join(path, meta.Name)

		switch meta.Mode & filesystem.ModeTypeMask {
		case filesystem.ModeTypeDirectory:
			dirCount++
			total += processLegacyChildDirectory(directory, childPath, path, meta, depth, context)
		case filesystem.ModeTypeFile:
			fileCount++
			total += processLegacyChildFile(childPath, path, meta, depth, context, options)
		case filesystem.ModeTypeSymbolicLink:
			if options.FollowSymlinks {
				context.Logger().Debugf("symlink traversal is not implemented; skipping %s", childPath)
			}
		default:
			context.Logger().Debugf("skipping unsupported entry type at %s", childPath)
		}
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

	if depth == 0 {
		context.FinalizeProgress()
	}

	return total
}

// processLegacyChildDirectory opens and recurses into a child directory,
// honoring the filesystem-boundary policy.
func processLegacyChildDirectory(parent *filesystem.Directory, childPath, parentPath string, meta *filesystem.Metadata, depth int, context *Context) uint64 {
	if context.Aborted() {
		return 0
	}

	options := context.Options()

	if !options.CrossFilesystem {
		if rootDeviceID, ok := context.RootDeviceID(); ok && meta.DeviceID != rootDeviceID {
			context.Logger().Debugf("declining to cross filesystem boundary at %s", childPath)
			return 0
		}
	}

	child, err := parent.OpenDirectory(meta.Name)
	if err != nil {
		context.RecordError(childPath, errors.Wrap(err, "unable to open subdirectory"))
		return 0
	}
	defer must.Close(child, context.Logger())

	return legacyWalkDirectory(child, childPath, parentPath, depth+1, context)
}

// processLegacyChildFile attributes bytes for a single file entry and emits
// it if within the configured depth limit.
func processLegacyChildFile(childPath, parentPath string, meta *filesystem.Metadata, depth int, context *Context, options Options) uint64 {
	if context.Aborted() {
		return 0
	}

	size := context.SizeOf(meta)

	id, hasID := identityOf(meta)
	attributed := size
	if !context.ShouldCountFile(id, hasID) {
		attributed = 0
	}

	if withinDepth(depth+1, options.MaxDepth) {
		if err := context.EmitEntry(DirectoryEntry{
			Path:       childPath,
			ParentPath: parentPath,
			Depth:      uint32(depth + 1),
			SizeBytes:  attributed,
		}); err != nil {
			return 0
		}
	}
	context.RegisterFileProgress(attributed)

	return attributed
}

// withinDepth reports whether depth is within the configured limit. A
// negative maxDepth means unlimited.
func withinDepth(depth, maxDepth int) bool {
	return maxDepth < 0 || depth <= maxDepth
}
