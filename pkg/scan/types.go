package scan

import (
	"time"

	"github.com/duscan/duscan/pkg/logging"
)

// SizeBasis specifies the policy used to attribute bytes to a file.
type SizeBasis uint8

const (
	// SizeBasisLogical attributes a file's nominal length, as reported by
	// stat, to the file.
	SizeBasisLogical SizeBasis = iota
	// SizeBasisPhysical attributes a file's on-disk footprint, 512 times
	// filesystem.Metadata.BlocksAllocated, to the file: allocated blocks on
	// POSIX, and on Windows the allocation size or, for enumeration-sourced
	// metadata, the nominal size rounded down to a multiple of 512.
	SizeBasisPhysical
)

// String returns a human-readable representation of the size basis.
func (b SizeBasis) String() string {
	switch b {
	case SizeBasisPhysical:
		return "physical"
	default:
		return "logical"
	}
}

// HardlinkPolicy specifies how hardlinked files are counted.
type HardlinkPolicy uint8

const (
	// HardlinkPolicyDedupe counts each hardlinked file at most once per
	// scan, keyed by FileId.
	HardlinkPolicyDedupe HardlinkPolicy = iota
	// HardlinkPolicyCount counts every hardlink independently.
	HardlinkPolicyCount
)

// String returns a human-readable representation of the hardlink policy.
func (p HardlinkPolicy) String() string {
	switch p {
	case HardlinkPolicyCount:
		return "count"
	default:
		return "dedupe"
	}
}

// StrategyKind identifies a traversal strategy implementation.
type StrategyKind uint8

const (
	// StrategyLegacy is the portable, single-threaded correctness oracle.
	StrategyLegacy StrategyKind = iota
	// StrategyPOSIX is the fd-relative, work-stealing POSIX strategy.
	StrategyPOSIX
	// StrategyWindows is the large-fetch, work-stealing Windows strategy.
	StrategyWindows
)

// String returns a human-readable representation of the strategy kind.
func (k StrategyKind) String() string {
	switch k {
	case StrategyPOSIX:
		return "posix"
	case StrategyWindows:
		return "windows"
	default:
		return "legacy"
	}
}

// FileId is the (device, inode) identity pair used to recognize hardlinks.
type FileId struct {
	Device uint64
	Inode  uint64
}

// DirectoryEntry is one record per file or directory discovered during a
// scan.
type DirectoryEntry struct {
	// Path is the normalized absolute path of the entry, using forward
	// slashes as separators on every platform.
	Path string
	// ParentPath is the normalized path of the immediate parent directory.
	// It is empty only for the scan root.
	ParentPath string
	// Depth is 0 at the scan root and increases by one per nesting level.
	Depth uint32
	// SizeBytes is the number of bytes attributed to this node under the
	// configured basis. For a directory this is the inclusive subtree
	// total.
	SizeBytes uint64
	// FileCount is, for a directory, the count of immediate child files;
	// for a file entry, always zero.
	FileCount uint64
	// DirCount is, for a directory, the count of immediate child
	// directories; for a file entry, always zero.
	DirCount uint64
	// IsDirectory indicates whether this entry represents a directory. It
	// is not part of the persisted column schema (see pkg/sink) and is
	// only meaningful on entries still in the hands of the strategy that
	// produced them, e.g. for a Sink that inspects entries as they're
	// emitted; a snapshot read back via ReadSnapshot never sets it.
	IsDirectory bool
}

// ErrorCode classifies an ErrorItem by platform failure category.
type ErrorCode uint8

const (
	// ErrorCodeIO is the catch-all for platform errors that aren't better
	// classified as ENOENT or EACCES.
	ErrorCodeIO ErrorCode = iota
	// ErrorCodeENOENT indicates that an entry vanished between enumeration
	// and stat.
	ErrorCodeENOENT
	// ErrorCodeEACCES indicates that a directory or file was unreadable due
	// to permissions.
	ErrorCodeEACCES
)

// String returns a human-readable representation of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeENOENT:
		return "ENOENT"
	case ErrorCodeEACCES:
		return "EACCES"
	default:
		return "IO"
	}
}

// ErrorItem is one record per failure that did not abort the scan.
type ErrorItem struct {
	// Path is the path at which the failure occurred.
	Path string
	// Code classifies the failure.
	Code ErrorCode
	// Message is a human-readable description of the failure.
	Message string
}

// ProgressSnapshot is a periodic observation point emitted during a scan.
type ProgressSnapshot struct {
	// TimestampMs is the number of milliseconds elapsed since the scan
	// started.
	TimestampMs int64
	// ProcessedEntries is the total number of entries emitted so far.
	ProcessedEntries uint64
	// ProcessedBytes is the total number of bytes attributed so far.
	ProcessedBytes uint64
	// EstimatedCompletionRatio is set to 1.0 only on the terminal snapshot
	// produced by ForceEmit; it is otherwise unset (represented as -1).
	EstimatedCompletionRatio float64
	// RecentThroughputBytesPerSec is the throughput observed since the
	// previous snapshot, or -1 if it could not be computed because the
	// elapsed time was zero.
	RecentThroughputBytesPerSec float64
}

// SnapshotMeta is scan-wide metadata written once, just before a scan
// finishes.
type SnapshotMeta struct {
	// ScanRoot is the normalized path at which the scan was rooted.
	ScanRoot string
	// StartedAt is the time at which the scan began.
	StartedAt time.Time
	// FinishedAt is the time at which the scan completed.
	FinishedAt time.Time
	// Basis is the size attribution policy used.
	Basis SizeBasis
	// HardlinkPolicy is the hardlink counting policy used.
	HardlinkPolicy HardlinkPolicy
	// Strategy is the traversal strategy that actually ran (after any
	// demotion).
	Strategy StrategyKind
	// Excludes is reserved for future exclusion-pattern support; it is
	// always empty in this implementation.
	Excludes []string
}

// Options configures a scan.
type Options struct {
	// Basis selects the size attribution policy.
	Basis SizeBasis
	// HardlinkPolicy selects the hardlink counting policy.
	HardlinkPolicy HardlinkPolicy
	// StrategyOverride, if non-nil, forces the dispatcher to prefer a
	// specific strategy rather than classifying the root's filesystem.
	StrategyOverride *StrategyKind
	// MaxDepth limits emission to entries at depth <= MaxDepth. A negative
	// value means unlimited.
	MaxDepth int
	// CrossFilesystem, if false (the default), causes the scan to refuse to
	// descend into any child whose device id differs from the root's.
	CrossFilesystem bool
	// FollowSymlinks defaults to false. Every strategy skips symbolic links
	// whatever its value; when it is true, each skipped link is logged at
	// debug level. Links are never resolved.
	FollowSymlinks bool
	// ProgressInterval is the minimum wall-time between progress snapshots.
	// A zero value selects the throttler's default.
	ProgressInterval time.Duration
	// ProgressByteTrigger is the minimum byte delta, combined with the half
	// interval, that can also trigger a progress snapshot. A zero value
	// selects the throttler's default.
	ProgressByteTrigger uint64
	// Logger receives diagnostic output. A nil logger discards everything.
	Logger *logging.Logger
}

// Summary is returned once a scan completes.
type Summary struct {
	// Root is the normalized scan root path.
	Root string
	// Strategy is the strategy that actually ran.
	Strategy StrategyKind
	// Progress is the full trace of progress snapshots emitted during the
	// scan, in emission order, terminated by the forced completion
	// snapshot.
	Progress []ProgressSnapshot
	// Errors is the list of non-fatal errors encountered during the scan.
	Errors []ErrorItem
	// EntryCount is the total number of entries emitted.
	EntryCount uint64
	// RootSizeBytes is the total number of bytes attributed to the root.
	RootSizeBytes uint64
}
