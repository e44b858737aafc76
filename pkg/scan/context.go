package scan

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/filesystem"
	"github.com/duscan/duscan/pkg/logging"
)

// Context is the shared, multi-reader/writer state for one scan. It is
// handed down to the active Strategy and owns every piece of cross-worker
// bookkeeping: the hardlink set, the sink, the error list, the progress
// counters, and the progress throttler. Strategies never construct a Context
// directly; the Dispatcher does.
type Context struct {
	// options is the effective set of scan options.
	options Options
	// logger receives diagnostic output.
	logger *logging.Logger
	// start is the wall-clock time at which the scan began.
	start time.Time

	// rootDeviceID is the device id of the scan root, set exactly once by
	// the first worker to inspect the root.
	rootDeviceID uint64
	// rootDeviceSet guards the single assignment to rootDeviceID.
	rootDeviceSet uint32

	// hardlinkLock protects hardlinkSeen.
	hardlinkLock sync.Mutex
	// hardlinkSeen is the set of FileIds already attributed to a parent
	// under the dedupe policy.
	hardlinkSeen map[FileId]bool
	// hardlinkWarnOnce guards the single debug-level warning emitted when a
	// stable FileId cannot be obtained, so a filesystem that never supports
	// stable FileIds doesn't produce a warning per file.
	hardlinkWarnOnce sync.Once

	// sink is the scan's output consumer.
	sink Sink
	// sinkLock protects calls into sink, since most Sink implementations
	// expect a single writer at a time despite the interface itself
	// tolerating concurrent callers.
	sinkLock sync.Mutex

	// errorLock protects errors.
	errorLock sync.Mutex
	// errors is the ordered list of non-fatal failures recorded so far.
	errors []ErrorItem

	// processedEntries is an atomic, relaxed-ordering counter of emitted
	// entries.
	processedEntries uint64
	// processedBytes is an atomic, relaxed-ordering counter of attributed
	// bytes.
	processedBytes uint64

	// throttler decides when to surface a ProgressSnapshot.
	throttler *progressThrottler
	// progressLock protects progress.
	progressLock sync.Mutex
	// progress is the append-only trace of emitted snapshots.
	progress []ProgressSnapshot

	// strategy is the resolved strategy tag, set once by the Dispatcher
	// before traversal begins.
	strategy uint32

	// fatalLock protects fatalErr.
	fatalLock sync.Mutex
	// fatalErr is the first snapshot-write failure observed during
	// traversal, if any. Strategies consult Aborted to stop doing further
	// work once it is set; the Dispatcher surfaces it via FatalError instead
	// of finishing the sink normally.
	fatalErr error
}

// newContext constructs a Context for a scan beginning now, under the given
// options, sink, and logger.
func newContext(options Options, sink Sink, logger *logging.Logger) *Context {
	now := time.Now()
	return &Context{
		options:      options,
		logger:       logger,
		start:        now,
		hardlinkSeen: make(map[FileId]bool),
		sink:         sink,
		throttler:    newProgressThrottler(options.ProgressInterval, options.ProgressByteTrigger, now),
	}
}

// setStrategy records the strategy that will actually run. It is called once
// by the Dispatcher after strategy resolution.
func (c *Context) setStrategy(kind StrategyKind) {
	atomic.StoreUint32(&c.strategy, uint32(kind))
}

// Strategy returns the strategy tag recorded for this scan.
func (c *Context) Strategy() StrategyKind {
	return StrategyKind(atomic.LoadUint32(&c.strategy))
}

// Options returns the effective scan options.
func (c *Context) Options() Options {
	return c.options
}

// Logger returns the context's diagnostic logger. It is never nil in the
// sense that logging.Logger tolerates nil receivers, so callers may log
// through it unconditionally.
func (c *Context) Logger() *logging.Logger {
	return c.logger
}

// SetRootDeviceID records the scan root's device id on first invocation. Any
// subsequent call is a no-op; readers of RootDeviceID tolerate "not yet set"
// by treating the first writer's value as authoritative, per the
// single-writer-once discipline of §5.
func (c *Context) SetRootDeviceID(deviceID uint64) {
	if atomic.CompareAndSwapUint32(&c.rootDeviceSet, 0, 1) {
		atomic.StoreUint64(&c.rootDeviceID, deviceID)
	}
}

// RootDeviceID returns the scan root's device id, or (0, false) if it has
// not yet been set.
func (c *Context) RootDeviceID() (uint64, bool) {
	if atomic.LoadUint32(&c.rootDeviceSet) == 0 {
		return 0, false
	}
	return atomic.LoadUint64(&c.rootDeviceID), true
}

// ShouldCountFile reports whether the file identified by id should
// contribute its bytes to its parent's total, per the context's hardlink
// policy. Under HardlinkPolicyCount, it always returns true. Under
// HardlinkPolicyDedupe, it returns true iff this is the first observation of
// id during the scan. When id is unavailable (hasID is false), it counts
// pessimistically (returns true) and logs a one-time debug warning.
func (c *Context) ShouldCountFile(id FileId, hasID bool) bool {
	if c.options.HardlinkPolicy == HardlinkPolicyCount {
		return true
	}
	if !hasID {
		c.hardlinkWarnOnce.Do(func() {
			c.logger.Debug("unable to obtain a stable file identity; such files are always counted, so hardlinks among them may be counted more than once")
		})
		return true
	}

	c.hardlinkLock.Lock()
	defer c.hardlinkLock.Unlock()
	if c.hardlinkSeen[id] {
		return false
	}
	c.hardlinkSeen[id] = true
	return true
}

// SizeOf computes the number of bytes to attribute to a file's metadata
// under the context's configured basis.
func (c *Context) SizeOf(meta *filesystem.Metadata) uint64 {
	if c.options.Basis == SizeBasisPhysical {
		return meta.PhysicalSize()
	}
	return meta.Size
}

// RecordError maps a platform error to the taxonomy of §7 and appends it to
// the context's error list.
func (c *Context) RecordError(path string, err error) {
	item := ErrorItem{
		Path:    path,
		Code:    classifyError(err),
		Message: err.Error(),
	}
	c.errorLock.Lock()
	c.errors = append(c.errors, item)
	c.errorLock.Unlock()

	if sinkErr := c.recordErrorInSink(item); sinkErr != nil {
		c.logger.Warnf("unable to record error in sink: %s", sinkErr.Error())
	}
}

// recordErrorInSink forwards an error record to the sink under the sink
// lock.
func (c *Context) recordErrorInSink(item ErrorItem) error {
	c.sinkLock.Lock()
	defer c.sinkLock.Unlock()
	return c.sink.RecordError(item)
}

// EmitEntry hands an entry to the sink and advances the entry counter. A
// failure here is sticky: it is recorded as the scan's fatal error (first
// one wins) so that traversal can abort instead of continuing to walk a tree
// whose snapshot can no longer be written.
func (c *Context) EmitEntry(entry DirectoryEntry) error {
	c.sinkLock.Lock()
	err := c.sink.RecordEntry(entry)
	c.sinkLock.Unlock()
	if err != nil {
		wrapped := errors.Wrap(err, "unable to record entry in sink")
		c.setFatal(wrapped)
		return wrapped
	}

	atomic.AddUint64(&c.processedEntries, 1)
	return nil
}

// setFatal records err as the scan's fatal error if one hasn't already been
// recorded.
func (c *Context) setFatal(err error) {
	c.fatalLock.Lock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
	c.fatalLock.Unlock()
}

// Aborted reports whether a fatal snapshot-write failure has already been
// recorded, so traversal code can skip further work once it sees one.
func (c *Context) Aborted() bool {
	c.fatalLock.Lock()
	defer c.fatalLock.Unlock()
	return c.fatalErr != nil
}

// FatalError returns the first fatal snapshot-write failure recorded during
// traversal, or nil if the scan never hit one.
func (c *Context) FatalError() error {
	c.fatalLock.Lock()
	defer c.fatalLock.Unlock()
	return c.fatalErr
}

// RegisterFileProgress advances the byte counter by the given attributed
// byte count and considers emitting a ProgressSnapshot.
func (c *Context) RegisterFileProgress(bytes uint64) {
	atomic.AddUint64(&c.processedBytes, bytes)
	c.considerProgress()
}

// RegisterDirectoryProgress considers emitting a ProgressSnapshot after a
// directory has been finalized. It does not itself advance either counter,
// since a directory's own bytes are zero and its children already advanced
// the counters when they were processed.
func (c *Context) RegisterDirectoryProgress() {
	c.considerProgress()
}

// considerProgress reads the current counters and asks the throttler whether
// enough time or bytes have elapsed to justify a new snapshot.
func (c *Context) considerProgress() {
	entries := atomic.LoadUint64(&c.processedEntries)
	bytes := atomic.LoadUint64(&c.processedBytes)

	if snapshot, ok := c.throttler.consider(time.Now(), entries, bytes); ok {
		c.progressLock.Lock()
		c.progress = append(c.progress, snapshot)
		c.progressLock.Unlock()
	}
}

// FinalizeProgress forces a terminal ProgressSnapshot with
// EstimatedCompletionRatio set to 1.0 and appends it to the progress trace.
func (c *Context) FinalizeProgress() {
	entries := atomic.LoadUint64(&c.processedEntries)
	bytes := atomic.LoadUint64(&c.processedBytes)
	snapshot := c.throttler.forceEmit(time.Now(), entries, bytes)

	c.progressLock.Lock()
	c.progress = append(c.progress, snapshot)
	c.progressLock.Unlock()
}

// finish decomposes the context into its final results: sink finalization,
// the progress trace, and the error list. The resolved strategy is read
// separately through Strategy.
func (c *Context) finish(meta SnapshotMeta) (SinkFinish, []ProgressSnapshot, []ErrorItem, error) {
	c.sinkLock.Lock()
	if err := c.sink.SetMetadata(meta); err != nil {
		c.sinkLock.Unlock()
		return SinkFinish{}, nil, nil, errors.Wrap(err, "unable to set sink metadata")
	}
	finish, err := c.sink.Finish()
	c.sinkLock.Unlock()
	if err != nil {
		return SinkFinish{}, nil, nil, errors.Wrap(err, "unable to finish sink")
	}

	c.progressLock.Lock()
	progress := c.progress
	c.progressLock.Unlock()

	c.errorLock.Lock()
	errs := c.errors
	c.errorLock.Unlock()

	return finish, progress, errs, nil
}
