package scan

// SinkFinish is returned by Sink.Finish.
type SinkFinish struct {
	// Entries holds the materialized entries for sinks that keep them in
	// memory. Streaming sinks leave this empty since entries were already
	// drained to disk.
	Entries []DirectoryEntry
	// Errors holds the materialized errors, in the order they were
	// recorded, for sinks that keep them in memory. Streaming sinks leave
	// this empty as well.
	Errors []ErrorItem
	// EntryCount is the authoritative total entry count, valid regardless
	// of whether Entries was populated.
	EntryCount uint64
}

// Sink is the contract exposed to the TraversalContext for draining scan
// output. Implementations must be safe for concurrent use: RecordEntry and
// RecordError may be called from any traversal worker.
type Sink interface {
	// RecordEntry appends an entry. It is buffered internally according to
	// the implementation's own policy.
	RecordEntry(entry DirectoryEntry) error
	// RecordError appends an error.
	RecordError(item ErrorItem) error
	// SetMetadata captures scan-wide metadata. It must be called exactly
	// once, before Finish.
	SetMetadata(meta SnapshotMeta) error
	// Finish flushes any buffered state and returns the sink's final
	// contents.
	Finish() (SinkFinish, error)
}
