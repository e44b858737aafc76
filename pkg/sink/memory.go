package sink

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/scan"
)

// MemorySink is an in-memory Sink implementation. It keys entries by path so
// that a re-emission of the same path overwrites the prior record
// (last-writer-wins), and produces entries sorted by path on Finish.
type MemorySink struct {
	lock sync.Mutex

	entries     map[string]scan.DirectoryEntry
	errors      []scan.ErrorItem
	metadata    scan.SnapshotMeta
	metadataSet bool
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		entries: make(map[string]scan.DirectoryEntry),
	}
}

// RecordEntry implements scan.Sink.RecordEntry.
func (s *MemorySink) RecordEntry(entry scan.DirectoryEntry) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.entries[entry.Path] = entry
	return nil
}

// RecordError implements scan.Sink.RecordError.
func (s *MemorySink) RecordError(item scan.ErrorItem) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.errors = append(s.errors, item)
	return nil
}

// SetMetadata implements scan.Sink.SetMetadata.
func (s *MemorySink) SetMetadata(meta scan.SnapshotMeta) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.metadataSet {
		return errors.New("metadata already set")
	}
	s.metadata = meta
	s.metadataSet = true
	return nil
}

// Finish implements scan.Sink.Finish.
func (s *MemorySink) Finish() (scan.SinkFinish, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.metadataSet {
		return scan.SinkFinish{}, errors.New("set_metadata was never called")
	}

	entries := make([]scan.DirectoryEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	errorsCopy := make([]scan.ErrorItem, len(s.errors))
	copy(errorsCopy, s.errors)

	return scan.SinkFinish{
		Entries:    entries,
		Errors:     errorsCopy,
		EntryCount: uint64(len(entries)),
	}, nil
}

// Metadata returns the metadata captured by SetMetadata, for callers that
// want to inspect it before or instead of calling Finish.
func (s *MemorySink) Metadata() (scan.SnapshotMeta, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.metadata, s.metadataSet
}
