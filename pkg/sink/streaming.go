package sink

import (
	"bufio"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/scan"
)

const (
	// defaultFlushCapacity is the default number of buffered entries before
	// a synchronous flush, per §4.5.
	defaultFlushCapacity = 4096
)

// StreamingColumnarSink drains traversal output directly to an io.Writer
// using the fixed fifteen-column schema of §4.5, writing entries, errors,
// and the single metadata row as disjoint row groups. It never materializes
// the full entry set in memory: entries are flushed in row groups of a
// configurable capacity.
type StreamingColumnarSink struct {
	lock sync.Mutex

	writer        *bufio.Writer
	flushCapacity int

	entryBuffer []scan.DirectoryEntry
	entryCount  uint64

	errorBuffer []scan.ErrorItem

	metadata    scan.SnapshotMeta
	metadataSet bool

	closer io.Closer
}

// NewStreamingColumnarSink constructs a sink that writes to w, flushing
// entries every flushCapacity rows. A non-positive flushCapacity selects
// defaultFlushCapacity (4096); any positive value, including 1, is used as
// given. If w also implements io.Closer, it is
// closed when Finish completes successfully.
func NewStreamingColumnarSink(w io.Writer, flushCapacity int) *StreamingColumnarSink {
	if flushCapacity < 1 {
		flushCapacity = defaultFlushCapacity
	}

	closer, _ := w.(io.Closer)

	return &StreamingColumnarSink{
		writer:        bufio.NewWriter(w),
		flushCapacity: flushCapacity,
		closer:        closer,
	}
}

// RecordEntry implements scan.Sink.RecordEntry.
func (s *StreamingColumnarSink) RecordEntry(entry scan.DirectoryEntry) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.entryBuffer = append(s.entryBuffer, entry)
	s.entryCount++

	if len(s.entryBuffer) >= s.flushCapacity {
		return s.flushEntriesLocked()
	}
	return nil
}

// RecordError implements scan.Sink.RecordError.
func (s *StreamingColumnarSink) RecordError(item scan.ErrorItem) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.errorBuffer = append(s.errorBuffer, item)
	return nil
}

// SetMetadata implements scan.Sink.SetMetadata.
func (s *StreamingColumnarSink) SetMetadata(meta scan.SnapshotMeta) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.metadataSet {
		return errors.New("metadata already set")
	}
	s.metadata = meta
	s.metadataSet = true
	return nil
}

// flushEntriesLocked writes the buffered entry row group and resets the
// buffer. The caller must hold s.lock.
func (s *StreamingColumnarSink) flushEntriesLocked() error {
	for _, entry := range s.entryBuffer {
		if err := encodeEntryRow(s.writer, entry); err != nil {
			return errors.Wrap(err, "unable to write entry row")
		}
	}
	s.entryBuffer = s.entryBuffer[:0]
	return nil
}

// Finish implements scan.Sink.Finish. It flushes the remaining entry
// buffer, then the error row group, then the single metadata row, in that
// order, and closes the underlying writer if possible.
func (s *StreamingColumnarSink) Finish() (scan.SinkFinish, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.metadataSet {
		return scan.SinkFinish{}, errors.New("set_metadata was never called")
	}

	if err := s.flushEntriesLocked(); err != nil {
		return scan.SinkFinish{}, err
	}

	for _, item := range s.errorBuffer {
		if err := encodeErrorRow(s.writer, item); err != nil {
			return scan.SinkFinish{}, errors.Wrap(err, "unable to write error row")
		}
	}

	if err := encodeMetaRow(s.writer, s.metadata); err != nil {
		return scan.SinkFinish{}, errors.Wrap(err, "unable to write metadata row")
	}

	if err := s.writer.Flush(); err != nil {
		return scan.SinkFinish{}, errors.Wrap(err, "unable to flush snapshot writer")
	}

	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return scan.SinkFinish{}, errors.Wrap(err, "unable to close snapshot file")
		}
	}

	return scan.SinkFinish{EntryCount: s.entryCount}, nil
}
