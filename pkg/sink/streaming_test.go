package sink

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/duscan/duscan/pkg/scan"
)

func TestStreamingColumnarSinkFlushesAcrossCapacityBoundary(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamingColumnarSink(&buf, 2)

	for i := 0; i < 5; i++ {
		if err := s.RecordEntry(scan.DirectoryEntry{Path: "/e"}); err != nil {
			t.Fatalf("unexpected error recording entry %d: %v", i, err)
		}
	}
	if err := s.RecordError(scan.ErrorItem{Path: "/bad", Code: scan.ErrorCodeIO, Message: "boom"}); err != nil {
		t.Fatalf("unexpected error recording error item: %v", err)
	}
	if err := s.SetMetadata(scan.SnapshotMeta{ScanRoot: "/e"}); err != nil {
		t.Fatalf("unexpected error setting metadata: %v", err)
	}

	finish, err := s.Finish()
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if finish.EntryCount != 5 {
		t.Fatalf("expected entry_count 5, got %d", finish.EntryCount)
	}

	snapshot, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("unable to read back snapshot: %v", err)
	}
	if len(snapshot.Entries) != 5 {
		t.Fatalf("expected 5 entries read back, got %d", len(snapshot.Entries))
	}
	if len(snapshot.Errors) != 1 {
		t.Fatalf("expected 1 error read back, got %d", len(snapshot.Errors))
	}
	if snapshot.Metadata.ScanRoot != "/e" {
		t.Fatalf("expected scan_root /e, got %q", snapshot.Metadata.ScanRoot)
	}
}

func TestStreamingColumnarSinkFinishWithoutMetadataFails(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamingColumnarSink(&buf, 0)
	if _, err := s.Finish(); err == nil {
		t.Fatalf("expected Finish to fail when SetMetadata was never called")
	}
}

func TestStreamingColumnarSinkNonPositiveCapacityIsClamped(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamingColumnarSink(&buf, 0)
	if s.flushCapacity != defaultFlushCapacity {
		t.Fatalf("expected non-positive capacity to clamp to the default, got %d", s.flushCapacity)
	}
}

func TestReadSnapshotRejectsMissingMetadata(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)
	if err := encodeEntryRow(writer, scan.DirectoryEntry{Path: "/a"}); err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if _, err := ReadSnapshot(&buf); err == nil {
		t.Fatalf("expected ReadSnapshot to reject a stream with no metadata row")
	}
}
