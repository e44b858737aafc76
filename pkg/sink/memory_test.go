package sink

import (
	"testing"

	"github.com/duscan/duscan/pkg/scan"
)

func TestMemorySinkLastWriterWins(t *testing.T) {
	s := NewMemorySink()

	if err := s.RecordEntry(scan.DirectoryEntry{Path: "/a", SizeBytes: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RecordEntry(scan.DirectoryEntry{Path: "/a", SizeBytes: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetMetadata(scan.SnapshotMeta{ScanRoot: "/a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finish, err := s.Finish()
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if len(finish.Entries) != 1 {
		t.Fatalf("expected exactly one entry after re-recording the same path, got %d", len(finish.Entries))
	}
	if finish.Entries[0].SizeBytes != 2 {
		t.Fatalf("expected the later write to win, got size %d", finish.Entries[0].SizeBytes)
	}
}

func TestMemorySinkEntriesSortedByPath(t *testing.T) {
	s := NewMemorySink()
	for _, path := range []string{"/c", "/a", "/b"} {
		if err := s.RecordEntry(scan.DirectoryEntry{Path: path}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.SetMetadata(scan.SnapshotMeta{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finish, err := s.Finish()
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	expected := []string{"/a", "/b", "/c"}
	for i, path := range expected {
		if finish.Entries[i].Path != path {
			t.Fatalf("expected entries sorted by path, got %v", finish.Entries)
		}
	}
}

func TestMemorySinkSetMetadataTwiceFails(t *testing.T) {
	s := NewMemorySink()
	if err := s.SetMetadata(scan.SnapshotMeta{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetMetadata(scan.SnapshotMeta{}); err == nil {
		t.Fatalf("expected a second SetMetadata call to fail")
	}
}

func TestMemorySinkFinishWithoutMetadataFails(t *testing.T) {
	s := NewMemorySink()
	if _, err := s.Finish(); err == nil {
		t.Fatalf("expected Finish to fail when SetMetadata was never called")
	}
}
