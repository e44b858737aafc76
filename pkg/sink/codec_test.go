package sink

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/duscan/duscan/pkg/scan"
)

func TestEncodeDecodeEntryRowRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	entry := scan.DirectoryEntry{
		Path: "/tmp/root/sub", ParentPath: "/tmp/root", Depth: 1,
		SizeBytes: 4096, FileCount: 3, DirCount: 1, IsDirectory: true,
	}
	if err := encodeEntryRow(writer, entry); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	row, err := decodeRow(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !row.isEntry || row.isError || row.isMeta {
		t.Fatalf("expected an entry row, got %+v", row)
	}
	if row.entry.Path != entry.Path || row.entry.ParentPath != entry.ParentPath {
		t.Fatalf("path/parent_path mismatch: got %+v", row.entry)
	}
	if row.entry.Depth != entry.Depth || row.entry.SizeBytes != entry.SizeBytes {
		t.Fatalf("depth/size mismatch: got %+v", row.entry)
	}
	if row.entry.FileCount != entry.FileCount || row.entry.DirCount != entry.DirCount {
		t.Fatalf("file_count/dir_count mismatch: got %+v", row.entry)
	}
	if row.entry.IsDirectory {
		t.Fatalf("IsDirectory is not part of the persisted column schema and must decode as false")
	}
}

func TestEncodeDecodeRootEntryHasNullParentPath(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	root := scan.DirectoryEntry{Path: "/tmp/root", SizeBytes: 8192}
	if err := encodeEntryRow(writer, root); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	row, err := decodeRow(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if row.entry.ParentPath != "" {
		t.Fatalf("expected the root's parent_path column to decode as null (empty), got %q", row.entry.ParentPath)
	}
}

func TestEncodeDecodeErrorRowRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	item := scan.ErrorItem{Path: "/tmp/root/denied", Code: scan.ErrorCodeEACCES, Message: "permission denied"}
	if err := encodeErrorRow(writer, item); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	row, err := decodeRow(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !row.isError {
		t.Fatalf("expected an error row, got %+v", row)
	}
	if row.errItem != item {
		t.Fatalf("expected %+v, got %+v", item, row.errItem)
	}
}

func TestEncodeDecodeMetaRowRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	started := time.Unix(1000, 0).UTC()
	finished := time.Unix(2000, 0).UTC()
	meta := scan.SnapshotMeta{
		ScanRoot: "/tmp/root", StartedAt: started, FinishedAt: finished,
		Basis: scan.SizeBasisPhysical, HardlinkPolicy: scan.HardlinkPolicyCount, Strategy: scan.StrategyPOSIX,
	}
	if err := encodeMetaRow(writer, meta); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	row, err := decodeRow(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !row.isMeta {
		t.Fatalf("expected a metadata row, got %+v", row)
	}
	if row.meta.ScanRoot != meta.ScanRoot {
		t.Fatalf("scan_root mismatch: got %q", row.meta.ScanRoot)
	}
	if !row.meta.StartedAt.Equal(started) || !row.meta.FinishedAt.Equal(finished) {
		t.Fatalf("timestamp mismatch: got started=%v finished=%v", row.meta.StartedAt, row.meta.FinishedAt)
	}
	if row.meta.Basis != meta.Basis || row.meta.HardlinkPolicy != meta.HardlinkPolicy || row.meta.Strategy != meta.Strategy {
		t.Fatalf("enum field mismatch: got %+v", row.meta)
	}
}

func TestDecodeRowEOF(t *testing.T) {
	_, err := decodeRow(bytes.NewReader(nil))
	if err == nil {
		t.Fatalf("expected an error decoding an empty stream")
	}
}
