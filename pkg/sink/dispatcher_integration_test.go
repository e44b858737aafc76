package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/scan"
	"github.com/duscan/duscan/pkg/scan/scantest"
)

// failAfterNSink wraps a MemorySink and fails every RecordEntry call once n
// entries have already been recorded, to exercise the mid-scan write-failure
// abort path.
type failAfterNSink struct {
	*MemorySink
	n        int
	recorded int
}

func (s *failAfterNSink) RecordEntry(entry scan.DirectoryEntry) error {
	if s.recorded >= s.n {
		return errors.New("simulated snapshot write failure")
	}
	s.recorded++
	return s.MemorySink.RecordEntry(entry)
}

func entriesByPath(entries []scan.DirectoryEntry) map[string]scan.DirectoryEntry {
	out := make(map[string]scan.DirectoryEntry, len(entries))
	for _, entry := range entries {
		out[entry.Path] = entry
	}
	return out
}

// scanAndCollect runs a scan against a MemorySink and returns the resulting
// summary alongside the sink's materialized entries and errors.
func scanAndCollect(t *testing.T, root string, options scan.Options) (scan.Summary, []scan.DirectoryEntry, []scan.ErrorItem) {
	t.Helper()

	memorySink := NewMemorySink()
	summary, err := scan.Dispatcher{}.Run(root, options, memorySink)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	result, err := memorySink.Finish()
	if err != nil {
		t.Fatalf("unexpected error finishing sink: %v", err)
	}

	return summary, result.Entries, result.Errors
}

func toSlashPath(p string) string {
	out := make([]byte, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' {
			out[i] = '/'
		} else {
			out[i] = p[i]
		}
	}
	return string(out)
}

func TestDispatcherBasicTree(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{
			{Path: "a.txt", Size: 100},
			{Path: "sub/b.txt", Size: 200},
		},
	})

	_, entries, errs := scanAndCollect(t, root, scan.Options{MaxDepth: -1})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	byPath := entriesByPath(entries)
	normalizedRoot := toSlashPath(root)

	rootEntry, ok := byPath[normalizedRoot]
	if !ok {
		t.Fatalf("missing root entry for %s", normalizedRoot)
	}
	if rootEntry.SizeBytes != 300 {
		t.Fatalf("expected root size 300, got %d", rootEntry.SizeBytes)
	}
	if rootEntry.FileCount != 1 || rootEntry.DirCount != 1 {
		t.Fatalf("expected root file_count=1 dir_count=1, got file_count=%d dir_count=%d", rootEntry.FileCount, rootEntry.DirCount)
	}

	subEntry, ok := byPath[normalizedRoot+"/sub"]
	if !ok {
		t.Fatalf("missing entry for sub directory")
	}
	if subEntry.SizeBytes != 200 {
		t.Fatalf("expected sub size 200, got %d", subEntry.SizeBytes)
	}
	if subEntry.ParentPath != normalizedRoot {
		t.Fatalf("expected sub parent_path %s, got %s", normalizedRoot, subEntry.ParentPath)
	}
}

func TestDispatcherMaxDepthLimitsEmissionNotAccounting(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{
			{Path: "l1/l2/deep.txt", Size: 500},
		},
	})

	_, entries, errs := scanAndCollect(t, root, scan.Options{MaxDepth: 1})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	byPath := entriesByPath(entries)
	normalizedRoot := toSlashPath(root)

	l1, ok := byPath[normalizedRoot+"/l1"]
	if !ok {
		t.Fatalf("missing entry for l1, limiting emission must not drop in-range entries")
	}
	if l1.SizeBytes != 500 {
		t.Fatalf("expected l1 size to reflect full subtree (500), got %d", l1.SizeBytes)
	}

	if _, ok := byPath[normalizedRoot+"/l1/l2"]; ok {
		t.Fatalf("l2 should not have been emitted beyond max_depth")
	}
	if _, ok := byPath[normalizedRoot+"/l1/l2/deep.txt"]; ok {
		t.Fatalf("deep.txt should not have been emitted beyond max_depth")
	}
}

func TestDispatcherHardlinkDedupe(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{
			{Path: "original.bin", Size: 1000},
		},
	})

	if err := os.Link(filepath.Join(root, "original.bin"), filepath.Join(root, "linked.bin")); err != nil {
		t.Skipf("hardlinks are not supported on this filesystem: %v", err)
	}

	_, entries, errs := scanAndCollect(t, root, scan.Options{})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	byPath := entriesByPath(entries)
	normalizedRoot := toSlashPath(root)
	rootEntry, ok := byPath[normalizedRoot]
	if !ok {
		t.Fatalf("missing root entry")
	}
	if rootEntry.SizeBytes != 1000 {
		t.Fatalf("expected deduplicated root size 1000, got %d", rootEntry.SizeBytes)
	}
	if rootEntry.FileCount != 2 {
		t.Fatalf("expected file_count 2 (both hardlinks still counted as entries), got %d", rootEntry.FileCount)
	}
}

func TestDispatcherHardlinkCountPolicy(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{
			{Path: "original.bin", Size: 1000},
		},
	})

	if err := os.Link(filepath.Join(root, "original.bin"), filepath.Join(root, "linked.bin")); err != nil {
		t.Skipf("hardlinks are not supported on this filesystem: %v", err)
	}

	_, entries, _ := scanAndCollect(t, root, scan.Options{HardlinkPolicy: scan.HardlinkPolicyCount})
	byPath := entriesByPath(entries)
	normalizedRoot := toSlashPath(root)
	rootEntry := byPath[normalizedRoot]
	if rootEntry.SizeBytes != 2000 {
		t.Fatalf("expected undeduplicated root size 2000, got %d", rootEntry.SizeBytes)
	}
}

func TestDispatcherLegacyPosixParity(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{
			{Path: "a.txt", Size: 100},
			{Path: "sub/b.txt", Size: 250},
			{Path: "sub/nested/c.txt", Size: 75},
		},
	})

	legacyKind := scan.StrategyLegacy
	posixKind := scan.StrategyPOSIX

	_, legacyEntries, _ := scanAndCollect(t, root, scan.Options{StrategyOverride: &legacyKind, MaxDepth: -1})
	_, posixEntries, _ := scanAndCollect(t, root, scan.Options{StrategyOverride: &posixKind, MaxDepth: -1})

	legacyByPath := entriesByPath(legacyEntries)
	posixByPath := entriesByPath(posixEntries)

	if len(legacyByPath) != len(posixByPath) {
		t.Fatalf("entry count mismatch: legacy=%d posix=%d", len(legacyByPath), len(posixByPath))
	}

	for path, legacyEntry := range legacyByPath {
		posixEntry, ok := posixByPath[path]
		if !ok {
			t.Fatalf("posix strategy missing entry present in legacy: %s", path)
		}
		if legacyEntry.FileCount != posixEntry.FileCount || legacyEntry.DirCount != posixEntry.DirCount {
			t.Fatalf("file_count/dir_count mismatch at %s: legacy=%d/%d posix=%d/%d",
				path, legacyEntry.FileCount, legacyEntry.DirCount, posixEntry.FileCount, posixEntry.DirCount)
		}

		tolerance := legacyEntry.SizeBytes / 100
		if tolerance < 10*1024*1024 {
			tolerance = 10 * 1024 * 1024
		}
		var delta uint64
		if legacyEntry.SizeBytes > posixEntry.SizeBytes {
			delta = legacyEntry.SizeBytes - posixEntry.SizeBytes
		} else {
			delta = posixEntry.SizeBytes - legacyEntry.SizeBytes
		}
		if delta > tolerance {
			t.Fatalf("size_bytes mismatch at %s beyond tolerance: legacy=%d posix=%d", path, legacyEntry.SizeBytes, posixEntry.SizeBytes)
		}
	}
}

func TestDispatcherProgressIsMonotoneAndTerminates(t *testing.T) {
	files := make([]scantest.File, 0, 64)
	for i := 0; i < 64; i++ {
		files = append(files, scantest.File{Path: filepath.Join("files", fmt.Sprintf("%04d.bin", i)), Size: 1024})
	}
	root := scantest.Build(t, scantest.Tree{Files: files})

	summary, _, _ := scanAndCollect(t, root, scan.Options{})

	if len(summary.Progress) == 0 {
		t.Fatalf("expected at least the terminal progress snapshot")
	}

	last := summary.Progress[len(summary.Progress)-1]
	if last.EstimatedCompletionRatio != 1.0 {
		t.Fatalf("expected terminal snapshot to have EstimatedCompletionRatio 1.0, got %v", last.EstimatedCompletionRatio)
	}

	var previousTimestamp int64 = -1
	var previousEntries uint64
	var previousBytes uint64
	for i, snapshot := range summary.Progress {
		if snapshot.TimestampMs < previousTimestamp {
			t.Fatalf("progress timestamp regressed at index %d", i)
		}
		if snapshot.ProcessedEntries < previousEntries {
			t.Fatalf("processed entry count regressed at index %d", i)
		}
		if snapshot.ProcessedBytes < previousBytes {
			t.Fatalf("processed byte count regressed at index %d", i)
		}
		previousTimestamp = snapshot.TimestampMs
		previousEntries = snapshot.ProcessedEntries
		previousBytes = snapshot.ProcessedBytes
	}
}

func TestDispatcherCrossFilesystemDefaultAllowsSingleDeviceTree(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{{Path: "a.txt", Size: 10}},
	})

	_, _, errs := scanAndCollect(t, root, scan.Options{CrossFilesystem: false})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors scanning a single-device tree: %v", errs)
	}
}

// TestDispatcherSnapshotRoundTrip exercises the full scan -> streaming sink
// -> ReadSnapshot path (the system's end-to-end contract), rather than just
// the in-memory sink.
func TestDispatcherSnapshotRoundTrip(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{
			{Path: "a.txt", Size: 100},
			{Path: "sub/b.txt", Size: 200},
		},
	})

	snapshotPath := filepath.Join(t.TempDir(), "snapshot.dus")
	file, err := os.Create(snapshotPath)
	if err != nil {
		t.Fatalf("unable to create snapshot file: %v", err)
	}

	streamingSink := NewStreamingColumnarSink(file, 1)
	summary, err := scan.Dispatcher{}.Run(root, scan.Options{}, streamingSink)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	readBack, err := os.Open(snapshotPath)
	if err != nil {
		t.Fatalf("unable to reopen snapshot file: %v", err)
	}
	defer readBack.Close()

	snapshot, err := ReadSnapshot(readBack)
	if err != nil {
		t.Fatalf("unable to read snapshot: %v", err)
	}

	if uint64(len(snapshot.Entries)) != summary.EntryCount {
		t.Fatalf("expected %d entries in snapshot, got %d", summary.EntryCount, len(snapshot.Entries))
	}
	if snapshot.Metadata.ScanRoot != summary.Root {
		t.Fatalf("expected scan_root %s, got %s", summary.Root, snapshot.Metadata.ScanRoot)
	}
	if snapshot.Metadata.Strategy != summary.Strategy {
		t.Fatalf("expected strategy %s, got %s", summary.Strategy, snapshot.Metadata.Strategy)
	}
}

// TestDispatcherAbortsOnSinkWriteFailure verifies that a mid-traversal
// RecordEntry failure aborts the scan rather than letting it silently
// continue walking the rest of the tree.
func TestDispatcherAbortsOnSinkWriteFailure(t *testing.T) {
	root := scantest.Build(t, scantest.Tree{
		Files: []scantest.File{
			{Path: "a.txt", Size: 10},
			{Path: "sub/b.txt", Size: 20},
			{Path: "sub/c.txt", Size: 30},
		},
	})

	legacyKind := scan.StrategyLegacy
	failing := &failAfterNSink{MemorySink: NewMemorySink(), n: 1}

	_, err := scan.Dispatcher{}.Run(root, scan.Options{StrategyOverride: &legacyKind, MaxDepth: -1}, failing)
	if err == nil {
		t.Fatalf("expected a sink write failure to abort the scan")
	}
}
