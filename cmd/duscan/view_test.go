package main

import (
	"testing"

	"github.com/duscan/duscan/pkg/scan"
)

func TestUnderPath(t *testing.T) {
	cases := []struct {
		entryPath, subdir string
		expected          bool
	}{
		{"/root/sub/file", "", true},
		{"/root/sub", "/root/sub", true},
		{"/root/sub/nested", "/root/sub", true},
		{"/root/subtle", "/root/sub", false},
		{"/root/other", "/root/sub", false},
	}
	for _, c := range cases {
		if got := underPath(c.entryPath, c.subdir); got != c.expected {
			t.Fatalf("underPath(%q, %q) = %v, expected %v", c.entryPath, c.subdir, got, c.expected)
		}
	}
}

func TestSortEntriesBySize(t *testing.T) {
	entries := []scan.DirectoryEntry{
		{Path: "/a", SizeBytes: 10},
		{Path: "/b", SizeBytes: 30},
		{Path: "/c", SizeBytes: 20},
	}
	if err := sortEntries(entries, "size"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries[0].Path != "/b" || entries[1].Path != "/c" || entries[2].Path != "/a" {
		t.Fatalf("expected descending size order, got %+v", entries)
	}
}

func TestSortEntriesRejectsInvalidKey(t *testing.T) {
	if err := sortEntries(nil, "bogus"); err == nil {
		t.Fatalf("expected an error for an invalid sort key")
	}
}

func TestDirectorySet(t *testing.T) {
	entries := []scan.DirectoryEntry{
		{Path: "/root", ParentPath: ""},
		{Path: "/root/sub", ParentPath: "/root"},
		{Path: "/root/sub/file", ParentPath: "/root/sub"},
		{Path: "/root/empty", ParentPath: "/root"},
	}
	dirs := directorySet(entries)

	if !dirs["/root"] {
		t.Fatalf("expected /root to be recognized as a directory (it has children)")
	}
	if !dirs["/root/sub"] {
		t.Fatalf("expected /root/sub to be recognized as a directory (it has a child)")
	}
	if dirs["/root/sub/file"] {
		t.Fatalf("did not expect /root/sub/file (a leaf with no children) to be recognized as a directory")
	}
	if dirs["/root/empty"] {
		t.Fatalf("expected /root/empty (a childless leaf directory) to NOT be recognized, per directorySet's documented limitation")
	}
}
