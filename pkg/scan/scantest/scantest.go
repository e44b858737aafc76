// Package scantest provides fixture helpers for building temporary directory
// trees to exercise scan strategies and the dispatcher.
package scantest

import (
	"os"
	"path/filepath"
)

// File describes a single regular file to materialize within a Tree.
type File struct {
	// Path is the file's path, relative to the tree root, using forward
	// slashes.
	Path string
	// Size is the number of bytes of (arbitrary) content to write.
	Size int
}

// Tree describes a directory tree to materialize for a test.
type Tree struct {
	// Files are the regular files to create. Parent directories are created
	// automatically.
	Files []File
	// Dirs are additional empty directories to create beyond those implied
	// by Files.
	Dirs []string
}

// Build materializes tree beneath a fresh temporary directory and returns
// the temporary directory's path. The directory and its contents are removed
// automatically when the test completes.
func Build(t testingT, tree Tree) string {
	t.Helper()

	root, err := os.MkdirTemp("", "duscan-scan-test-")
	if err != nil {
		t.Fatalf("unable to create temporary directory: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(root)
	})

	for _, dir := range tree.Dirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("unable to create directory %q: %v", dir, err)
		}
	}

	for _, file := range tree.Files {
		full := filepath.Join(root, file.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("unable to create parent directory for %q: %v", file.Path, err)
		}
		content := make([]byte, file.Size)
		for i := range content {
			content[i] = byte('a' + i%26)
		}
		if err := os.WriteFile(full, content, 0644); err != nil {
			t.Fatalf("unable to write file %q: %v", file.Path, err)
		}
	}

	return root
}

// testingT is the subset of *testing.T used by this package, to avoid an
// import cycle with the testing package's own internal helpers.
type testingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
	Cleanup(func())
}
