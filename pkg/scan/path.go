package scan

import (
	"path"
	"strings"
)

// toSlash converts a platform-native absolute path to the normalized,
// forward-slash form stored in DirectoryEntry.Path and DirectoryEntry.ParentPath.
// Redundant separators are never introduced because filepath.Abs (used to
// produce the input) already cleans the path; this function only rewrites the
// separator character.
func toSlash(nativePath string) string {
	if nativePath == "" {
		return nativePath
	}
	return strings.ReplaceAll(nativePath, "\\", "/")
}

// join computes the normalized child path beneath a normalized parent path.
func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return path.Join(parent, name)
}

// parentOf computes the normalized parent of a normalized path, or "" if the
// path has no parent component (i.e. it is itself a root).
func parentOf(normalizedPath string) string {
	parent := path.Dir(normalizedPath)
	if parent == "." || parent == normalizedPath {
		return ""
	}
	return parent
}
