package filesystem

import (
	"github.com/pkg/errors"
)

// ErrUnsupportedOpenType indicates that the filesystem entry at the specified
// path is neither a directory nor a regular file and thus cannot be opened
// for traversal.
var ErrUnsupportedOpenType = errors.New("unsupported entry type")
