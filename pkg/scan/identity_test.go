package scan

import (
	"fmt"
	"os"
	"testing"

	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/filesystem"
)

func TestIdentityOfUnavailableWhenBothZero(t *testing.T) {
	meta := &filesystem.Metadata{}
	if _, ok := identityOf(meta); ok {
		t.Fatalf("expected identityOf to report unavailable when device and file id are both zero")
	}
}

func TestIdentityOfAvailable(t *testing.T) {
	meta := &filesystem.Metadata{DeviceID: 7, FileID: 42}
	id, ok := identityOf(meta)
	if !ok {
		t.Fatalf("expected identityOf to report available")
	}
	if id.Device != 7 || id.Inode != 42 {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestClassifyErrorCodes(t *testing.T) {
	notExist := fmt.Errorf("wrapped: %w", os.ErrNotExist)
	if classifyError(notExist) != ErrorCodeENOENT {
		t.Fatalf("expected a not-exist error to classify as ENOENT")
	}

	permission := fmt.Errorf("wrapped: %w", os.ErrPermission)
	if classifyError(permission) != ErrorCodeEACCES {
		t.Fatalf("expected a permission error to classify as EACCES")
	}

	other := fmt.Errorf("something else")
	if classifyError(other) != ErrorCodeIO {
		t.Fatalf("expected an unclassified error to classify as IO")
	}

	// Every error reaching classifyError from real traversal code has
	// already been wrapped with errors.Wrap, not just fmt.Errorf's %w.
	wrappedNotExist := errors.Wrap(os.ErrNotExist, "unable to open subdirectory")
	if classifyError(wrappedNotExist) != ErrorCodeENOENT {
		t.Fatalf("expected an errors.Wrap-wrapped not-exist error to classify as ENOENT")
	}

	wrappedPermission := errors.Wrap(os.ErrPermission, "unable to open subdirectory")
	if classifyError(wrappedPermission) != ErrorCodeEACCES {
		t.Fatalf("expected an errors.Wrap-wrapped permission error to classify as EACCES")
	}
}
