package scan

import (
	"errors"
	"os"
)

// classifyError maps a platform I/O error encountered during traversal to
// the ErrorItem taxonomy of §7: ENOENT for entries that vanished between
// enumeration and stat, EACCES for permission failures, and IO for
// everything else.
//
// err reaching here is always wrapped, at least once, by errors.Wrap or
// %w (see strategy_legacy.go, strategy_posix.go, strategy_windows.go, and
// context.go). os.IsNotExist/os.IsPermission only peel *PathError,
// *LinkError, and *SyscallError, and don't unwrap those wrapper chains, so
// errors.Is against the sentinel values is used instead.
func classifyError(err error) ErrorCode {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrorCodeENOENT
	case errors.Is(err, os.ErrPermission):
		return ErrorCodeEACCES
	default:
		return ErrorCodeIO
	}
}
