package mount

import (
	"context"
	"errors"
	"log/slog"
	"syscall"

	"github.com/tonimelisma/ghdrive/internal/ghapi"
	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// toErrno maps namespace and transport failures onto the errno a
// filesystem caller expects.
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, namespace.ErrInvalidPath):
		// Checked first: invalid paths also match ErrNotFound.
		return syscall.EINVAL
	case errors.Is(err, namespace.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, namespace.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, namespace.ErrUnsupported):
		return syscall.ENOTSUP
	case errors.Is(err, namespace.ErrForbidden), errors.Is(err, namespace.ErrUnauthorized):
		return syscall.EACCES
	case errors.Is(err, namespace.ErrConflict), errors.Is(err, ghapi.ErrRateLimited):
		return syscall.EAGAIN
	case errors.Is(err, namespace.ErrTooLarge):
		return syscall.EFBIG
	case errors.Is(err, namespace.ErrNotFile):
		return syscall.EISDIR
	case errors.Is(err, namespace.ErrNotDir):
		return syscall.ENOTDIR
	case errors.Is(err, namespace.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, context.Canceled):
		return syscall.EINTR
	case errors.Is(err, context.DeadlineExceeded):
		return syscall.ETIMEDOUT
	default:
		return syscall.EIO
	}
}

// fail logs err against op and path and returns its errno. Expected
// outcomes like a missing entry stay at Debug.
func (f *filesystem) fail(op, p string, err error) syscall.Errno {
	errno := toErrno(err)

	level := slog.LevelDebug
	if errno == syscall.EIO || errno == syscall.EACCES {
		level = slog.LevelWarn
	}

	f.logger.Log(context.Background(), level, "fuse operation failed",
		slog.String("op", op),
		slog.String("path", p),
		slog.String("errno", errno.Error()),
		slog.String("error", err.Error()),
	)

	return errno
}
