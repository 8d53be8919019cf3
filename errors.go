package blkio

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Error kinds. Every error returned by Buffer and the syscall wrappers
// (ZeroRange, Discard, the block size queries, Fallocate, PunchHole,
// Allocated) matches exactly one of them with errors.Is. Higher level
// helpers may also return os, context or ErrNotSupported errors.
var (
	// ErrInvalidArgument reports a size, alignment, count or offset that
	// violates the block size multiple or positivity rules. It is a caller bug.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfRange reports a length or count larger than a buffer capacity.
	ErrOutOfRange = errors.New("out of range")
	// ErrAllocationFailed reports a failure to map buffer memory.
	ErrAllocationFailed = errors.New("allocation failed")
	// ErrIO reports a failed system call on a caller supplied descriptor.
	ErrIO = errors.New("i/o error")
)

var (
	// ErrClosed is returned when a released Buffer is used.
	ErrClosed = errors.Wrap(ErrInvalidArgument, "buffer is closed")
	// ErrNotSupported is returned on platforms or filesystems lacking an
	// operation.
	ErrNotSupported = errors.New("operation not supported")
)

// OpError records a failed system call together with the location that
// issued it.
type OpError struct {
	Kind  error      // ErrAllocationFailed or ErrIO
	Op    string     // failing call, e.g. "read" or "ioctl(BLKZEROOUT)"
	Errno unix.Errno // originating OS error
	File  string
	Line  int
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s (%s:%d)", e.Op, e.Errno.Error(), e.File, e.Line)
}

// Unwrap exposes both the kind and the errno, so callers may test either.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Errno}
}

// newOpError wraps err returned by op. The location recorded is the caller of
// newOpError.
func newOpError(kind error, op string, err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		errno = unix.EIO
	}
	e := &OpError{Kind: kind, Op: op, Errno: errno}
	if _, file, line, ok := runtime.Caller(1); ok {
		e.File, e.Line = filepath.Base(file), line
	}
	return errors.WithStack(e)
}

// Errno returns the OS error carried by err, or 0 if there is none.
func Errno(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// IsNotSupported reports whether err means the kernel, the filesystem or the
// device does not implement the requested operation.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotSupported) {
		return true
	}
	switch Errno(err) {
	case unix.EOPNOTSUPP, unix.ENODEV, unix.ENOTTY, unix.ENOSYS:
		return true
	}
	return false
}

func invalidArgument(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

func outOfRange(format string, args ...any) error {
	return errors.Wrapf(ErrOutOfRange, format, args...)
}
