//go:build unix && !linux

package blkio

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ZeroRange is not supported on this platform
func ZeroRange(fd int, offset, length uint64) error {
	return errors.WithStack(ErrNotSupported)
}

// Discard is not supported on this platform
func Discard(fd int, offset, length uint64) error {
	return errors.WithStack(ErrNotSupported)
}

// LogicalBlockSize is not supported on this platform
func LogicalBlockSize(fd int) (uint32, error) {
	return 0, errors.WithStack(ErrNotSupported)
}

// PhysicalBlockSize is not supported on this platform
func PhysicalBlockSize(fd int) (uint32, error) {
	return 0, errors.WithStack(ErrNotSupported)
}

// DeviceSize is not supported on this platform
func DeviceSize(fd int) (uint64, error) {
	return 0, errors.WithStack(ErrNotSupported)
}

// Fallocate is not supported on this platform
func Fallocate(fd int, mode AllocationMode, offset, length int64) error {
	return errors.WithStack(ErrNotSupported)
}

// PunchHole is not supported on this platform
func PunchHole(fd int, offset, length int64) error {
	return errors.WithStack(ErrNotSupported)
}

// Allocated returns the number of bytes of storage backing the file open on
// fd.
func Allocated(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, newOpError(ErrIO, "fstat", err)
	}
	return st.Blocks * 512, nil
}

// DirectIOAlignment is not supported on this platform
func DirectIOAlignment(path string) (mem, offset uint32, err error) {
	return 0, 0, errors.WithStack(ErrNotSupported)
}

// dataSection reports the whole remaining range as data on this platform.
func dataSection(fd int, off, size int64) (start, end int64, err error) {
	return off, size, nil
}
