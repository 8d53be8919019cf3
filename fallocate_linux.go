//go:build linux

package blkio

import (
	"golang.org/x/sys/unix"
)

func _() {
	// Compile error if the mode values drift from the kernel's.
	var x [1]struct{}
	_ = x[ModeKeepSize-unix.FALLOC_FL_KEEP_SIZE]
	_ = x[ModePunchHole-unix.FALLOC_FL_PUNCH_HOLE]
	_ = x[ModeCollapseRange-unix.FALLOC_FL_COLLAPSE_RANGE]
	_ = x[ModeZeroRange-unix.FALLOC_FL_ZERO_RANGE]
}

// Fallocate manipulates the allocated disk space of the file open on fd for
// [offset, offset+length) as described by mode. Mode 0 allocates the range,
// extending the file if needed. See fallocate(2).
func Fallocate(fd int, mode AllocationMode, offset, length int64) error {
	if err := unix.Fallocate(fd, uint32(mode), offset, length); err != nil {
		return newOpError(ErrIO, "fallocate", err)
	}
	return nil
}

// PunchHole deallocates [offset, offset+length) without changing the file
// size. The range reads back as zeroes.
func PunchHole(fd int, offset, length int64) error {
	return Fallocate(fd, ModePunchHole|ModeKeepSize, offset, length)
}

// Allocated returns the number of bytes of storage backing the file open on
// fd.
func Allocated(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, newOpError(ErrIO, "fstat", err)
	}
	// st_blocks is always in 512 byte units.
	return st.Blocks * 512, nil
}
