//go:build linux

package blkio

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// BLKZEROOUT is _IO(0x12, 127) from linux/fs.h; x/sys/unix does not export it.
const blkZeroOut = 0x127f

// ZeroRange zero-fills [offset, offset+length) on the block device open for
// writing on fd. The device either offloads the request to hardware or the
// kernel explicitly writes zeroes.
//
// The range must be aligned to the device logical block size.
func ZeroRange(fd int, offset, length uint64) error {
	if err := ioctlRange(fd, blkZeroOut, offset, length); err != nil {
		return newOpError(ErrIO, "ioctl(BLKZEROOUT)", err)
	}
	return nil
}

// Discard tells the device that [offset, offset+length) is no longer used.
// Unlike ZeroRange, reading the range afterwards may not return zeroes.
func Discard(fd int, offset, length uint64) error {
	if err := ioctlRange(fd, unix.BLKDISCARD, offset, length); err != nil {
		return newOpError(ErrIO, "ioctl(BLKDISCARD)", err)
	}
	return nil
}

// LogicalBlockSize returns the logical block size of the block device open
// on fd.
func LogicalBlockSize(fd int) (uint32, error) {
	n, err := unix.IoctlGetInt(fd, unix.BLKSSZGET)
	if err != nil {
		return 0, newOpError(ErrIO, "ioctl(BLKSSZGET)", err)
	}
	return uint32(n), nil
}

// PhysicalBlockSize returns the physical block size of the block device open
// on fd.
func PhysicalBlockSize(fd int) (uint32, error) {
	n, err := unix.IoctlGetUint32(fd, unix.BLKPBSZGET)
	if err != nil {
		return 0, newOpError(ErrIO, "ioctl(BLKPBSZGET)", err)
	}
	return n, nil
}

// DeviceSize returns the size in bytes of the block device open on fd.
func DeviceSize(fd int) (uint64, error) {
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd),
		uintptr(unix.BLKGETSIZE64), uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, newOpError(ErrIO, "ioctl(BLKGETSIZE64)", errno)
	}
	return size, nil
}

// ioctlRange issues a request taking a {start, length} uint64 pair.
func ioctlRange(fd int, req uintptr, offset, length uint64) error {
	r := [2]uint64{offset, length}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&r[0])))
	if errno != 0 {
		return errno
	}
	return nil
}
