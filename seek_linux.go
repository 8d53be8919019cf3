//go:build linux

package blkio

import (
	"golang.org/x/sys/unix"
)

// dataSection returns the next range of fd at or after off that may hold
// data, skipping holes. start == size means only holes are left. Filesystems
// without SEEK_DATA report the whole remaining range as data.
//
// SEEK_DATA moves the file position; callers use pread.
func dataSection(fd int, off, size int64) (start, end int64, err error) {
	start, err = unix.Seek(fd, off, unix.SEEK_DATA)
	switch {
	case err == unix.ENXIO:
		return size, size, nil
	case err == unix.EINVAL || IsNotSupported(err):
		return off, size, nil
	case err != nil:
		return 0, 0, newOpError(ErrIO, "lseek(SEEK_DATA)", err)
	}
	end, err = unix.Seek(fd, start, unix.SEEK_HOLE)
	if err == unix.ENXIO {
		return start, size, nil
	} else if err != nil {
		return 0, 0, newOpError(ErrIO, "lseek(SEEK_HOLE)", err)
	}
	return min(start, size), min(end, size), nil
}
