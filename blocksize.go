package blkio

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// fallbackBlockSize is used when the storage does not enforce direct I/O
// alignment, for example NFS, where O_DIRECT is not passed to the server.
const fallbackBlockSize = 4096

// IsBlockDevice reports whether f is a block device.
func IsBlockDevice(f *os.File) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, errors.WithStack(err)
	}
	m := fi.Mode()
	return m&os.ModeDevice != 0 && m&os.ModeCharDevice == 0, nil
}

// DetectBlockSize returns the block size to use for direct I/O on f.
//
// For block devices this is the logical block size. For regular files opened
// with O_DIRECT the smallest read size the storage accepts at offset 0 is
// detected by trying 1, 512 and 4096 bytes. If even 1 byte works, alignment
// is not enforced and 4096 is returned. Detection is not reliable on an
// unallocated file on XFS, where every size may succeed.
func DetectBlockSize(f *os.File) (int, error) {
	blk, err := IsBlockDevice(f)
	if err != nil {
		return 0, err
	}
	fd := int(f.Fd())
	if blk {
		n, err := LogicalBlockSize(fd)
		if err != nil {
			return 0, err
		}
		return int(n), nil
	}

	buf, err := NewBuffer(fallbackBlockSize, WithAlignment(fallbackBlockSize))
	if err != nil {
		return 0, err
	}
	defer buf.Close()

	for _, size := range []int{1, BlockSize, fallbackBlockSize} {
		log.Debug("Trying block size", "path", f.Name(), "size", size)
		if err := probeRead(buf, fd, size); err != nil {
			if Errno(err) == unix.EINVAL {
				continue
			}
			return 0, err
		}
		if size == 1 {
			log.Debug("Cannot detect block size, using default",
				"path", f.Name(), "size", fallbackBlockSize)
			return fallbackBlockSize, nil
		}
		log.Debug("Detected block size", "path", f.Name(), "size", size)
		return size, nil
	}
	return 0, newOpError(ErrIO, "pread", unix.EINVAL)
}

// probeRead reads size bytes at offset 0. Sizes below BlockSize bypass the
// Buffer count checks, since probing unaligned lengths is the point.
func probeRead(buf *Buffer, fd int, size int) error {
	if size >= BlockSize {
		_, err := buf.ReadAtFd(fd, size, 0)
		return err
	}
	_, err := retryEINTR(func() (int, error) {
		return unix.Pread(fd, buf.Buf()[:size], 0)
	})
	if err != nil {
		return newOpError(ErrIO, "pread", err)
	}
	return nil
}
