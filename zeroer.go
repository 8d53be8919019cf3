package blkio

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/miretskiy/blkio/units"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// maxZeroWrite bounds the buffer used when zeroes must be written manually.
const maxZeroWrite = units.MiB

// Zeroer zeroes byte ranges of a file or block device using the cheapest
// method the kernel supports.
//
// Strategies rejected with EOPNOTSUPP are remembered and not tried again, so
// a Zeroer should live as long as the file it zeroes. It is safe to share
// between goroutines; concurrent Zero calls on overlapping ranges are not
// ordered.
type Zeroer struct {
	f           *os.File
	fd          int
	blockDevice bool
	sparse      bool
	blockSize   int

	noZeroRange atomic.Bool
	noPunchHole atomic.Bool
	noFallocate atomic.Bool
}

// NewZeroer creates a Zeroer for f, which must be open for writing.
func NewZeroer(f *os.File, opts ...ZeroerOption) (*Zeroer, error) {
	var cfg zeroerConfig
	for _, opt := range opts {
		opt.applyZeroer(&cfg)
	}

	blk, err := IsBlockDevice(f)
	if err != nil {
		return nil, err
	}
	if cfg.BlockSize == 0 {
		if cfg.BlockSize, err = DetectBlockSize(f); err != nil {
			return nil, err
		}
	}
	if !validBlockMultiple(cfg.BlockSize) {
		return nil, invalidArgument("block size must be non-zero multiple of %d bytes", BlockSize)
	}

	return &Zeroer{
		f:           f,
		fd:          int(f.Fd()),
		blockDevice: blk,
		sparse:      cfg.Sparse,
		blockSize:   cfg.BlockSize,
	}, nil
}

// BlockSize returns the alignment required from Zero ranges.
func (z *Zeroer) BlockSize() int { return z.blockSize }

// Sparse reports whether zeroing a regular file deallocates space.
func (z *Zeroer) Sparse() bool { return z.sparse }

// Zero zeroes [offset, offset+length). Both must be multiples of BlockSize.
//
// Block devices are zeroed with fallocate(ZERO_RANGE), falling back to
// BLKZEROOUT on kernels that do not support fallocate on block devices.
// Regular files are zeroed allocating space, or punching a hole when the
// Zeroer is sparse, falling back to writing zeroes.
func (z *Zeroer) Zero(offset, length int64) error {
	bs := int64(z.blockSize)
	if offset < 0 || length < 0 || !IsAligned(offset, bs) || !IsAligned(length, bs) {
		return invalidArgument("range [%d, %d) not aligned to %d bytes", offset, offset+length, bs)
	}
	if length == 0 {
		return nil
	}

	switch {
	case z.blockDevice:
		return z.zeroDevice(offset, length)
	case z.sparse:
		return z.zeroSparse(offset, length)
	default:
		return z.zeroFile(offset, length)
	}
}

func (z *Zeroer) zeroDevice(offset, length int64) error {
	// fallocate works on block devices since Linux 4.9 and, unlike
	// BLKZEROOUT, invalidates the page cache.
	if !z.noFallocate.Load() {
		err := Fallocate(z.fd, ModeZeroRange, offset, length)
		if err == nil {
			return nil
		}
		// Older kernels fail with ENODEV.
		if errno := Errno(err); errno != unix.EOPNOTSUPP && errno != unix.ENODEV {
			return err
		}
		log.Debug("fallocate is not supported, zeroing using BLKZEROOUT",
			"path", z.f.Name(), "mode", ModeZeroRange)
		z.noFallocate.Store(true)
	}
	return ZeroRange(z.fd, uint64(offset), uint64(length))
}

func (z *Zeroer) zeroFile(offset, length int64) error {
	// Single call, but not available on NFS 4.2.
	if !z.noZeroRange.Load() {
		ok, err := z.tryFallocate(ModeZeroRange, offset, length)
		if ok || err != nil {
			return err
		}
		log.Debug("Cannot zero range", "path", z.f.Name())
		z.noZeroRange.Store(true)
	}

	// Punch a hole and allocate it again, as qemu does.
	if !z.noPunchHole.Load() && !z.noFallocate.Load() {
		ok, err := z.tryFallocate(ModePunchHole|ModeKeepSize, offset, length)
		if err != nil {
			return err
		}
		if ok {
			ok, err = z.tryFallocate(0, offset, length)
			if ok || err != nil {
				return err
			}
			log.Debug("Cannot fallocate range", "path", z.f.Name())
			z.noFallocate.Store(true)
		} else {
			log.Debug("Cannot punch hole", "path", z.f.Name())
			z.noPunchHole.Store(true)
		}
	}

	// Past the end of the file there is nothing to zero, only to allocate.
	if !z.noFallocate.Load() {
		size, err := z.size()
		if err != nil {
			return err
		}
		if offset >= size {
			ok, err := z.tryFallocate(0, offset, length)
			if ok || err != nil {
				return err
			}
			log.Debug("Cannot fallocate range", "path", z.f.Name())
			z.noFallocate.Store(true)
		}
	}

	return z.writeZeros(offset, length)
}

func (z *Zeroer) zeroSparse(offset, length int64) error {
	if !z.noPunchHole.Load() {
		size, err := z.size()
		if err != nil {
			return err
		}
		if offset+length > size {
			if err := z.f.Truncate(offset + length); err != nil {
				return errors.WithStack(err)
			}
			// The extended range is already a hole.
			if offset == size {
				return nil
			}
		}
		ok, err := z.tryFallocate(ModePunchHole|ModeKeepSize, offset, length)
		if ok || err != nil {
			return err
		}
		log.Debug("Cannot punch hole", "path", z.f.Name())
		z.noPunchHole.Store(true)
	}
	return z.writeZeros(offset, length)
}

// tryFallocate returns false if mode is not supported; other errors are
// returned as is.
func (z *Zeroer) tryFallocate(mode AllocationMode, offset, length int64) (bool, error) {
	err := Fallocate(z.fd, mode, offset, length)
	if err == nil {
		return true, nil
	}
	if Errno(err) == unix.EOPNOTSUPP || errors.Is(err, ErrNotSupported) {
		return false, nil
	}
	return false, err
}

func (z *Zeroer) size() (int64, error) {
	fi, err := z.f.Stat()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return fi.Size(), nil
}

// writeZeros writes zeroes with pwrite, through an aligned buffer so it also
// works on files opened for direct I/O.
func (z *Zeroer) writeZeros(offset, length int64) error {
	buf, err := NewBuffer(int(min(length, maxZeroWrite)), WithAlignment(z.blockSize))
	if err != nil {
		return err
	}
	defer buf.Close()

	zeros := buf.Buf()
	for length > 0 {
		chunk := zeros[:min(length, int64(len(zeros)))]
		n, err := retryEINTR(func() (int, error) {
			return unix.Pwrite(z.fd, chunk, offset)
		})
		if err != nil {
			return newOpError(ErrIO, "pwrite", err)
		}
		if n == 0 {
			return errors.WithStack(io.ErrShortWrite)
		}
		offset += int64(n)
		length -= int64(n)
	}
	return nil
}
