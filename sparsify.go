package blkio

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// Sparsify punches holes over every run of zero blocks in f and returns the
// number of bytes punched. Existing holes are skipped and not counted. The
// file size and contents are unchanged.
//
// The file is read in chunks with pread, so f may be opened for direct I/O.
// ctx is checked between chunks; a syscall in flight is not interrupted.
func Sparsify(ctx context.Context, f *os.File, opts ...SparsifyOption) (int64, error) {
	cfg := defaultSparsifyConfig()
	for _, opt := range opts {
		opt.applySparsify(&cfg)
	}
	if !validBlockMultiple(cfg.BlockSize) {
		return 0, invalidArgument("block size must be non-zero multiple of %d bytes", BlockSize)
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize%cfg.BlockSize != 0 {
		return 0, invalidArgument("chunk size must be non-zero multiple of %d bytes", cfg.BlockSize)
	}

	fi, err := f.Stat()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	size := fi.Size()

	buf, err := NewBuffer(cfg.ChunkSize, WithAlignment(cfg.BlockSize))
	if err != nil {
		return 0, err
	}
	defer buf.Close()

	bs := int64(cfg.BlockSize)
	s := sparsifier{fd: int(f.Fd()), blockSize: bs, start: -1}
	for off := int64(0); off < size; {
		if err := ctx.Err(); err != nil {
			return s.punched, errors.WithStack(err)
		}
		start, end, err := dataSection(s.fd, off, size)
		if err != nil {
			return s.punched, err
		}
		if start >= size {
			break
		}
		if start > off {
			// Holes are already deallocated.
			if err := s.flush(); err != nil {
				return s.punched, err
			}
			off = RoundDown(start, bs)
		}

		n, err := buf.ReadAtFd(s.fd, cfg.ChunkSize, off)
		if err != nil {
			return s.punched, err
		}
		if n == 0 {
			break
		}
		// Stop at the next hole, keeping off block aligned.
		n = int(min(int64(n), RoundUp(end-off, bs)))
		data := buf.Bytes()
		for i := 0; i < n; i += cfg.BlockSize {
			stop := min(i+cfg.BlockSize, n)
			if IsZero(data[i:stop]) {
				s.extend(off+int64(i), off+int64(stop))
			} else if err := s.flush(); err != nil {
				return s.punched, err
			}
		}
		off += int64(n)
	}
	if err := s.flush(); err != nil {
		return s.punched, err
	}

	log.Info("Sparsified file", "path", f.Name(), "size", size, "punched", s.punched)
	return s.punched, nil
}

// sparsifier accumulates a run of zero blocks.
type sparsifier struct {
	fd         int
	blockSize  int64
	start, end int64 // current run, start < 0 if none
	punched    int64
}

func (s *sparsifier) extend(start, end int64) {
	if s.start < 0 {
		s.start = start
	}
	s.end = end
}

func (s *sparsifier) flush() error {
	if s.start < 0 {
		return nil
	}
	// A short block at the end of the file is left alone.
	off, length, ok := alignRange(s.start, s.end-s.start, s.blockSize)
	s.start = -1
	if !ok {
		return nil
	}
	if err := PunchHole(s.fd, off, length); err != nil {
		return err
	}
	s.punched += length
	return nil
}
