package blkhash

import (
	"context"
	"io"
	"os"

	"github.com/miretskiy/blkio"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result describes a checksum.
type Result struct {
	Algorithm string `json:"algorithm"`
	BlockSize int    `json:"block_size"`
	Checksum  string `json:"checksum"`
}

// Checksum computes the block based checksum of the file at path.
//
// Blocks are read and hashed by concurrent workers, then folded in order, so
// the result equals feeding every block to Hash.Update sequentially.
func Checksum(ctx context.Context, path string, opts ...Option) (Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	h, err := newHash(cfg)
	if err != nil {
		return Result{}, err
	}

	var openOpts []blkio.OpenOption
	if !cfg.DirectIO {
		openOpts = append(openOpts, blkio.WithoutDirect())
	}
	f, err := blkio.OpenDirect(path, "r", openOpts...)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	size, err := imageSize(f)
	if err != nil {
		return Result{}, err
	}
	bs := int64(cfg.BlockSize)
	digests := make([][]byte, (size+bs-1)/bs)

	g, ctx := errgroup.WithContext(ctx)
	blocks := make(chan int)
	g.Go(func() error {
		defer close(blocks)
		for i := range digests {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case blocks <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	fd := int(f.Fd())
	for w := 0; w < min(cfg.Workers, max(len(digests), 1)); w++ {
		g.Go(func() error {
			buf, err := blkio.NewBuffer(cfg.BlockSize, blkio.WithAlignment(4096))
			if err != nil {
				return err
			}
			defer buf.Close()

			for i := range blocks {
				off := int64(i) * bs
				want := int(min(bs, size-off))
				n, err := buf.ReadAtFd(fd, cfg.BlockSize, off)
				if err != nil {
					return err
				}
				if n < want {
					return errors.Wrapf(io.ErrUnexpectedEOF, "block %d: read %d of %d bytes", i, n, want)
				}
				block := buf.Bytes()[:want]
				zero := cfg.DetectZeroes && blkio.IsZero(block)
				switch {
				case zero && want == cfg.BlockSize:
					digests[i] = h.zeroDigest
				case zero:
					digests[i] = h.zeroBlockDigest(want)
				default:
					digests[i] = h.blockDigest(block)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for _, d := range digests {
		h.add(d)
	}
	return Result{
		Algorithm: cfg.Algorithm,
		BlockSize: cfg.BlockSize,
		Checksum:  h.HexDigest(),
	}, nil
}

// imageSize returns the size of a regular file or a block device.
func imageSize(f *os.File) (int64, error) {
	blk, err := blkio.IsBlockDevice(f)
	if err != nil {
		return 0, err
	}
	if blk {
		size, err := blkio.DeviceSize(int(f.Fd()))
		return int64(size), err
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return fi.Size(), nil
}
