package main

import (
	"context"
	"io"
	"os"

	"github.com/miretskiy/blkio"
	"github.com/miretskiy/blkio/compression"
	"github.com/miretskiy/blkio/units"
	"github.com/pkg/errors"
)

const exportChunk = int(units.MiB)

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// exportImage copies the first size bytes of src to dst, compressed with
// codec. Returns the number of bytes written to dst.
func exportImage(ctx context.Context, src *os.File, size int64, dst string, codec compression.Codec) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer out.Close()

	cw := &countingWriter{w: out}
	zw, err := compression.NewWriter(cw, codec, compression.LevelDefault)
	if err != nil {
		return 0, err
	}

	buf, err := blkio.NewBuffer(exportChunk, blkio.WithAlignment(4096))
	if err != nil {
		return 0, err
	}
	defer buf.Close()

	fd := int(src.Fd())
	for off := int64(0); off < size; {
		if err := ctx.Err(); err != nil {
			return cw.n, errors.WithStack(err)
		}
		n, err := buf.ReadAtFd(fd, exportChunk, off)
		if err != nil {
			return cw.n, err
		}
		if n == 0 {
			break
		}
		if rem := size - off; int64(n) > rem {
			if err := buf.SetLen(int(rem)); err != nil {
				return cw.n, err
			}
		}
		written, err := buf.WriteTo(zw)
		if err != nil {
			return cw.n, errors.Wrapf(err, "export at offset %d", off)
		}
		off += written
	}

	if err := zw.Close(); err != nil {
		return cw.n, errors.WithStack(err)
	}
	if err := out.Sync(); err != nil {
		return cw.n, errors.WithStack(err)
	}
	return cw.n, errors.WithStack(out.Close())
}
