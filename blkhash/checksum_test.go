package blkhash

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/miretskiy/blkio"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const testBlockSize = 64 * 1024

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// testImage mixes data blocks, zero blocks and a short tail.
func testImage() []byte {
	var image []byte
	image = append(image, bytes.Repeat([]byte("a"), testBlockSize)...)
	image = append(image, make([]byte, 3*testBlockSize)...)
	image = append(image, bytes.Repeat([]byte("b"), testBlockSize)...)
	image = append(image, make([]byte, testBlockSize/2)...)
	image = append(image, bytes.Repeat([]byte("c"), 1000)...)
	return image
}

func TestChecksum(t *testing.T) {
	image := testImage()
	path := writeImage(t, image)
	want := expected(image, testBlockSize)

	for _, workers := range []int{1, 2, 4, 16} {
		for _, detect := range []bool{true, false} {
			t.Run(fmt.Sprintf("workers=%d/detect=%t", workers, detect), func(t *testing.T) {
				res, err := Checksum(context.Background(), path,
					WithBlockSize(testBlockSize),
					WithWorkers(workers),
					WithDetectZeroes(detect))
				require.NoError(t, err)
				require.Equal(t, Result{
					Algorithm: Blake2b,
					BlockSize: testBlockSize,
					Checksum:  want,
				}, res)
			})
		}
	}
}

func TestChecksum_MatchesHash(t *testing.T) {
	image := testImage()
	path := writeImage(t, image)

	h, err := New(WithBlockSize(testBlockSize), WithAlgorithm(XXHash))
	require.NoError(t, err)
	for off := 0; off < len(image); off += testBlockSize {
		block := image[off:min(off+testBlockSize, len(image))]
		if blkio.IsZero(block) {
			h.Zero(len(block))
		} else {
			h.Update(block)
		}
	}

	res, err := Checksum(context.Background(), path,
		WithBlockSize(testBlockSize), WithAlgorithm(XXHash))
	require.NoError(t, err)
	require.Equal(t, XXHash, res.Algorithm)
	require.Equal(t, h.HexDigest(), res.Checksum)
}

func TestChecksum_Sparse(t *testing.T) {
	// Holes hash like written zeroes.
	const size = 8 * testBlockSize
	path := filepath.Join(t.TempDir(), "sparse")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	res, err := Checksum(context.Background(), path, WithBlockSize(testBlockSize))
	require.NoError(t, err)
	require.Equal(t, expected(make([]byte, size), testBlockSize), res.Checksum)
}

func TestChecksum_Empty(t *testing.T) {
	path := writeImage(t, nil)

	res, err := Checksum(context.Background(), path, WithBlockSize(testBlockSize))
	require.NoError(t, err)
	require.Equal(t, expected(nil, testBlockSize), res.Checksum)
}

func TestChecksum_DefaultBlockSize(t *testing.T) {
	image := testImage()
	path := writeImage(t, image)

	res, err := Checksum(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 4*1024*1024, res.BlockSize)
	require.Equal(t, expected(image, res.BlockSize), res.Checksum)
}

func TestChecksum_DirectIO(t *testing.T) {
	image := testImage()
	path := writeImage(t, image)

	res, err := Checksum(context.Background(), path,
		WithBlockSize(testBlockSize), WithDirectIO(true))
	if blkio.Errno(err) == unix.EINVAL {
		t.Skip("filesystem does not support O_DIRECT")
	}
	require.NoError(t, err)
	require.Equal(t, expected(image, testBlockSize), res.Checksum)
}

func TestChecksum_Canceled(t *testing.T) {
	path := writeImage(t, testImage())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Checksum(ctx, path, WithBlockSize(testBlockSize))
	require.ErrorIs(t, err, context.Canceled)
}

func TestChecksum_Errors(t *testing.T) {
	_, err := Checksum(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := writeImage(t, testImage())
	_, err = Checksum(context.Background(), path, WithAlgorithm("sha1"))
	require.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = Checksum(context.Background(), path, WithBlockSize(1000))
	require.ErrorIs(t, err, blkio.ErrInvalidArgument)
}
