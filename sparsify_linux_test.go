//go:build linux

package blkio

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func openRW(t *testing.T, data []byte) *os.File {
	t.Helper()
	path := writeFile(t, "image", data)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	require.NoError(t, f.Sync())
	return f
}

func TestSparsify(t *testing.T) {
	const bs = 4096
	// data, 2 zero blocks, data, 3 zero blocks, data
	var data []byte
	data = append(data, blocks('a', bs, 1)...)
	data = append(data, make([]byte, 2*bs)...)
	data = append(data, blocks('b', bs, 1)...)
	data = append(data, make([]byte, 3*bs)...)
	data = append(data, blocks('c', bs, 1)...)

	for _, chunk := range []int{bs, 2 * bs, 1024 * 1024} {
		f := openRW(t, data)
		skipWithoutPunchHole(t)

		punched, err := Sparsify(context.Background(), f, WithChunkSize(chunk))
		require.NoError(t, err, "chunk=%d", chunk)
		require.Equal(t, int64(5*bs), punched, "chunk=%d", chunk)

		require.Equal(t, int64(len(data)), fileSize(t, f))
		require.Equal(t, data, readAll(t, f, len(data)))
	}
}

func TestSparsify_Deallocates(t *testing.T) {
	const bs = 4096
	data := append(blocks('a', bs, 1), make([]byte, 256*bs)...)
	f := openRW(t, data)
	skipWithoutPunchHole(t)

	before, err := Allocated(int(f.Fd()))
	require.NoError(t, err)

	punched, err := Sparsify(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, int64(256*bs), punched)

	after, err := Allocated(int(f.Fd()))
	require.NoError(t, err)
	require.Less(t, after, before)
}

func TestSparsify_AllZero(t *testing.T) {
	f := openRW(t, make([]byte, 64*1024))
	skipWithoutPunchHole(t)

	punched, err := Sparsify(context.Background(), f, WithChunkSize(16*1024))
	require.NoError(t, err)
	require.Equal(t, int64(64*1024), punched)
	require.True(t, IsZero(readAll(t, f, 64*1024)))
}

func TestSparsify_NoZeroes(t *testing.T) {
	data := blocks('x', 4096, 16)
	f := openRW(t, data)

	punched, err := Sparsify(context.Background(), f)
	require.NoError(t, err)
	require.Zero(t, punched)
	require.Equal(t, data, readAll(t, f, len(data)))
}

func TestSparsify_PartialTail(t *testing.T) {
	const bs = 4096
	// Zero run ending in a short block at end of file.
	data := append(blocks('a', bs, 1), make([]byte, bs+1000)...)
	f := openRW(t, data)
	skipWithoutPunchHole(t)

	punched, err := Sparsify(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, int64(bs), punched)
	require.Equal(t, int64(len(data)), fileSize(t, f))
	require.Equal(t, data, readAll(t, f, len(data)))
}

func TestSparsify_Empty(t *testing.T) {
	f := openRW(t, nil)

	punched, err := Sparsify(context.Background(), f)
	require.NoError(t, err)
	require.Zero(t, punched)
}

func TestSparsify_Canceled(t *testing.T) {
	f := openRW(t, make([]byte, 64*1024))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	punched, err := Sparsify(ctx, f)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, punched)
}

func TestSparsify_InvalidOptions(t *testing.T) {
	f := openRW(t, make([]byte, 4096))

	_, err := Sparsify(context.Background(), f, WithSparsifyBlockSize(100))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Sparsify(context.Background(), f, WithChunkSize(4096+512))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Sparsify(context.Background(), f, WithChunkSize(0))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSparsify_Direct(t *testing.T) {
	const bs = 4096
	data := append(blocks('a', bs, 1), make([]byte, 2*bs)...)
	path := writeFile(t, "image", data)
	f := openDirect(t, path, "r+")
	skipWithoutPunchHole(t)

	punched, err := Sparsify(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, int64(2*bs), punched)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestSparsify_SkipsHoles(t *testing.T) {
	skipWithoutPunchHole(t)
	f := openRW(t, nil)
	require.NoError(t, f.Truncate(1024*1024))
	fd := int(f.Fd())

	before, err := Allocated(fd)
	require.NoError(t, err)

	punched, err := Sparsify(context.Background(), f)
	require.NoError(t, err)
	require.Zero(t, punched)

	after, err := Allocated(fd)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSparsify_DataBetweenHoles(t *testing.T) {
	const bs = 4096
	skipWithoutPunchHole(t)
	f := openRW(t, nil)
	require.NoError(t, f.Truncate(1024*1024))

	// hole, data block, written zero block, data block, hole
	_, err := f.WriteAt(blocks('a', bs, 1), 256*1024)
	require.NoError(t, err)
	_, err = f.WriteAt(make([]byte, bs), 256*1024+bs)
	require.NoError(t, err)
	_, err = f.WriteAt(blocks('b', bs, 1), 256*1024+2*bs)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	want := readAll(t, f, 1024*1024)

	for _, chunk := range []int{bs, 1024 * 1024} {
		punched, err := Sparsify(context.Background(), f, WithChunkSize(chunk))
		require.NoError(t, err)
		// Only the written zero block is counted, on the first pass.
		if chunk == bs {
			require.Equal(t, int64(bs), punched)
		} else {
			require.Zero(t, punched)
		}
		require.Equal(t, int64(1024*1024), fileSize(t, f))
		require.Equal(t, want, readAll(t, f, 1024*1024))
	}
}
