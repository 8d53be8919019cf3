package blkio

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsBlockDevice(t *testing.T) {
	path := writeFile(t, "file", nil)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	blk, err := IsBlockDevice(f)
	require.NoError(t, err)
	require.False(t, blk)

	null, err := os.Open(os.DevNull)
	require.NoError(t, err)
	defer null.Close()

	// A character device is not a block device.
	blk, err = IsBlockDevice(null)
	require.NoError(t, err)
	require.False(t, blk)
}

func TestDetectBlockSize_Buffered(t *testing.T) {
	path := writeFile(t, "file", blocks('x', 4096, 2))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	bs, err := DetectBlockSize(f)
	require.NoError(t, err)
	require.Equal(t, fallbackBlockSize, bs)
}

func TestDetectBlockSize_Direct(t *testing.T) {
	path := writeFile(t, "file", blocks('x', 4096, 2))
	f := openDirect(t, path, "r")

	bs, err := DetectBlockSize(f)
	require.NoError(t, err)
	require.Contains(t, []int{BlockSize, fallbackBlockSize}, bs)
}

func TestDetectBlockSize_Closed(t *testing.T) {
	path := writeFile(t, "file", nil)
	f, err := os.Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = DetectBlockSize(f)
	require.Error(t, err)
}

func TestDirectIOAlignment(t *testing.T) {
	path := writeFile(t, "file", nil)

	mem, offset, err := DirectIOAlignment(path)
	skipIfNotSupported(t, err, "statx(STATX_DIOALIGN)")
	require.NoError(t, err)
	require.Positive(t, mem)
	require.Positive(t, offset)
}
