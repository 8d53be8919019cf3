package blkio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openDirect opens path with O_DIRECT, skipping the test if the filesystem
// does not support it (tmpfs before Linux 6.6).
func openDirect(t *testing.T, path, mode string) *os.File {
	t.Helper()
	f, err := OpenDirect(path, mode)
	if errors.Is(err, unix.EINVAL) {
		t.Skipf("filesystem at %s does not support O_DIRECT", filepath.Dir(path))
	}
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// writeFile creates a file in a temporary directory holding data.
func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// blocks returns count blocks of size bytes, each filled with b.
func blocks(b byte, size, count int) []byte {
	return bytes.Repeat([]byte{b}, size*count)
}

// readAll reads the first size bytes of f.
func readAll(t *testing.T, f *os.File, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	_, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	return buf
}

// skipWithoutPunchHole skips the test if the temporary directory filesystem
// cannot punch holes.
func skipWithoutPunchHole(t *testing.T) {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "probe"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(8192))
	skipIfNotSupported(t, PunchHole(int(f.Fd()), 0, 4096), "punch hole")
}

// skipIfNotSupported skips the test when err means the filesystem lacks the
// operation.
func skipIfNotSupported(t *testing.T, err error, what string) {
	t.Helper()
	if IsNotSupported(err) {
		t.Skipf("%s not supported: %v", what, err)
	}
}
