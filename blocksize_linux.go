//go:build linux

package blkio

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DirectIOAlignment returns the memory and file offset alignment required for
// direct I/O on path, as reported by statx(STATX_DIOALIGN) on Linux 6.1 and
// later. Returns ErrNotSupported if the kernel or filesystem does not report
// it.
func DirectIOAlignment(path string) (mem, offset uint32, err error) {
	var stx unix.Statx_t
	flags := unix.AT_STATX_SYNC_AS_STAT | unix.AT_NO_AUTOMOUNT
	if err := unix.Statx(unix.AT_FDCWD, path, flags, unix.STATX_DIOALIGN, &stx); err != nil {
		if IsNotSupported(err) {
			return 0, 0, errors.WithStack(ErrNotSupported)
		}
		return 0, 0, newOpError(ErrIO, "statx", err)
	}
	if stx.Mask&unix.STATX_DIOALIGN == 0 || stx.Dio_mem_align == 0 {
		return 0, 0, errors.WithStack(ErrNotSupported)
	}
	return stx.Dio_mem_align, stx.Dio_offset_align, nil
}
