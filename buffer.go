package blkio

import (
	"io"
	"unsafe"

	"golang.org/x/sys/unix"
)

// region is an anonymous memory mapping with an aligned window into it.
type region struct {
	raw  []byte // whole mapping, released with munmap
	data []byte // aligned window of the requested capacity
}

// mapRegion maps size bytes starting at a multiple of align.
//
// The mapping is MAP_SHARED: with MAP_PRIVATE, direct I/O racing with a fork
// in another thread may corrupt data in the parent or the child. See open(2).
func mapRegion(size, align int) (*region, error) {
	length := size
	if unix.Getpagesize()%align != 0 {
		// mmap only guarantees page alignment; leave room to slide the window.
		length += align
	}
	raw, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, newOpError(ErrAllocationFailed, "mmap", err)
	}

	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % uintptr(align)); rem != 0 {
		off = align - rem
	}
	return &region{raw: raw, data: raw[off : off+size : off+size]}, nil
}

func (r *region) release() error {
	raw := r.raw
	r.raw, r.data = nil, nil
	if err := unix.Munmap(raw); err != nil {
		return newOpError(ErrIO, "munmap", err)
	}
	return nil
}

// Buffer is a memory region aligned for direct I/O.
//
// Capacity and alignment are multiples of BlockSize. Len tracks how much of
// the region is meaningful; it is set by the last CopyFrom, ReadFd, ReadAtFd
// or SetLen. A Buffer has a single owner and must not be used from several
// goroutines at once.
//
// The region lives outside the Go heap and is only released by Close or
// Reset. A Buffer dropped without Close leaks its mapping.
type Buffer struct {
	r         *region
	alignment int
	length    int
}

// NewBuffer allocates a buffer of size bytes. The start address is aligned to
// 512 bytes unless WithAlignment says otherwise.
func NewBuffer(size int, opts ...BufferOption) (*Buffer, error) {
	cfg := defaultBufferConfig()
	for _, opt := range opts {
		opt.applyBuffer(&cfg)
	}

	if !validBlockMultiple(size) {
		return nil, invalidArgument("size must be non-zero multiple of %d bytes", BlockSize)
	}
	if !validBlockMultiple(cfg.Alignment) {
		return nil, invalidArgument("align must be non-zero multiple of %d bytes", BlockSize)
	}

	r, err := mapRegion(size, cfg.Alignment)
	if err != nil {
		return nil, err
	}
	return &Buffer{r: r, alignment: cfg.Alignment}, nil
}

// Reset replaces the region with a new one of size bytes. The new region is
// allocated before the old one is released; if allocation fails the buffer
// keeps its old region and contents.
func (b *Buffer) Reset(size int, opts ...BufferOption) error {
	nb, err := NewBuffer(size, opts...)
	if err != nil {
		return err
	}
	old := b.r
	b.r, b.alignment, b.length = nb.r, nb.alignment, 0
	if old != nil {
		return old.release()
	}
	return nil
}

// Close releases the region. Calling Close more than once is a no-op.
func (b *Buffer) Close() error {
	if b.r == nil {
		return nil
	}
	r := b.r
	b.r, b.length = nil, 0
	return r.release()
}

// Cap returns the buffer capacity in bytes, 0 once closed.
func (b *Buffer) Cap() int {
	if b.r == nil {
		return 0
	}
	return len(b.r.data)
}

// Len returns the number of valid bytes.
func (b *Buffer) Len() int { return b.length }

// Alignment returns the memory alignment of the region.
func (b *Buffer) Alignment() int { return b.alignment }

// Bytes returns the valid bytes. The slice aliases the region and is only
// usable until the next transfer or Close.
func (b *Buffer) Bytes() []byte {
	if b.r == nil {
		return nil
	}
	return b.r.data[:b.length]
}

// Buf returns the whole region, for APIs that fill it directly. Report how
// much was filled with SetLen.
func (b *Buffer) Buf() []byte {
	if b.r == nil {
		return nil
	}
	return b.r.data
}

// SetLen sets the number of valid bytes.
func (b *Buffer) SetLen(n int) error {
	if b.r == nil {
		return ErrClosed
	}
	if n < 0 || n > len(b.r.data) {
		return outOfRange("length %d out of range [0, %d]", n, len(b.r.data))
	}
	b.length = n
	return nil
}

// CopyFrom copies data into the buffer and returns the new valid length.
// Data longer than the capacity is rejected and the buffer is left unchanged.
func (b *Buffer) CopyFrom(data []byte) (int, error) {
	if b.r == nil {
		return 0, ErrClosed
	}
	if len(data) > len(b.r.data) {
		return 0, outOfRange("data out of range")
	}
	b.length = copy(b.r.data, data)
	return b.length, nil
}

// Fill reads up to Cap bytes from fd into the buffer.
func (b *Buffer) Fill(fd int) (int, error) {
	return b.ReadFd(fd, b.Cap())
}

// ReadFd performs one read(2) of up to count bytes from fd into the buffer
// and returns the number of bytes read, 0 at end of file. Interrupted reads
// are retried.
func (b *Buffer) ReadFd(fd int, count int) (int, error) {
	if err := b.checkCount(count); err != nil {
		return 0, err
	}
	n, err := retryEINTR(func() (int, error) {
		return unix.Read(fd, b.r.data[:count])
	})
	if err != nil {
		return 0, newOpError(ErrIO, "read", err)
	}
	b.length = n
	return n, nil
}

// ReadAtFd is like ReadFd but reads at off with pread(2), leaving the file
// position alone. off must be a multiple of BlockSize.
func (b *Buffer) ReadAtFd(fd int, count int, off int64) (int, error) {
	if err := b.checkCount(count); err != nil {
		return 0, err
	}
	if off < 0 || !IsAligned(off, BlockSize) {
		return 0, invalidArgument("offset must be a multiple of %d bytes", BlockSize)
	}
	n, err := retryEINTR(func() (int, error) {
		return unix.Pread(fd, b.r.data[:count], off)
	})
	if err != nil {
		return 0, newOpError(ErrIO, "pread", err)
	}
	b.length = n
	return n, nil
}

// WriteTo writes the valid bytes to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes())
	return int64(n), err
}

func (b *Buffer) checkCount(count int) error {
	if b.r == nil {
		return ErrClosed
	}
	if count > len(b.r.data) {
		return outOfRange("count out of range")
	}
	if !validBlockMultiple(count) {
		return invalidArgument("count must be non-zero multiple of %d bytes", BlockSize)
	}
	return nil
}

func retryEINTR(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if err != unix.EINTR {
			return n, err
		}
	}
}
