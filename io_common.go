package blkio

import (
	"unsafe"
)

// BlockSize is the fixed alignment unit for buffer sizes, alignments and
// transfer counts. Since Linux 2.6 alignment to the logical block size of the
// underlying storage, typically 512 bytes, suffices for O_DIRECT.
const BlockSize = 512

// RoundUp rounds n up to a multiple of size.
func RoundUp(n, size int64) int64 {
	n += size - 1
	return n - n%size
}

// RoundDown rounds n down to a multiple of size.
func RoundDown(n, size int64) int64 {
	return n - n%size
}

// IsAligned reports whether n is a multiple of size.
func IsAligned(n, size int64) bool {
	return n%size == 0
}

// alignRange shrinks [offset, offset+length) to the whole blocks it contains.
// Returns (alignedOffset, alignedLength, ok); ok is false if no complete block
// is left.
func alignRange(offset, length, blockSize int64) (int64, int64, bool) {
	// Round offset UP so the range does not reach into the previous block.
	alignedOffset := RoundUp(offset, blockSize)
	length -= alignedOffset - offset

	if length < blockSize {
		return 0, 0, false
	}

	// Round length DOWN so the range does not reach into the next block.
	return alignedOffset, RoundDown(length, blockSize), true
}

// isAlignedAddr checks if block starts at a multiple of align in memory.
func isAlignedAddr(block []byte, align int) bool {
	if len(block) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&block[0]))%uintptr(align) == 0
}

// validBlockMultiple reports whether n is a positive multiple of BlockSize.
func validBlockMultiple(n int) bool {
	return n > 0 && n%BlockSize == 0
}
