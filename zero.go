package blkio

import "bytes"

// IsZero returns true if buf is full of zeros. An empty buffer is zero.
//
// Based on Rusty Russell's memeqzero: once the first 16 bytes are known to be
// zero, the rest of the buffer is compared with itself shifted by 16 bytes,
// so no zero constant has to be kept around.
func IsZero(buf []byte) bool {
	n := min(len(buf), 16)
	for i := 0; i < n; i++ {
		if buf[i] != 0 {
			return false
		}
	}
	if len(buf) <= 16 {
		return true
	}
	return bytes.Equal(buf[16:], buf[:len(buf)-16])
}
