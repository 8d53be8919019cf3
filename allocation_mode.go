package blkio

import (
	"strconv"
	"strings"
)

// AllocationMode selects the operation performed by Fallocate. Flags may be
// combined with |.
type AllocationMode uint32

// Values from linux/falloc.h.
const (
	// ModeKeepSize keeps the file size unchanged.
	ModeKeepSize AllocationMode = 0x01
	// ModePunchHole deallocates space, creating a hole. Must be combined
	// with ModeKeepSize.
	ModePunchHole AllocationMode = 0x02
	// ModeCollapseRange removes the range without leaving a hole, shifting
	// the data after it.
	ModeCollapseRange AllocationMode = 0x08
	// ModeZeroRange zeroes the range, allocating space unless combined with
	// ModeKeepSize.
	ModeZeroRange AllocationMode = 0x10
)

func (m AllocationMode) String() string {
	if m == 0 {
		return "ALLOCATE"
	}
	var names []string
	for _, f := range []struct {
		mode AllocationMode
		name string
	}{
		{ModeKeepSize, "KEEP_SIZE"},
		{ModePunchHole, "PUNCH_HOLE"},
		{ModeCollapseRange, "COLLAPSE_RANGE"},
		{ModeZeroRange, "ZERO_RANGE"},
	} {
		if m&f.mode != 0 {
			names = append(names, f.name)
			m &^= f.mode
		}
	}
	if m != 0 {
		names = append(names, "0x"+strconv.FormatUint(uint64(m), 16))
	}
	return strings.Join(names, "|")
}
