package blkio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocationMode_String(t *testing.T) {
	for mode, want := range map[AllocationMode]string{
		0:                            "ALLOCATE",
		ModeKeepSize:                 "KEEP_SIZE",
		ModePunchHole | ModeKeepSize: "KEEP_SIZE|PUNCH_HOLE",
		ModeZeroRange:                "ZERO_RANGE",
		ModeZeroRange | ModeKeepSize: "KEEP_SIZE|ZERO_RANGE",
		ModeCollapseRange:            "COLLAPSE_RANGE",
		ModeZeroRange | 0x40:         "ZERO_RANGE|0x40",
	} {
		require.Equal(t, want, mode.String())
	}
}
