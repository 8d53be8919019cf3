package blkio

import (
	"github.com/miretskiy/blkio/units"
	"github.com/ncw/directio"
)

// bufferConfig holds Buffer construction parameters
type bufferConfig struct {
	Alignment int
}

// BufferOption configures a Buffer
type BufferOption interface {
	applyBuffer(*bufferConfig)
}

type bufferOpt func(*bufferConfig)

func (f bufferOpt) applyBuffer(c *bufferConfig) {
	f(c)
}

// WithAlignment sets the memory alignment of the buffer (default: 512).
// Must be a positive multiple of 512.
func WithAlignment(n int) BufferOption {
	return bufferOpt(func(c *bufferConfig) {
		c.Alignment = n
	})
}

func defaultBufferConfig() bufferConfig {
	return bufferConfig{Alignment: BlockSize}
}

// openConfig holds OpenDirect flags
type openConfig struct {
	Direct bool
	Sync   bool
}

// OpenOption configures OpenDirect
type OpenOption interface {
	applyOpen(*openConfig)
}

type openOpt func(*openConfig)

func (f openOpt) applyOpen(c *openConfig) {
	f(c)
}

// WithSync completes writes according to synchronized I/O file integrity
// completion (O_SYNC).
func WithSync() OpenOption {
	return openOpt(func(c *openConfig) {
		c.Sync = true
	})
}

// WithoutDirect opens the file through the page cache.
func WithoutDirect() OpenOption {
	return openOpt(func(c *openConfig) {
		c.Direct = false
	})
}

// zeroerConfig holds Zeroer parameters
type zeroerConfig struct {
	Sparse    bool
	BlockSize int
}

// ZeroerOption configures a Zeroer
type ZeroerOption interface {
	applyZeroer(*zeroerConfig)
}

type zeroerOpt func(*zeroerConfig)

func (f zeroerOpt) applyZeroer(c *zeroerConfig) {
	f(c)
}

// WithSparse deallocates space when zeroing a regular file, if possible
// (default: false, zeroing allocates space).
func WithSparse(enabled bool) ZeroerOption {
	return zeroerOpt(func(c *zeroerConfig) {
		c.Sparse = enabled
	})
}

// WithZeroerBlockSize sets the alignment required from Zero ranges
// (default: detected with DetectBlockSize).
func WithZeroerBlockSize(n int) ZeroerOption {
	return zeroerOpt(func(c *zeroerConfig) {
		c.BlockSize = n
	})
}

// sparsifyConfig holds Sparsify parameters
type sparsifyConfig struct {
	ChunkSize int
	BlockSize int
}

// SparsifyOption configures Sparsify
type SparsifyOption interface {
	applySparsify(*sparsifyConfig)
}

type sparsifyOpt func(*sparsifyConfig)

func (f sparsifyOpt) applySparsify(c *sparsifyConfig) {
	f(c)
}

// WithChunkSize sets how much data is read per syscall (default: 1 MiB).
// Must be a multiple of the block size.
func WithChunkSize(n int) SparsifyOption {
	return sparsifyOpt(func(c *sparsifyConfig) {
		c.ChunkSize = n
	})
}

// WithSparsifyBlockSize sets the granularity of zero detection and hole
// punching (default: 4096).
func WithSparsifyBlockSize(n int) SparsifyOption {
	return sparsifyOpt(func(c *sparsifyConfig) {
		c.BlockSize = n
	})
}

func defaultSparsifyConfig() sparsifyConfig {
	return sparsifyConfig{
		ChunkSize: int(units.MiB),
		BlockSize: directio.BlockSize,
	}
}
