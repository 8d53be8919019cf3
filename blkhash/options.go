package blkhash

import (
	"github.com/miretskiy/blkio"
	"github.com/miretskiy/blkio/units"
	"github.com/pkg/errors"
)

// config holds checksum parameters
type config struct {
	Algorithm    string
	BlockSize    int
	DetectZeroes bool
	Workers      int
	DirectIO     bool
}

// Option configures a Hash or Checksum
type Option interface {
	apply(*config)
}

// funcOpt wraps a function as an Option
type funcOpt func(*config)

func (f funcOpt) apply(c *config) {
	f(c)
}

// WithAlgorithm sets the hash algorithm, Blake2b or XXHash (default: Blake2b)
func WithAlgorithm(name string) Option {
	return funcOpt(func(c *config) {
		c.Algorithm = name
	})
}

// WithBlockSize sets the block size (default: 4 MiB). Checksums computed with
// different block sizes differ. Must be a multiple of 512 bytes.
func WithBlockSize(n int) Option {
	return funcOpt(func(c *config) {
		c.BlockSize = n
	})
}

// WithDetectZeroes enables zero block detection in Checksum (default: true).
// The checksum is the same either way; detection only makes it faster.
func WithDetectZeroes(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.DetectZeroes = enabled
	})
}

// WithWorkers sets how many blocks Checksum reads and hashes concurrently
// (default: 4). Each worker owns one block sized buffer.
func WithWorkers(n int) Option {
	return funcOpt(func(c *config) {
		c.Workers = n
	})
}

// WithDirectIO reads the image with O_DIRECT, bypassing the page cache
// (default: false).
func WithDirectIO(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.DirectIO = enabled
	})
}

// These settings give the best results for a Fedora image served over NBD.
func defaultConfig() config {
	return config{
		Algorithm:    Blake2b,
		BlockSize:    int(4 * units.MiB),
		DetectZeroes: true,
		Workers:      4,
	}
}

func (c config) validate() error {
	if c.BlockSize <= 0 || c.BlockSize%blkio.BlockSize != 0 {
		return errors.Wrapf(blkio.ErrInvalidArgument,
			"block size must be non-zero multiple of %d bytes", blkio.BlockSize)
	}
	if c.Workers <= 0 {
		return errors.Wrapf(blkio.ErrInvalidArgument, "workers must be positive")
	}
	return nil
}
