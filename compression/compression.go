// Package compression wraps streaming compressors used to export images.
package compression

import (
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

type Codec uint8
type Level uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLZ4
	CodecS2
)

const (
	LevelDefault Level = iota
	LevelSpeed
	LevelBest
)

// ErrUnknownCodec is returned for a codec name or value not listed above.
var ErrUnknownCodec = errors.New("unknown codec")

var codecNames = map[Codec]string{
	CodecNone: "none",
	CodecZstd: "zstd",
	CodecLZ4:  "lz4",
	CodecS2:   "s2",
}

func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return "codec(" + strconv.Itoa(int(c)) + ")"
}

// FileExtension returns the conventional suffix for files written with c,
// empty for CodecNone.
func (c Codec) FileExtension() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecLZ4:
		return ".lz4"
	case CodecS2:
		return ".s2"
	default:
		return ""
	}
}

// ParseCodec returns the codec called name, ignoring case.
func ParseCodec(name string) (Codec, error) {
	for c, n := range codecNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownCodec, "%q", name)
}

// NewWriter returns a writer compressing to w. Close flushes buffered data
// but does not close w.
func NewWriter(w io.Writer, codec Codec, level Level) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zLevel(level)))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return zw, nil
	case CodecLZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lzLevel(level))); err != nil {
			return nil, errors.WithStack(err)
		}
		return lw, nil
	case CodecS2:
		return s2.NewWriter(w, s2Options(level)...), nil
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "%d", codec)
	}
}

// NewReader returns a reader decompressing r. Close releases decoder
// resources but does not close r.
func NewReader(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return zr.IOReadCloser(), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CodecS2:
		return io.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "%d", codec)
	}
}

func zLevel(l Level) zstd.EncoderLevel {
	switch l {
	case LevelSpeed:
		return zstd.SpeedFastest
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// lzLevel maps our normalized levels to LZ4 specific levels.
// LZ4 levels above Fast use High Compression (HC).
func lzLevel(l Level) lz4.CompressionLevel {
	switch l {
	case LevelSpeed:
		return lz4.Fast
	case LevelBest:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func s2Options(l Level) []s2.WriterOption {
	switch l {
	case LevelBest:
		return []s2.WriterOption{s2.WriterBestCompression()}
	case LevelSpeed:
		return nil
	default:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
