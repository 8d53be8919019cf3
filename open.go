package blkio

import (
	"os"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
)

// OpenDirect opens path for direct I/O.
//
// Mode is one of "r" (read only), "w" (write only, created and truncated) or
// "r+" (read write). Reading and writing the returned file requires aligned
// buffers, offsets and counts; use a Buffer.
func OpenDirect(path string, mode string, opts ...OpenOption) (*os.File, error) {
	cfg := openConfig{Direct: true}
	for _, opt := range opts {
		opt.applyOpen(&cfg)
	}

	var flag int
	switch mode {
	case "r":
		flag = os.O_RDONLY
	case "w":
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case "r+":
		flag = os.O_RDWR
	default:
		return nil, invalidArgument("unsupported mode %q", mode)
	}
	if cfg.Sync {
		flag |= os.O_SYNC
	}

	var (
		f   *os.File
		err error
	)
	if cfg.Direct {
		f, err = directio.OpenFile(path, flag, 0o644)
	} else {
		f, err = os.OpenFile(path, flag, 0o644)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open mode=%s direct=%t", mode, cfg.Direct)
	}
	return f, nil
}
