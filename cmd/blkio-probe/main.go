package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/miretskiy/blkio"
	"github.com/miretskiy/blkio/blkhash"
	"github.com/miretskiy/blkio/compression"
	flag "github.com/spf13/pflag"
)

func main() {
	// Define flags
	path := flag.String("path", "", "Path to a file or block device (required)")
	checksum := flag.Bool("checksum", false, "Print the block based checksum of the image")
	algorithm := flag.String("algorithm", blkhash.Blake2b, "Checksum algorithm (blake2b or xxhash)")
	sparsify := flag.Bool("sparsify", false, "Punch holes over zero blocks of a regular file")
	export := flag.String("export", "", "Write a compressed copy of the image to this path")
	compress := flag.String("compress", "zstd", "Export codec (none, zstd, lz4 or s2)")
	direct := flag.Bool("direct", true, "Open with O_DIRECT")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Validate required flags
	if *path == "" {
		fmt.Fprintln(os.Stderr, "Error: --path is required")
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	blkio.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	codec, err := compression.ParseCodec(*compress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		path:      *path,
		direct:    *direct,
		checksum:  *checksum,
		algorithm: *algorithm,
		sparsify:  *sparsify,
		export:    *export,
		codec:     codec,
	}
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if *debug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	path      string
	direct    bool
	checksum  bool
	algorithm string
	sparsify  bool
	export    string
	codec     compression.Codec
}

func run(ctx context.Context, o options) error {
	mode := "r"
	if o.sparsify {
		mode = "r+"
	}
	var openOpts []blkio.OpenOption
	if !o.direct {
		openOpts = append(openOpts, blkio.WithoutDirect())
	}
	f, err := blkio.OpenDirect(o.path, mode, openOpts...)
	if err != nil {
		return err
	}
	defer f.Close()

	fd := int(f.Fd())
	blk, err := blkio.IsBlockDevice(f)
	if err != nil {
		return err
	}

	var size int64
	if blk {
		logical, err := blkio.LogicalBlockSize(fd)
		if err != nil {
			return err
		}
		physical, err := blkio.PhysicalBlockSize(fd)
		if err != nil {
			return err
		}
		devSize, err := blkio.DeviceSize(fd)
		if err != nil {
			return err
		}
		size = int64(devSize)
		fmt.Printf("kind:                block device\n")
		fmt.Printf("logical block size:  %d\n", logical)
		fmt.Printf("physical block size: %d\n", physical)
		fmt.Printf("size:                %s (%d bytes)\n", humanize.IBytes(devSize), devSize)
	} else {
		bs, err := blkio.DetectBlockSize(f)
		if err != nil {
			return err
		}
		fi, err := f.Stat()
		if err != nil {
			return err
		}
		size = fi.Size()
		allocated, err := blkio.Allocated(fd)
		if err != nil {
			return err
		}
		fmt.Printf("kind:                file\n")
		fmt.Printf("block size:          %d\n", bs)
		if mem, off, err := blkio.DirectIOAlignment(o.path); err == nil {
			fmt.Printf("dio alignment:       mem=%d offset=%d\n", mem, off)
		}
		fmt.Printf("size:                %s (%d bytes)\n", humanize.IBytes(uint64(fi.Size())), fi.Size())
		fmt.Printf("allocated:           %s (%d bytes)\n", humanize.IBytes(uint64(allocated)), allocated)
	}

	if o.sparsify {
		if blk {
			return fmt.Errorf("cannot sparsify a block device")
		}
		punched, err := blkio.Sparsify(ctx, f)
		if err != nil {
			return err
		}
		fmt.Printf("punched:             %s (%d bytes)\n", humanize.IBytes(uint64(punched)), punched)
	}

	if o.export != "" {
		written, err := exportImage(ctx, f, size, o.export, o.codec)
		if err != nil {
			return err
		}
		fmt.Printf("exported:            %s (%s, %s)\n", o.export, o.codec, humanize.IBytes(uint64(written)))
	}

	if o.checksum {
		res, err := blkhash.Checksum(ctx, o.path,
			blkhash.WithAlgorithm(o.algorithm),
			blkhash.WithDirectIO(o.direct))
		if err != nil {
			return err
		}
		fmt.Printf("checksum:            %s:%s (block size %s)\n",
			res.Algorithm, res.Checksum, humanize.IBytes(uint64(res.BlockSize)))
	}
	return nil
}
