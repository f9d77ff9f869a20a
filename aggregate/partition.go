package aggregate

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Opener opens the record stream of one partition
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Partition is one shard of the input
type Partition struct {
	Name string
	Open Opener
}

// ReaderPartition wraps an already open reader. It can be opened once.
func ReaderPartition(name string, r io.Reader) Partition {
	return Partition{Name: name, Open: func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}}
}

// FilePartition opens a record file. Files ending in .gz or .zst are
// decompressed on the fly.
func FilePartition(name string) Partition {
	return Partition{Name: name, Open: func(context.Context) (io.ReadCloser, error) {
		return openFile(name)
	}}
}

// FilePartitions gets one partition per file
func FilePartitions(names ...string) (out []Partition) {
	for _, name := range names {
		out = append(out, FilePartition(name))
	}
	return
}

type decompressed struct {
	io.Reader
	closeReader func()
	file        *os.File
}

func (d *decompressed) Close() error {
	if d.closeReader != nil {
		d.closeReader()
	}
	return d.file.Close()
}

func openFile(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &decompressed{Reader: zr, closeReader: func() { zr.Close() }, file: f}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &decompressed{Reader: zr, closeReader: zr.Close, file: f}, nil
	}
	return f, nil
}
