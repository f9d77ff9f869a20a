package stats

import "bufio"
import "encoding/binary"
import "fmt"
import "io"
import "os"
import "sort"

import "github.com/golang/snappy"
import "github.com/klauspost/compress/zstd"

import "github.com/neurlang/rbnc/table"

// Compression selects the block compression of a table file
type Compression byte

const (
	None Compression = iota
	Snappy
	Zstd
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// ParseCompression parses none, snappy or zstd
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return None, nil
	case "snappy":
		return Snappy, nil
	case "zstd":
		return Zstd, nil
	}
	return None, fmt.Errorf("unknown compression %q", s)
}

var magic = [4]byte{'R', 'B', 'N', 'C'}

const version = 1

// Write writes partials as a table file: the magic, the version, the
// compression, then the compressed partial count and partials sorted by member.
func Write(w io.Writer, partials []Partial, c Compression) error {
	if _, err := w.Write(append(magic[:], version, byte(c))); err != nil {
		return err
	}
	var (
		body   io.Writer
		finish func() error
	)
	switch c {
	case None:
		bw := bufio.NewWriter(w)
		body, finish = bw, bw.Flush
	case Snappy:
		sw := snappy.NewBufferedWriter(w)
		body, finish = sw, sw.Close
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		body, finish = zw, zw.Close
	default:
		return fmt.Errorf("unknown compression %d", c)
	}

	if err := writeBody(body, partials); err != nil {
		// release the compressor, its own error is the same write failure
		finish()
		return err
	}
	return finish()
}

func writeBody(body io.Writer, partials []Partial) error {
	sorted := append([]Partial(nil), partials...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Member < sorted[j].Member })

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(sorted)))
	if _, err := body.Write(count[:]); err != nil {
		return err
	}
	for _, p := range sorted {
		if err := p.Encode(body); err != nil {
			return fmt.Errorf("member %d: %w", p.Member, err)
		}
	}
	return nil
}

// Read reads a table file written by Write
func Read(r io.Reader) ([]Partial, error) {
	var head [6]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, &table.CorruptTableError{Reason: "reading file header", Cause: err}
	}
	if [4]byte(head[:4]) != magic {
		return nil, &table.CorruptTableError{Reason: fmt.Sprintf("bad magic %q", head[:4])}
	}
	if head[4] != version {
		return nil, &table.CorruptTableError{Reason: fmt.Sprintf("unsupported version %d", head[4])}
	}
	var body io.Reader
	switch Compression(head[5]) {
	case None:
		body = bufio.NewReader(r)
	case Snappy:
		body = snappy.NewReader(r)
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		body = zr
	default:
		return nil, &table.CorruptTableError{Reason: fmt.Sprintf("unknown compression %d", head[5])}
	}
	var count [4]byte
	if _, err := io.ReadFull(body, count[:]); err != nil {
		return nil, &table.CorruptTableError{Reason: "reading partial count", Cause: err}
	}
	n := int32(binary.BigEndian.Uint32(count[:]))
	if n < 0 {
		return nil, &table.CorruptTableError{Reason: fmt.Sprintf("negative partial count %d", n)}
	}
	var out = make([]Partial, 0, min(int(n), 1<<10))
	for i := 0; i < int(n); i++ {
		p, err := Decode(body)
		if err != nil {
			return nil, fmt.Errorf("partial %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// WriteFile writes partials to a table file
func WriteFile(name string, partials []Partial, c Compression) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	err = Write(file, partials, c)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadFile reads partials from a table file
func ReadFile(name string) ([]Partial, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}
