package table

import "bufio"
import "bytes"
import "encoding/binary"
import "errors"
import "fmt"
import "io"
import "math"

// Sentinel is the length written for an absent node
const Sentinel = math.MinInt32

// maxPrealloc caps slice capacity taken from untrusted lengths
const maxPrealloc = 1 << 12

// ErrCorruptTable matches every *CorruptTableError using errors.Is
var ErrCorruptTable = errors.New("corrupt table")

// CorruptTableError is returned when an encoded table cannot be decoded.
// It is fatal for the run.
type CorruptTableError struct {
	Level  int   // 1 attribute, 2 class, 3 parent combination, 4 value
	Path   []int // child indexes leading to the node
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *CorruptTableError) Error() string {
	var msg = fmt.Sprintf("corrupt table at level %d path %v: %s", e.Level, e.Path, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CorruptTableError) Unwrap() error {
	return e.Cause
}

func (e *CorruptTableError) Is(target error) bool {
	return target == ErrCorruptTable
}

type encoder struct {
	w   *bufio.Writer
	buf [8]byte
}

func (e *encoder) length(n int) {
	binary.BigEndian.PutUint32(e.buf[:4], uint32(int32(n)))
	e.w.Write(e.buf[:4])
}

func (e *encoder) float(v float64) {
	binary.BigEndian.PutUint64(e.buf[:], math.Float64bits(v))
	e.w.Write(e.buf[:])
}

func encodeNode[T any](e *encoder, n Node[T], child func(T)) {
	if !n.IsPresent() {
		e.length(Sentinel)
		return
	}
	e.length(n.Len())
	for _, c := range n.Items() {
		child(c)
	}
}

func (e *encoder) leaf(l Leaf) {
	encodeNode(e, l, e.float)
}

func (e *encoder) combos(c Combos) {
	encodeNode(e, c, e.leaf)
}

func (e *encoder) classes(c Classes) {
	encodeNode(e, c, e.combos)
}

func (e *encoder) table(t Table) {
	encodeNode(e, t, e.classes)
}

// Encode writes the table. Every node is a big endian int32 length, or the
// Sentinel when absent, followed by its children. Values are big endian float64.
func Encode(w io.Writer, t Table) error {
	var e = encoder{w: bufio.NewWriter(w)}
	e.table(t)
	return e.w.Flush()
}

// EncodeLeaf writes a single level vector in the same format
func EncodeLeaf(w io.Writer, l Leaf) error {
	var e = encoder{w: bufio.NewWriter(w)}
	e.leaf(l)
	return e.w.Flush()
}

// Marshal encodes the table into a byte slice
func Marshal(t Table) []byte {
	var buf bytes.Buffer
	Encode(&buf, t)
	return buf.Bytes()
}

type decoder struct {
	r    io.Reader
	buf  [8]byte
	path []int
}

func (d *decoder) fail(level int, reason string, cause error) error {
	return &CorruptTableError{Level: level, Path: append([]int(nil), d.path...), Reason: reason, Cause: cause}
}

func (d *decoder) read(level int, n int) error {
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return d.fail(level, "truncated stream", err)
	}
	return nil
}

func decodeNode[T any](d *decoder, level int, child func() (T, error)) (Node[T], error) {
	if err := d.read(level, 4); err != nil {
		return Node[T]{}, err
	}
	size := int32(binary.BigEndian.Uint32(d.buf[:4]))
	if size == Sentinel {
		return Absent[T](), nil
	}
	if size < 0 {
		return Node[T]{}, d.fail(level, fmt.Sprintf("negative length %d", size), nil)
	}
	var items = make([]T, 0, min(int(size), maxPrealloc))
	d.path = append(d.path, 0)
	for i := 0; i < int(size); i++ {
		d.path[len(d.path)-1] = i
		c, err := child()
		if err != nil {
			return Node[T]{}, err
		}
		items = append(items, c)
	}
	d.path = d.path[:len(d.path)-1]
	return Present(items...), nil
}

func (d *decoder) float() (float64, error) {
	if err := d.read(4, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(d.buf[:])), nil
}

func (d *decoder) leaf() (Leaf, error) {
	return decodeNode(d, 4, d.float)
}

func (d *decoder) combos() (Combos, error) {
	return decodeNode(d, 3, d.leaf)
}

func (d *decoder) classes() (Classes, error) {
	return decodeNode(d, 2, d.combos)
}

func (d *decoder) table() (Table, error) {
	return decodeNode(d, 1, d.classes)
}

// Decode reads a table written by Encode
func Decode(r io.Reader) (Table, error) {
	var d = decoder{r: r}
	return d.table()
}

// DecodeLeaf reads a vector written by EncodeLeaf
func DecodeLeaf(r io.Reader) (Leaf, error) {
	var d = decoder{r: r}
	return d.leaf()
}

// Unmarshal decodes a table from a byte slice. Trailing bytes are corrupt.
func Unmarshal(data []byte) (Table, error) {
	var r = bytes.NewReader(data)
	t, err := Decode(r)
	if err != nil {
		return t, err
	}
	if r.Len() != 0 {
		return Table{}, &CorruptTableError{Level: 0, Reason: fmt.Sprintf("%d trailing bytes", r.Len())}
	}
	return t, nil
}
