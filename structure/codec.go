package structure

import "bufio"
import "bytes"
import "encoding/binary"
import "errors"
import "fmt"
import "io"
import "os"

// ErrCorruptStructure matches every *CorruptStructureError using errors.Is
var ErrCorruptStructure = errors.New("corrupt structure file")

// CorruptStructureError is returned when a structure file cannot be decoded.
// It is fatal for the run, the file has to be supplied again.
type CorruptStructureError struct {
	Member int // -1 for the file header
	Entry  int // -1 for the member header
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *CorruptStructureError) Error() string {
	var msg = fmt.Sprintf("corrupt structure file: member %d entry %d: %s", e.Member, e.Entry, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CorruptStructureError) Unwrap() error {
	return e.Cause
}

func (e *CorruptStructureError) Is(target error) bool {
	return target == ErrCorruptStructure
}

// maxPrealloc caps slice capacity taken from untrusted counts
const maxPrealloc = 1 << 12

// WriteStructures serializes the ensemble. Every integer is a big endian int32:
// the member count, then per member the entry count and per entry the attribute,
// the parent count and the parents. Attributes and parents are written in
// ascending order. A not modeled attribute is written as its own only parent,
// so a modeled attribute listing itself as a parent is refused.
func WriteStructures(w io.Writer, e Ensemble) error {
	if err := e.checkSelfParents(); err != nil {
		return err
	}
	var bw = bufio.NewWriter(w)
	var buf [4]byte
	put := func(v int) {
		binary.BigEndian.PutUint32(buf[:], uint32(int32(v)))
		bw.Write(buf[:])
	}
	put(len(e))
	for _, s := range e {
		put(len(s))
		for _, a := range s.Attributes() {
			p := s[a]
			put(a)
			if !p.IsModeled() {
				put(1)
				put(a)
				continue
			}
			put(p.Len())
			for i := 0; i < p.Len(); i++ {
				put(p.At(i))
			}
		}
	}
	return bw.Flush()
}

// ReadStructures decodes an ensemble written by WriteStructures
func ReadStructures(r io.Reader) (Ensemble, error) {
	var br = bufio.NewReader(r)
	var buf [4]byte
	var member, entry = -1, -1
	get := func(what string) (int, error) {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, &CorruptStructureError{Member: member, Entry: entry, Reason: "reading " + what, Cause: err}
		}
		v := int(int32(binary.BigEndian.Uint32(buf[:])))
		if v < 0 {
			return 0, &CorruptStructureError{Member: member, Entry: entry, Reason: fmt.Sprintf("negative %s %d", what, v)}
		}
		return v, nil
	}

	size, err := get("member count")
	if err != nil {
		return nil, err
	}
	var e = make(Ensemble, 0, min(size, maxPrealloc))
	for member = 0; member < size; member++ {
		entry = -1
		entries, err := get("entry count")
		if err != nil {
			return nil, err
		}
		var s = make(Structure, min(entries, maxPrealloc))
		for entry = 0; entry < entries; entry++ {
			att, err := get("attribute")
			if err != nil {
				return nil, err
			}
			if _, dup := s[att]; dup {
				return nil, &CorruptStructureError{Member: member, Entry: entry, Reason: fmt.Sprintf("attribute %d listed twice", att)}
			}
			psize, err := get("parent count")
			if err != nil {
				return nil, err
			}
			var parents = make([]int, 0, min(psize, maxPrealloc))
			for k := 0; k < psize; k++ {
				p, err := get("parent")
				if err != nil {
					return nil, err
				}
				parents = append(parents, p)
			}
			var ps = Modeled(parents...)
			if ps.Contains(att) {
				if ps.Len() != 1 {
					return nil, &CorruptStructureError{Member: member, Entry: entry, Reason: fmt.Sprintf("attribute %d is its own parent", att)}
				}
				ps = NotModeled()
			}
			s[att] = ps
		}
		e = append(e, s)
	}
	return e, nil
}

// Marshal serializes the ensemble into a byte slice
func Marshal(e Ensemble) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteStructures(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes an ensemble from a byte slice
func Unmarshal(data []byte) (Ensemble, error) {
	return ReadStructures(bytes.NewReader(data))
}

// WriteStructuresToFile writes the ensemble to a file
func WriteStructuresToFile(name string, e Ensemble) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	err = WriteStructures(file, e)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadStructuresFromFile reads the ensemble from a file
func ReadStructuresFromFile(name string) (Ensemble, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadStructures(file)
}
