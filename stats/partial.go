// Package stats holds the sufficient statistics of one ensemble member and their files
package stats

import "bytes"
import "encoding/binary"
import "fmt"
import "io"

import "github.com/neurlang/rbnc/table"

// Partial holds the counts of one ensemble member, either from a single
// partition or already merged from several.
type Partial struct {
	// Member is the ensemble member index
	Member int

	// ClassCounts is indexed by the class value
	ClassCounts table.Leaf

	// Table is indexed by attribute, class value, parent combination and attribute value
	Table table.Table
}

// Clone deep copies the partial
func (p Partial) Clone() Partial {
	return Partial{
		Member:      p.Member,
		ClassCounts: table.CloneLeaf(p.ClassCounts),
		Table:       table.Clone(p.Table),
	}
}

// Total gets the total weight of the records counted
func (p Partial) Total() (total float64) {
	for _, v := range p.ClassCounts.Items() {
		total += v
	}
	return
}

// Encode writes the member as a big endian int64 key followed by the class
// counts and the table.
func (p Partial) Encode(w io.Writer) error {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(int64(p.Member)))
	if _, err := w.Write(key[:]); err != nil {
		return err
	}
	if err := table.EncodeLeaf(w, p.ClassCounts); err != nil {
		return err
	}
	return table.Encode(w, p.Table)
}

// Decode reads a partial written by Encode
func Decode(r io.Reader) (p Partial, err error) {
	var key [8]byte
	if _, err = io.ReadFull(r, key[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return p, &table.CorruptTableError{Level: 0, Reason: "reading member key", Cause: err}
	}
	member := int64(binary.BigEndian.Uint64(key[:]))
	if member < 0 {
		return p, &table.CorruptTableError{Level: 0, Reason: fmt.Sprintf("negative member %d", member)}
	}
	p.Member = int(member)
	if p.ClassCounts, err = table.DecodeLeaf(r); err != nil {
		return p, fmt.Errorf("member %d class counts: %w", p.Member, err)
	}
	if p.Table, err = table.Decode(r); err != nil {
		return p, fmt.Errorf("member %d: %w", p.Member, err)
	}
	return p, nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (p Partial) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := p.Encode(&buf)
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (p *Partial) UnmarshalBinary(data []byte) error {
	var r = bytes.NewReader(data)
	q, err := Decode(r)
	if err != nil {
		return err
	}
	if r.Len() != 0 {
		return &table.CorruptTableError{Level: 0, Reason: fmt.Sprintf("%d trailing bytes", r.Len())}
	}
	*p = q
	return nil
}
