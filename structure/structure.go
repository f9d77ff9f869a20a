// Package structure implements the randomized dependency structures of the ensemble
package structure

import "errors"
import "fmt"
import "slices"

// Parents is the parent set of one attribute. It is either modeled, with a
// canonical ascending list of parent attributes, or not modeled at all.
type Parents struct {
	attrs   []int
	modeled bool
}

// Modeled creates a parent set. The attributes are sorted and deduplicated.
func Modeled(attrs ...int) Parents {
	var p = Parents{attrs: slices.Clone(attrs), modeled: true}
	slices.Sort(p.attrs)
	p.attrs = slices.Compact(p.attrs)
	return p
}

// NotModeled marks an attribute that has no conditional table (the class attribute)
func NotModeled() Parents {
	return Parents{}
}

// IsModeled reports whether the attribute gets a conditional table
func (p Parents) IsModeled() bool {
	return p.modeled
}

// Len gets the number of parents
func (p Parents) Len() int {
	return len(p.attrs)
}

// At gets the n-th parent in canonical order
func (p Parents) At(n int) int {
	return p.attrs[n]
}

// Attributes returns a copy of the parents in canonical order
func (p Parents) Attributes() []int {
	return slices.Clone(p.attrs)
}

// Contains reports whether attribute a is a parent
func (p Parents) Contains(a int) bool {
	_, found := slices.BinarySearch(p.attrs, a)
	return found
}

// Equal compares two parent sets
func (p Parents) Equal(o Parents) bool {
	return p.modeled == o.modeled && slices.Equal(p.attrs, o.attrs)
}

func (p Parents) String() string {
	if !p.modeled {
		return "-"
	}
	return fmt.Sprint(p.attrs)
}

// Structure maps an attribute index to its parent set, for one ensemble member
type Structure map[int]Parents

// Attributes returns the attributes of the structure in ascending order
func (s Structure) Attributes() []int {
	var out = make([]int, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Equal compares two structures
func (s Structure) Equal(o Structure) bool {
	if len(s) != len(o) {
		return false
	}
	for a, p := range s {
		q, ok := o[a]
		if !ok || !p.Equal(q) {
			return false
		}
	}
	return true
}

// Ensemble is the ordered list of structures, one per ensemble member
type Ensemble []Structure

// Equal compares two ensembles member by member
func (e Ensemble) Equal(o Ensemble) bool {
	return slices.EqualFunc(e, o, Structure.Equal)
}

// SchemaMismatchError reports a structure that references attributes the
// schema does not have.
type SchemaMismatchError struct {
	Member    int
	Attribute int
	Parent    int // -1 when the attribute itself is out of range
}

// Error implements the error interface.
func (e *SchemaMismatchError) Error() string {
	if e.Parent < 0 {
		return fmt.Sprintf("member %d: attribute %d is not in the schema", e.Member, e.Attribute)
	}
	return fmt.Sprintf("member %d: attribute %d has parent %d which is not in the schema", e.Member, e.Attribute, e.Parent)
}

// ErrSelfParent rejects a modeled attribute listed among its own parents. On
// the wire a self parent marks a not modeled attribute.
var ErrSelfParent = errors.New("attribute is its own parent")

// checkSelfParents finds a modeled attribute that lists itself as a parent
func (e Ensemble) checkSelfParents() error {
	for m, s := range e {
		for _, a := range s.Attributes() {
			if p := s[a]; p.IsModeled() && p.Contains(a) {
				return fmt.Errorf("member %d attribute %d: %w", m, a, ErrSelfParent)
			}
		}
	}
	return nil
}

// Check verifies that every attribute and parent of the ensemble is below
// numAttributes and that no modeled attribute is its own parent.
func (e Ensemble) Check(numAttributes int) error {
	if err := e.checkSelfParents(); err != nil {
		return err
	}
	for m, s := range e {
		for _, a := range s.Attributes() {
			if a < 0 || a >= numAttributes {
				return &SchemaMismatchError{Member: m, Attribute: a, Parent: -1}
			}
			p := s[a]
			for i := 0; i < p.Len(); i++ {
				if p.At(i) < 0 || p.At(i) >= numAttributes {
					return &SchemaMismatchError{Member: m, Attribute: a, Parent: p.At(i)}
				}
			}
		}
	}
	return nil
}
