// Package table implements the ragged four level count tables, their wire codec and their merge
package table

import "fmt"
import "strings"

// Node is one level of a ragged table. A node is either present, holding zero
// or more children, or absent. The zero Node is absent.
type Node[T any] struct {
	items   []T
	present bool
}

// Present creates a present node owning the given children
func Present[T any](items ...T) Node[T] {
	if items == nil {
		items = []T{}
	}
	return Node[T]{items: items, present: true}
}

// Absent creates an absent node
func Absent[T any]() Node[T] {
	return Node[T]{}
}

// IsPresent reports whether the node is present
func (n Node[T]) IsPresent() bool {
	return n.present
}

// Len gets the number of children, 0 for an absent node
func (n Node[T]) Len() int {
	return len(n.items)
}

// At gets the i-th child
func (n Node[T]) At(i int) T {
	return n.items[i]
}

// Ptr gets a pointer to the i-th child for in place updates
func (n Node[T]) Ptr(i int) *T {
	return &n.items[i]
}

// Items exposes the children. The slice is owned by the node.
func (n Node[T]) Items() []T {
	return n.items
}

// Leaf is the innermost level: counts indexed by the attribute value
type Leaf = Node[float64]

// Combos is indexed by the parent value composite index
type Combos = Node[Leaf]

// Classes is indexed by the class value
type Classes = Node[Combos]

// Table is indexed by the attribute. Attributes not modeled by the ensemble
// member are absent.
type Table = Node[Classes]

// Zeros creates a present leaf of n zero counts
func Zeros(n int) Leaf {
	return Present(make([]float64, n)...)
}

// Values creates a present leaf holding a copy of v
func Values(v ...float64) Leaf {
	return Present(append(make([]float64, 0, len(v)), v...)...)
}

// NewAttribute allocates the zero filled table of one modeled attribute
func NewAttribute(numClasses, numCombos, cardinality int) Classes {
	var classes = make([]Combos, numClasses)
	for c := range classes {
		var combos = make([]Leaf, numCombos)
		for p := range combos {
			combos[p] = Zeros(cardinality)
		}
		classes[c] = Present(combos...)
	}
	return Present(classes...)
}

// FromSlices builds a table from nested slices where nil means absent
func FromSlices(v [][][][]float64) Table {
	if v == nil {
		return Absent[Classes]()
	}
	var t = make([]Classes, len(v))
	for i, a := range v {
		if a == nil {
			continue
		}
		var classes = make([]Combos, len(a))
		for j, b := range a {
			if b == nil {
				continue
			}
			var combos = make([]Leaf, len(b))
			for k, c := range b {
				if c != nil {
					combos[k] = Values(c...)
				}
			}
			classes[j] = Present(combos...)
		}
		t[i] = Present(classes...)
	}
	return Present(t...)
}

// Slices converts the table into nested slices where absent nodes become nil
func Slices(t Table) [][][][]float64 {
	if !t.IsPresent() {
		return nil
	}
	var out = make([][][][]float64, t.Len())
	for i, a := range t.Items() {
		if !a.IsPresent() {
			continue
		}
		out[i] = make([][][]float64, a.Len())
		for j, b := range a.Items() {
			if !b.IsPresent() {
				continue
			}
			out[i][j] = make([][]float64, b.Len())
			for k, c := range b.Items() {
				if c.IsPresent() {
					out[i][j][k] = append(make([]float64, 0, c.Len()), c.Items()...)
				}
			}
		}
	}
	return out
}

// Clone deep copies the table so the copy shares no memory with t
func Clone(t Table) Table {
	return FromSlices(Slices(t))
}

// CloneLeaf deep copies a leaf
func CloneLeaf(l Leaf) Leaf {
	if !l.IsPresent() {
		return l
	}
	return Values(l.Items()...)
}

// Sum adds up every count of the table
func Sum(t Table) (total float64) {
	for _, a := range t.Items() {
		for _, b := range a.Items() {
			for _, c := range b.Items() {
				for _, v := range c.Items() {
					total += v
				}
			}
		}
	}
	return
}

// String prints every present leaf with its attribute, class and combo index
func String(t Table) string {
	var b strings.Builder
	for i, a := range t.Items() {
		for j, cl := range a.Items() {
			for k, c := range cl.Items() {
				if c.IsPresent() {
					fmt.Fprintf(&b, "%d %d %d: %v\n", i, j, k, c.Items())
				}
			}
		}
	}
	return b.String()
}
