package table

import "errors"
import "fmt"

import "gonum.org/v1/gonum/floats"

// ErrShapeMismatch matches every *ShapeMismatchError using errors.Is
var ErrShapeMismatch = errors.New("table shape mismatch")

// ShapeMismatchError is returned when two tables of different shape are merged.
// It means producer and merger disagree about the ensemble, which is fatal.
type ShapeMismatchError struct {
	Level  int
	Path   []int
	Reason string
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("table shape mismatch at level %d path %v: %s", e.Level, e.Path, e.Reason)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

func sameNode[T any](a, b Node[T], level int, path []int, child func(x, y T, path []int) error) error {
	if a.IsPresent() != b.IsPresent() {
		return &ShapeMismatchError{Level: level, Path: path, Reason: fmt.Sprintf("present %v paired with present %v", a.IsPresent(), b.IsPresent())}
	}
	if a.Len() != b.Len() {
		return &ShapeMismatchError{Level: level, Path: path, Reason: fmt.Sprintf("length %d paired with length %d", a.Len(), b.Len())}
	}
	if child == nil {
		return nil
	}
	for i := range a.Items() {
		if err := child(a.At(i), b.At(i), append(path[:len(path):len(path)], i)); err != nil {
			return err
		}
	}
	return nil
}

func sameLeaf(a, b Leaf, path []int) error {
	return sameNode(a, b, 4, path, nil)
}

func sameCombos(a, b Combos, path []int) error {
	return sameNode(a, b, 3, path, sameLeaf)
}

func sameClasses(a, b Classes, path []int) error {
	return sameNode(a, b, 2, path, sameCombos)
}

// SameShape reports nil when both tables have the same presence pattern and
// the same length at every node, or the first difference otherwise.
func SameShape(a, b Table) error {
	return sameNode(a, b, 1, nil, sameClasses)
}

// SameLeafShape is SameShape for single level vectors
func SameLeafShape(a, b Leaf) error {
	return sameLeaf(a, b, nil)
}

// Accumulate adds src into dst element-wise. The shapes are validated first so
// dst is left untouched on error. Absent nodes are skipped.
func Accumulate(dst, src Table) error {
	if err := SameShape(dst, src); err != nil {
		return err
	}
	for i, a := range dst.Items() {
		for j, b := range a.Items() {
			for k, c := range b.Items() {
				if c.IsPresent() {
					floats.Add(c.Items(), src.At(i).At(j).At(k).Items())
				}
			}
		}
	}
	return nil
}

// AccumulateLeaf adds src into dst element-wise
func AccumulateLeaf(dst, src Leaf) error {
	if err := SameLeafShape(dst, src); err != nil {
		return err
	}
	floats.Add(dst.Items(), src.Items())
	return nil
}

// Merge returns the element-wise sum of a and b. Neither input is modified
// and the result shares no memory with them.
func Merge(a, b Table) (Table, error) {
	if err := SameShape(a, b); err != nil {
		return Table{}, err
	}
	var out = Clone(a)
	if err := Accumulate(out, b); err != nil {
		return Table{}, err
	}
	return out, nil
}

// MergeLeaf returns the element-wise sum of two vectors
func MergeLeaf(a, b Leaf) (Leaf, error) {
	if err := SameLeafShape(a, b); err != nil {
		return Leaf{}, err
	}
	var out = CloneLeaf(a)
	floats.Add(out.Items(), b.Items())
	return out, nil
}
