// Package combiner merges partial count tables of the same ensemble member
package combiner

import "fmt"
import "sort"
import "sync"

import "github.com/neurlang/rbnc/metrics"
import "github.com/neurlang/rbnc/stats"
import "github.com/neurlang/rbnc/table"

// Combine returns the element-wise sum of two partials of the same member.
// The inputs are not modified.
func Combine(a, b stats.Partial) (stats.Partial, error) {
	if a.Member != b.Member {
		return stats.Partial{}, fmt.Errorf("combine member %d with member %d: %w", a.Member, b.Member, table.ErrShapeMismatch)
	}
	classes, err := table.MergeLeaf(a.ClassCounts, b.ClassCounts)
	if err != nil {
		return stats.Partial{}, fmt.Errorf("member %d class counts: %w", a.Member, err)
	}
	tab, err := table.Merge(a.Table, b.Table)
	if err != nil {
		return stats.Partial{}, fmt.Errorf("member %d: %w", a.Member, err)
	}
	return stats.Partial{Member: a.Member, ClassCounts: classes, Table: tab}, nil
}

// accumulate adds src into dst, leaving dst untouched on error
func accumulate(dst, src stats.Partial) error {
	if err := table.SameLeafShape(dst.ClassCounts, src.ClassCounts); err != nil {
		return fmt.Errorf("member %d class counts: %w", dst.Member, err)
	}
	if err := table.SameShape(dst.Table, src.Table); err != nil {
		return fmt.Errorf("member %d: %w", dst.Member, err)
	}
	table.AccumulateLeaf(dst.ClassCounts, src.ClassCounts)
	table.Accumulate(dst.Table, src.Table)
	return nil
}

// Reducer folds partials into one running sum per ensemble member. It is used
// for the local pre-aggregation of a worker and for the final merge alike.
// It is safe for concurrent use.
type Reducer struct {
	mut     sync.Mutex
	sums    map[int]stats.Partial
	folded  map[int]int
	metrics *metrics.Metrics
}

// NewReducer creates an empty reducer. m may be nil.
func NewReducer(m *metrics.Metrics) *Reducer {
	r := &Reducer{metrics: m}
	r.Init()
	return r
}

// Init resets the reducer to be empty
func (r *Reducer) Init() {
	r.mut.Lock()
	r.sums = make(map[int]stats.Partial)
	r.folded = make(map[int]int)
	r.mut.Unlock()
}

// Free releases the sums
func (r *Reducer) Free() {
	r.mut.Lock()
	r.sums = nil
	r.folded = nil
	r.mut.Unlock()
}

// Add folds p into the sum of its member. The first partial of a member is
// copied so the reducer never aliases caller memory.
func (r *Reducer) Add(p stats.Partial) error {
	r.mut.Lock()
	defer r.mut.Unlock()
	if r.sums == nil {
		r.sums = make(map[int]stats.Partial)
		r.folded = make(map[int]int)
	}
	sum, ok := r.sums[p.Member]
	if !ok {
		r.sums[p.Member] = p.Clone()
	} else if err := accumulate(sum, p); err != nil {
		return err
	}
	r.folded[p.Member]++
	r.metrics.Merged()
	return nil
}

// AddAll folds every partial, stopping at the first error
func (r *Reducer) AddAll(ps []stats.Partial) error {
	for _, p := range ps {
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Len gets the number of members with a sum
func (r *Reducer) Len() int {
	r.mut.Lock()
	defer r.mut.Unlock()
	return len(r.sums)
}

// Folded gets how many partials were folded into the sum of member m
func (r *Reducer) Folded(m int) int {
	r.mut.Lock()
	defer r.mut.Unlock()
	return r.folded[m]
}

// Results returns a copy of every sum ordered by member
func (r *Reducer) Results() []stats.Partial {
	r.mut.Lock()
	defer r.mut.Unlock()
	var out = make([]stats.Partial, 0, len(r.sums))
	for _, p := range r.sums {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Member < out[j].Member })
	return out
}
