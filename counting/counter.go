// Package counting implements the per record counting of the ensemble sufficient statistics
package counting

import "fmt"
import "log/slog"
import "math"

import "github.com/neurlang/rbnc/datasets"
import "github.com/neurlang/rbnc/metrics"
import "github.com/neurlang/rbnc/stats"
import "github.com/neurlang/rbnc/structure"
import "github.com/neurlang/rbnc/table"

// modeled is one attribute of a member that gets counted
type modeled struct {
	attribute int
	parents   structure.Parents
}

// Counter owns the count tables of every ensemble member for one partition.
// It is not safe for concurrent use; each worker has its own Counter.
type Counter struct {
	schema   datasets.Schema
	ensemble structure.Ensemble
	plan     [][]modeled

	tables      []table.Table
	classCounts []table.Leaf

	splitter *datasets.Splitter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Counter
type Option func(*Counter)

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) Option {
	return func(c *Counter) { c.logger = l }
}

// WithMetrics records counted and rejected records
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Counter) { c.metrics = m }
}

// WithSplitter sets the field splitter used by Scan
func WithSplitter(s *datasets.Splitter) Option {
	return func(c *Counter) { c.splitter = s }
}

// NumCombos gets the number of parent value combinations, the product of the
// parent cardinalities.
func NumCombos(p structure.Parents, s datasets.Schema) (int, error) {
	var n = 1
	for i := 0; i < p.Len(); i++ {
		card := s.Cardinality(p.At(i))
		if n > math.MaxInt32/card {
			return 0, fmt.Errorf("parent combinations of %v overflow", p)
		}
		n *= card
	}
	return n, nil
}

// ParentIndex folds the parent values of the record into a mixed radix index,
// the first parent in canonical order being the most significant digit.
func ParentIndex(p structure.Parents, s datasets.Schema, rec datasets.Record) (index int) {
	for i := 0; i < p.Len(); i++ {
		parent := p.At(i)
		index = index*s.Cardinality(parent) + rec[parent]
	}
	return
}

// New allocates zero tables for every member. Attributes that a member does not
// model stay absent.
func New(s datasets.Schema, e structure.Ensemble, opts ...Option) (*Counter, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := e.Check(s.NumAttributes()); err != nil {
		return nil, err
	}
	var c = &Counter{
		schema:   s,
		ensemble: e,
		plan:     make([][]modeled, len(e)),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.splitter == nil {
		c.splitter = datasets.MustNewSplitter("")
	}
	for m, st := range e {
		for _, a := range st.Attributes() {
			if p := st[a]; p.IsModeled() {
				if _, err := NumCombos(p, s); err != nil {
					return nil, fmt.Errorf("member %d attribute %d: %w", m, a, err)
				}
				c.plan[m] = append(c.plan[m], modeled{attribute: a, parents: p})
			}
		}
	}
	c.reset()
	return c, nil
}

// reset allocates fresh zero tables
func (c *Counter) reset() {
	c.tables = make([]table.Table, len(c.ensemble))
	c.classCounts = make([]table.Leaf, len(c.ensemble))
	for m := range c.ensemble {
		var attrs = make([]table.Classes, c.schema.NumAttributes())
		for _, mod := range c.plan[m] {
			combos, _ := NumCombos(mod.parents, c.schema)
			attrs[mod.attribute] = table.NewAttribute(c.schema.NumClasses(), combos, c.schema.Cardinality(mod.attribute))
		}
		c.tables[m] = table.Present(attrs...)
		c.classCounts[m] = table.Zeros(c.schema.NumClasses())
	}
}

// Schema gets the schema the counter was built for
func (c *Counter) Schema() datasets.Schema {
	return c.schema
}

// Count adds the record with weight 1
func (c *Counter) Count(rec datasets.Record) error {
	return c.count(rec, -1, 1)
}

// CountWeighted adds the record with the given non-negative weight
func (c *Counter) CountWeighted(rec datasets.Record, weight float64) error {
	return c.count(rec, -1, weight)
}

// count validates the whole record before touching any table, so a rejected
// record leaves every table unchanged.
func (c *Counter) count(rec datasets.Record, offset int64, weight float64) error {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return &datasets.InvalidRecordError{Offset: offset, Attribute: -1, Reason: fmt.Sprintf("weight %v", weight)}
	}
	if err := rec.Check(c.schema, offset); err != nil {
		return err
	}
	var classValue = rec[c.schema.ClassIndex]
	for m := range c.ensemble {
		c.classCounts[m].Items()[classValue] += weight
		var tab = c.tables[m]
		for _, mod := range c.plan[m] {
			parentIndex := ParentIndex(mod.parents, c.schema, rec)
			tab.At(mod.attribute).At(classValue).At(parentIndex).Items()[rec[mod.attribute]] += weight
		}
	}
	return nil
}

// Table gets the live table of member m. It is owned by the counter.
func (c *Counter) Table(m int) table.Table {
	return c.tables[m]
}

// ClassCounts gets the live class counts of member m. They are owned by the counter.
func (c *Counter) ClassCounts(m int) table.Leaf {
	return c.classCounts[m]
}

// Partials hands the counts of every member over to the caller and resets the
// counter to empty tables. The returned partials share no memory with the counter.
func (c *Counter) Partials() []stats.Partial {
	var out = make([]stats.Partial, len(c.ensemble))
	for m := range c.ensemble {
		out[m] = stats.Partial{Member: m, ClassCounts: c.classCounts[m], Table: c.tables[m]}
	}
	c.reset()
	return out
}
