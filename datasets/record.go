package datasets

import "errors"
import "fmt"
import "regexp"
import "strconv"
import "strings"

// ErrInvalidRecord matches every *InvalidRecordError using errors.Is
var ErrInvalidRecord = errors.New("invalid record")

// DefaultSplitPattern separates fields by a comma, tab or pipe with optional
// space padding. Consecutive delimiters enclose a blank field.
const DefaultSplitPattern = ` *[,|\t] *`

// InvalidRecordError rejects a single record. The pass continues with the next one.
type InvalidRecordError struct {
	Offset    int64 // record offset in the input, -1 when unknown
	Attribute int   // attribute position, -1 when the record as a whole is bad
	Value     int
	Reason    string
	Cause     error
}

// Error implements the error interface.
func (e *InvalidRecordError) Error() string {
	var b strings.Builder
	b.WriteString("invalid record")
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Attribute >= 0 {
		fmt.Fprintf(&b, " attribute %d", e.Attribute)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *InvalidRecordError) Unwrap() error {
	return e.Cause
}

func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// Record is one integer coded row, a value for every attribute of the schema
type Record []int

// Check verifies that the record fits the schema, one value per attribute
func (r Record) Check(s Schema, offset int64) error {
	if len(r) != s.NumAttributes() {
		return &InvalidRecordError{
			Offset:    offset,
			Attribute: -1,
			Reason:    fmt.Sprintf("record has %d values, schema needs %d", len(r), s.NumAttributes()),
		}
	}
	for i, c := range s.Cardinalities {
		if r[i] < 0 || r[i] >= c {
			return &InvalidRecordError{
				Offset:    offset,
				Attribute: i,
				Value:     r[i],
				Reason:    fmt.Sprintf("value %d outside [0, %d)", r[i], c),
			}
		}
	}
	return nil
}

// Splitter breaks a line into fields
type Splitter struct {
	re *regexp.Regexp
}

// NewSplitter compiles a split pattern, empty pattern means DefaultSplitPattern
func NewSplitter(pattern string) (*Splitter, error) {
	if pattern == "" {
		pattern = DefaultSplitPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("split pattern %q: %w", pattern, err)
	}
	return &Splitter{re: re}, nil
}

// MustNewSplitter is NewSplitter which panics on a bad pattern
func MustNewSplitter(pattern string) *Splitter {
	s, err := NewSplitter(pattern)
	if err != nil {
		panic(err.Error())
	}
	return s
}

// Split splits the line into fields
func (s *Splitter) Split(line string) []string {
	return s.re.Split(line, -1)
}

// ParseRecord decodes one line of coded values. Blank fields are missing values
// and those are not supported.
func (s *Splitter) ParseRecord(offset int64, line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	var items = s.Split(line)
	var rec = make(Record, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if len(item) == 0 {
			return nil, &InvalidRecordError{Offset: offset, Attribute: i, Reason: "missing value is unsupported"}
		}
		v, err := strconv.Atoi(item)
		if err != nil {
			return nil, &InvalidRecordError{Offset: offset, Attribute: i, Reason: "value is not an integer code", Cause: err}
		}
		rec[i] = v
	}
	return rec, nil
}
