// Package datasets implements the integer coded record format and its schema
package datasets

import "fmt"
import "os"

import "gopkg.in/yaml.v3"

// Schema describes the attributes of a coded dataset. It is read-only for a run.
type Schema struct {
	// Cardinalities holds the number of distinct coded values of each attribute
	Cardinalities []int `yaml:"cardinalities"`

	// ClassIndex is the position of the class attribute
	ClassIndex int `yaml:"class_index"`
}

// UniformSchema creates a schema where every attribute has the same cardinality
func UniformSchema(numAttributes, cardinality, classIndex int) Schema {
	var s = Schema{
		Cardinalities: make([]int, numAttributes),
		ClassIndex:    classIndex,
	}
	for i := range s.Cardinalities {
		s.Cardinalities[i] = cardinality
	}
	return s
}

// NumAttributes returns the number of attributes including the class
func (s Schema) NumAttributes() int {
	return len(s.Cardinalities)
}

// Cardinality returns the number of values of attribute n
func (s Schema) Cardinality(n int) int {
	return s.Cardinalities[n]
}

// NumClasses returns the cardinality of the class attribute
func (s Schema) NumClasses() int {
	return s.Cardinalities[s.ClassIndex]
}

// Validate reports whether the schema can describe records
func (s Schema) Validate() error {
	if len(s.Cardinalities) == 0 {
		return fmt.Errorf("schema has no attributes")
	}
	if s.ClassIndex < 0 || s.ClassIndex >= len(s.Cardinalities) {
		return fmt.Errorf("class index %d out of range [0, %d)", s.ClassIndex, len(s.Cardinalities))
	}
	for i, c := range s.Cardinalities {
		if c < 1 {
			return fmt.Errorf("attribute %d has cardinality %d", i, c)
		}
	}
	return nil
}

// LoadSchema reads a yaml schema file
func LoadSchema(name string) (s Schema, err error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return s, fmt.Errorf("read schema %s: %w", name, err)
	}
	if err = yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse schema %s: %w", name, err)
	}
	if err = s.Validate(); err != nil {
		return s, fmt.Errorf("schema %s: %w", name, err)
	}
	return s, nil
}

// WriteSchema writes the schema as a yaml file
func WriteSchema(name string, s Schema) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0644)
}
