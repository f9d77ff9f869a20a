package datasets

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, UniformSchema(6, 2, 5).Validate())
	assert.Error(t, Schema{}.Validate())
	assert.Error(t, UniformSchema(3, 2, 3).Validate())
	assert.Error(t, Schema{Cardinalities: []int{2, 0}, ClassIndex: 0}.Validate())
}

func TestSchemaFile(t *testing.T) {
	var name = filepath.Join(t.TempDir(), "schema.yaml")
	var s = Schema{Cardinalities: []int{2, 3, 4}, ClassIndex: 1}
	require.NoError(t, WriteSchema(name, s))
	loaded, err := LoadSchema(name)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.Equal(t, 3, loaded.NumClasses())
}

func TestParseRecord(t *testing.T) {
	var sp = MustNewSplitter("")
	rec, err := sp.ParseRecord(0, "1,0, 1 |0\t0,1\n")
	require.NoError(t, err)
	assert.Equal(t, Record{1, 0, 1, 0, 0, 1}, rec)

	_, err = sp.ParseRecord(7, "1,,0")
	var ire *InvalidRecordError
	require.True(t, errors.As(err, &ire))
	assert.EqualValues(t, 7, ire.Offset)
	assert.True(t, errors.Is(err, ErrInvalidRecord))

	_, err = sp.ParseRecord(8, "1,0,")
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = sp.ParseRecord(8, "1,x,0")
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRecordCheck(t *testing.T) {
	var s = UniformSchema(3, 2, 2)
	assert.NoError(t, Record{1, 0, 1}.Check(s, 0))
	err := Record{1, 0, 1, 9}.Check(s, 5)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "record has 4 values, schema needs 3")

	err = Record{1, 0}.Check(s, 3)
	var ire *InvalidRecordError
	require.True(t, errors.As(err, &ire))
	assert.Equal(t, -1, ire.Attribute)

	err = Record{1, 2, 0}.Check(s, 4)
	require.True(t, errors.As(err, &ire))
	assert.Equal(t, 1, ire.Attribute)
	assert.Equal(t, 2, ire.Value)
	assert.Contains(t, err.Error(), "offset 4")

	assert.Error(t, Record{-1, 0, 0}.Check(s, 0))
}

func TestGenerateInstances(t *testing.T) {
	var buf bytes.Buffer
	var rng = rand.New(rand.NewPCG(1, 2))
	require.NoError(t, GenerateInstances(rng, &buf, 50, 4))
	var lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 50)
	var sp = MustNewSplitter("")
	var s = UniformSchema(5, 2, 4)
	for i, line := range lines {
		rec, err := sp.ParseRecord(int64(i), line)
		require.NoError(t, err)
		assert.NoError(t, rec.Check(s, int64(i)))
	}
}
