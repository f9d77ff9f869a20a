package table

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func sentinelBytes() []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(1<<31))
	return b[:]
}

func TestAbsentVersusEmpty(t *testing.T) {
	assert.Equal(t, sentinelBytes(), Marshal(Absent[Classes]()))
	assert.Equal(t, []byte{0, 0, 0, 0}, Marshal(Present[Classes]()))

	absent, err := Unmarshal(Marshal(Absent[Classes]()))
	require.NoError(t, err)
	assert.False(t, absent.IsPresent())

	empty, err := Unmarshal(Marshal(Present[Classes]()))
	require.NoError(t, err)
	assert.True(t, empty.IsPresent())
	assert.Equal(t, 0, empty.Len())

	var zero Table
	assert.False(t, zero.IsPresent())
}

func TestRoundTripAbsentAtEveryLevel(t *testing.T) {
	var v = [][][][]float64{
		{{{1, 2}, {3}}, {}, {{4, 5}, {6, 7}, {}}},
		nil,
		{nil, {nil, {8.5}}, {{}, nil}},
		{},
	}
	var tab = FromSlices(v)
	back, err := Unmarshal(Marshal(tab))
	require.NoError(t, err)
	assert.Equal(t, v, Slices(back))

	assert.False(t, back.At(1).IsPresent())
	assert.False(t, back.At(2).At(0).IsPresent())
	assert.False(t, back.At(2).At(1).At(0).IsPresent())
	assert.True(t, back.At(2).At(2).At(0).IsPresent())
	assert.Equal(t, 0, back.At(2).At(2).At(0).Len())
	assert.Equal(t, 8.5, back.At(2).At(1).At(1).At(0))
	assert.Equal(t, 7.0, back.At(0).At(2).At(1).At(1))
}

func TestLeafRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeLeaf(&buf, Values(3, 0, 1.25)))
	require.NoError(t, EncodeLeaf(&buf, Absent[float64]()))
	l, err := DecodeLeaf(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 1.25}, l.Items())
	l, err = DecodeLeaf(&buf)
	require.NoError(t, err)
	assert.False(t, l.IsPresent())
}

func TestDecodeCorrupt(t *testing.T) {
	var good = Marshal(FromSlices([][][][]float64{{{{1, 2}}}}))
	for i := 0; i < len(good); i++ {
		_, err := Unmarshal(good[:i])
		require.Error(t, err, "prefix %d", i)
		assert.ErrorIs(t, err, ErrCorruptTable)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	}

	_, err := Unmarshal([]byte{0xff, 0xff, 0xff, 0xfe})
	var cte *CorruptTableError
	require.True(t, errors.As(err, &cte))
	assert.Equal(t, 1, cte.Level)

	_, err = Unmarshal(append(good, 0))
	assert.ErrorIs(t, err, ErrCorruptTable)

	// one attribute, two classes, class 0 has no combos, class 1 has length -1
	var deep = []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}
	_, err = Unmarshal(deep)
	require.True(t, errors.As(err, &cte))
	assert.Equal(t, 3, cte.Level)
	assert.Equal(t, []int{0, 1}, cte.Path)
}

func TestMergeWithItself(t *testing.T) {
	var a = FromSlices([][][][]float64{{{{1, 2}, {3}}, {{4, 5}, {6, 7}}}})
	sum, err := Merge(a, a)
	require.NoError(t, err)
	assert.Equal(t, [][][][]float64{{{{2, 4}, {6}}, {{8, 10}, {12, 14}}}}, Slices(sum))
	// inputs untouched
	assert.Equal(t, [][][][]float64{{{{1, 2}, {3}}, {{4, 5}, {6, 7}}}}, Slices(a))
}

func TestMergeThree(t *testing.T) {
	var a = FromSlices([][][][]float64{{{{1, 2}, {3}}, {{4, 5}, {6, 7}}}})
	var b = FromSlices([][][][]float64{{{{1, 2}, {3}}, {{4, 5}, {6, 7}}}})
	var c = FromSlices([][][][]float64{{{{10, 20}, {30}}, {{40, 50}, {60, 70}}}})
	ab, err := Merge(a, b)
	require.NoError(t, err)
	abc, err := Merge(ab, c)
	require.NoError(t, err)
	assert.Equal(t, [][][][]float64{{{{12, 24}, {36}}, {{48, 60}, {72, 84}}}}, Slices(abc))
}

func TestMergeAbsentNodes(t *testing.T) {
	var a = FromSlices([][][][]float64{nil, {{{1}}}, nil})
	sum, err := Merge(a, a)
	require.NoError(t, err)
	assert.Equal(t, [][][][]float64{nil, {{{2}}}, nil}, Slices(sum))

	both, err := Merge(Absent[Classes](), Absent[Classes]())
	require.NoError(t, err)
	assert.False(t, both.IsPresent())
}

func TestShapeMismatch(t *testing.T) {
	var base = FromSlices([][][][]float64{{{{1, 2}, {3}}}, nil})
	for name, other := range map[string][][][][]float64{
		"absent attribute":  {nil, nil},
		"present attribute": {{{{1, 2}, {3}}}, {}},
		"leaf length":       {{{{1, 2}, {3, 4}}}, nil},
		"combo count":       {{{{1, 2}}}, nil},
		"absent leaf":       {{{{1, 2}, nil}}, nil},
		"attribute count":   {{{{1, 2}, {3}}}},
	} {
		t.Run(name, func(t *testing.T) {
			var o = FromSlices(other)
			var before = Slices(base)
			_, err := Merge(base, o)
			assert.ErrorIs(t, err, ErrShapeMismatch)
			assert.ErrorIs(t, Accumulate(base, o), ErrShapeMismatch)
			assert.Equal(t, before, Slices(base))
		})
	}
	var sme *ShapeMismatchError
	err := SameShape(base, FromSlices([][][][]float64{{{{1, 2}, {3, 4}}}, nil}))
	require.True(t, errors.As(err, &sme))
	assert.Equal(t, 4, sme.Level)
	assert.Equal(t, []int{0, 0, 1}, sme.Path)

	_, err = MergeLeaf(Values(1), Values(1, 2))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

// randomTable builds a table of the given shape seed with random counts
func randomTable(shape, values *rand.Rand) Table {
	var v = make([][][][]float64, 4)
	for i := range v {
		if shape.IntN(4) == 0 {
			continue
		}
		v[i] = make([][][]float64, 1+shape.IntN(3))
		for j := range v[i] {
			v[i][j] = make([][]float64, 1+shape.IntN(4))
			for k := range v[i][j] {
				v[i][j][k] = make([]float64, 1+shape.IntN(3))
				for n := range v[i][j][k] {
					v[i][j][k][n] = values.Float64() * 100
				}
			}
		}
	}
	return FromSlices(v)
}

func flatten(t Table) (out []float64) {
	for _, a := range t.Items() {
		for _, b := range a.Items() {
			for _, c := range b.Items() {
				out = append(out, c.Items()...)
			}
		}
	}
	return
}

func TestMergeAssociativeCommutative(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		var values = rand.New(rand.NewPCG(seed, 1))
		a := randomTable(rand.New(rand.NewPCG(seed, 0)), values)
		b := randomTable(rand.New(rand.NewPCG(seed, 0)), values)
		c := randomTable(rand.New(rand.NewPCG(seed, 0)), values)

		ab, err := Merge(a, b)
		require.NoError(t, err)
		abc1, err := Merge(ab, c)
		require.NoError(t, err)
		bc, err := Merge(b, c)
		require.NoError(t, err)
		abc2, err := Merge(a, bc)
		require.NoError(t, err)
		ac, err := Merge(a, c)
		require.NoError(t, err)
		abc3, err := Merge(b, ac)
		require.NoError(t, err)

		require.NoError(t, SameShape(abc1, abc2))
		require.NoError(t, SameShape(abc1, abc3))
		assert.True(t, floats.EqualApprox(flatten(abc1), flatten(abc2), 1e-9))
		assert.True(t, floats.EqualApprox(flatten(abc1), flatten(abc3), 1e-9))
		assert.InDelta(t, Sum(a)+Sum(b)+Sum(c), Sum(abc1), 1e-6)
	}
}

func TestClone(t *testing.T) {
	var a = FromSlices([][][][]float64{{{{1, 2}}}, nil})
	var b = Clone(a)
	b.At(0).At(0).At(0).Items()[0] = 9
	assert.Equal(t, 1.0, a.At(0).At(0).At(0).At(0))
	assert.Contains(t, String(a), "0 0 0: [1 2]")
}

func FuzzTableRoundTrip(f *testing.F) {
	f.Add(uint64(1), uint64(2))
	f.Add(uint64(77), uint64(0))
	f.Fuzz(func(t *testing.T, shape, values uint64) {
		tab := randomTable(rand.New(rand.NewPCG(shape, 0)), rand.New(rand.NewPCG(values, 0)))
		back, err := Unmarshal(Marshal(tab))
		if err != nil {
			t.Fatal(err)
		}
		if err := SameShape(tab, back); err != nil {
			t.Fatal(err)
		}
		a, b := flatten(tab), flatten(back)
		for i := range a {
			if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
				t.Fatalf("value %d: %v != %v", i, a[i], b[i])
			}
		}
	})
}

func FuzzDecode(f *testing.F) {
	f.Add(Marshal(FromSlices([][][][]float64{{{{1, 2}, {3}}}, nil})))
	f.Add(sentinelBytes())
	f.Fuzz(func(t *testing.T, data []byte) {
		tab, err := Unmarshal(data)
		if err != nil {
			if !errors.Is(err, ErrCorruptTable) {
				t.Fatalf("unexpected error type %T", err)
			}
			return
		}
		if !bytes.Equal(Marshal(tab), data) {
			t.Fatal("re-encoding differs")
		}
	})
}
