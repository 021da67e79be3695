package common

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seq struct{ v []uint8 }

func (s *seq) Len() int     { return len(s.v) }
func (s *seq) Elem() any    { return new(uint8) }
func (s *seq) At(i int) any { return &s.v[i] }
func (s *seq) Resize(n int) { s.v = make([]uint8, n) }

type rel struct{ d int64 }

func (r *rel) Offset() int64     { return r.d }
func (r *rel) SetOffset(d int64) { r.d = d }

type plain struct {
	A       int32
	skipped string
	B       []string `bitwalk:"-"`
	C       map[string]bool
	Inner
}

type Inner struct{ X uint8 }

type ordered struct {
	A, B, C int8
}

func (ordered) WireFields() []string { return []string{"C", "A"} }

func TestClassify(t *testing.T) {
	cases := map[reflect.Type]Shape{
		reflect.TypeFor[int]():            ShapeScalar,
		reflect.TypeFor[float32]():        ShapeScalar,
		reflect.TypeFor[complex64]():      ShapeComplex,
		reflect.TypeFor[string]():         ShapeString,
		reflect.TypeFor[[]int8]():         ShapeSlice,
		reflect.TypeFor[[3]uint16]():      ShapeArray,
		reflect.TypeFor[*plain]():         ShapePointer,
		reflect.TypeFor[map[int]string](): ShapeMap,
		reflect.TypeFor[seq]():            ShapeSequence,
		reflect.TypeFor[plain]():          ShapeStruct,
		reflect.TypeFor[rel]():            ShapeOffset,
		reflect.TypeFor[chan int]():       ShapeUnsupported,
		reflect.TypeFor[any]():            ShapeUnsupported,
	}
	for typ, want := range cases {
		assert.Equal(t, want, Classify(typ), typ.String())
	}
	assert.Equal(t, "sequence", ShapeSequence.String())
	assert.Equal(t, "offset", ShapeOffset.String())
	assert.Equal(t, "shape(99)", Shape(99).String())
}

func TestFixedKinds(t *testing.T) {
	assert.Equal(t, 8, FixedSize(reflect.Int))
	assert.Equal(t, 8, FixedSize(reflect.Uint))
	assert.Equal(t, 1, FixedSize(reflect.Bool))
	assert.Equal(t, -1, FixedSize(reflect.String))
	assert.Equal(t, 1, Alignment(reflect.Struct))
	assert.True(t, Aliasable(reflect.Float64))
	assert.False(t, Aliasable(reflect.Bool))
	assert.False(t, Aliasable(reflect.Int))
}

func TestFields(t *testing.T) {
	fields, err := Fields(reflect.TypeFor[plain]())
	require.NoError(t, err)
	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"A", "C", "Inner"}, names)

	fields, err = Fields(reflect.TypeFor[ordered]())
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "C", fields[0].Name)
	assert.Equal(t, 2, fields[0].Index)
	assert.Equal(t, "A", fields[1].Name)
}

type broken struct{ a int }

func (broken) WireFields() []string { return []string{"a"} }

func TestFieldsRejectsUnexported(t *testing.T) {
	_, err := Fields(reflect.TypeFor[broken]())
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestAliasSlice(t *testing.T) {
	words := []uint32{1, 2, 3}
	raw := SliceBytes(reflect.ValueOf(words))
	require.Len(t, raw, 12)

	var dst []uint32
	AliasSlice(reflect.ValueOf(&dst).Elem(), raw, 3)
	assert.Equal(t, words, dst)
	words[1] = 9
	assert.Equal(t, uint32(9), dst[1])

	AliasSlice(reflect.ValueOf(&dst).Elem(), nil, 0)
	assert.NotNil(t, dst)
	assert.Empty(t, dst)
}
