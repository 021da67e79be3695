// Package common holds the type classification shared by the walker and
// the structural hash, so both agree on what reaches the wire.
package common

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unsafe"
)

var ErrUnknownField = errors.New("common: explicit field list names an unknown or unexported field")

// Sequence is implemented by containers the walker should treat as a
// variable-length run of elements.
type Sequence interface {
	Len() int
	// Elem returns a pointer to a zero element; only its type is used.
	Elem() any
	// At returns a pointer to element i.
	At(i int) any
	// Resize sets the length to n, keeping the first min(n, Len()) elements.
	Resize(n int)
}

// Associative is implemented by key/value or key-only containers whose
// entries are rebuilt by insertion on decode.
type Associative interface {
	Len() int
	Reserve(n int)
	// EachEntry calls fn with pointers to each key and value. value is nil
	// for sets.
	EachEntry(fn func(key, value any) error) error
	// NewEntry returns pointers to fresh key and value storage. value is
	// nil for sets.
	NewEntry() (key, value any)
	InsertEntry(key, value any) (bool, error)
}

// Union is implemented by tagged unions.
type Union interface {
	// Alternatives returns a pointer to a zero value of each alternative.
	Alternatives() []any
	// Active returns the active index and a pointer to its payload.
	Active() (int, any)
	// Activate switches to alternative i and returns a pointer to its
	// payload for the decoder to fill.
	Activate(i int) (any, error)
}

// OffsetRef is implemented by self-relative references. The stored distance
// travels as a signed 64-bit scalar and is restored verbatim, so it stays
// valid as long as the reference and its target are decoded together.
type OffsetRef interface {
	Offset() int64
	SetOffset(d int64)
}

// FieldLister lets an aggregate name the exported fields that reach the
// wire, in wire order.
type FieldLister interface {
	WireFields() []string
}

var (
	sequenceType    = reflect.TypeFor[Sequence]()
	associativeType = reflect.TypeFor[Associative]()
	unionType       = reflect.TypeFor[Union]()
	offsetType      = reflect.TypeFor[OffsetRef]()
	fieldListerType = reflect.TypeFor[FieldLister]()
)

type Shape uint8

const (
	ShapeUnsupported Shape = iota
	ShapeScalar
	ShapeComplex
	ShapeString
	ShapeSlice
	ShapeArray
	ShapePointer
	ShapeMap
	ShapeSequence
	ShapeAssociative
	ShapeUnion
	ShapeStruct
	ShapeOffset
)

var shapeNames = [...]string{
	"unsupported", "scalar", "complex", "string", "slice", "array",
	"pointer", "map", "sequence", "associative", "union", "struct", "offset",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// Classify decides how values of t are encoded: scalars first, then the
// known container shapes, then plain aggregates. Collaborator interfaces
// are detected on *t since decoding needs an addressable value.
func Classify(t reflect.Type) Shape {
	if IsFixedKind(t.Kind()) {
		return ShapeScalar
	}
	pt := reflect.PointerTo(t)
	switch {
	case pt.Implements(offsetType):
		return ShapeOffset
	case pt.Implements(unionType):
		return ShapeUnion
	case pt.Implements(associativeType):
		return ShapeAssociative
	case pt.Implements(sequenceType):
		return ShapeSequence
	}
	switch t.Kind() {
	case reflect.Complex64, reflect.Complex128:
		return ShapeComplex
	case reflect.String:
		return ShapeString
	case reflect.Slice:
		return ShapeSlice
	case reflect.Array:
		return ShapeArray
	case reflect.Pointer:
		return ShapePointer
	case reflect.Map:
		return ShapeMap
	case reflect.Struct:
		return ShapeStruct
	default:
		return ShapeUnsupported
	}
}

// IsFixedKind reports whether k is a fixed-size scalar kind. int and uint
// travel as 64-bit values.
func IsFixedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// FixedSize returns the wire width of a fixed-size kind, or -1.
func FixedSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int, reflect.Uint, reflect.Int64, reflect.Uint64, reflect.Float64:
		return 8
	default:
		return -1
	}
}

// Alignment is the natural wire alignment of a fixed-size kind.
func Alignment(k reflect.Kind) int {
	if n := FixedSize(k); n > 0 {
		return n
	}
	return 1
}

// Aliasable reports whether a slice of k can share memory with wire bytes
// in native order: the in-memory and wire widths must agree and every bit
// pattern must be a valid value.
func Aliasable(k reflect.Kind) bool {
	switch k {
	case reflect.Int8, reflect.Uint8, reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// AliasSlice points dst, a slice of an aliasable kind, at n elements
// starting at b[0] without copying.
func AliasSlice(dst reflect.Value, b []byte, n int) {
	if n == 0 {
		dst.Set(reflect.MakeSlice(dst.Type(), 0, 0))
		return
	}
	s := reflect.SliceAt(dst.Type().Elem(), unsafe.Pointer(&b[0]), n)
	dst.Set(s.Convert(dst.Type()))
}

// SliceBytes views the backing array of a slice of an aliasable kind.
func SliceBytes(v reflect.Value) []byte {
	n := v.Len()
	if n == 0 {
		return nil
	}
	size := int(v.Type().Elem().Size())
	return unsafe.Slice((*byte)(v.UnsafePointer()), n*size)
}

// Field is one serialized field of an aggregate.
type Field struct {
	Index int
	Name  string
	Type  reflect.Type
}

// Fields returns the serialized fields of struct type t in wire order.
// Without a WireFields list every exported field is used in declaration
// order, minus those tagged `bitwalk:"-"`.
func Fields(t reflect.Type) ([]Field, error) {
	var names []string
	switch {
	case t.Implements(fieldListerType):
		names = reflect.Zero(t).Interface().(FieldLister).WireFields()
	case reflect.PointerTo(t).Implements(fieldListerType):
		names = reflect.New(t).Interface().(FieldLister).WireFields()
	}
	if names != nil {
		fields := make([]Field, 0, len(names))
		for _, name := range names {
			sf, ok := t.FieldByName(name)
			if !ok || len(sf.Index) != 1 || !sf.IsExported() {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, t.Name(), name)
			}
			fields = append(fields, Field{Index: sf.Index[0], Name: sf.Name, Type: sf.Type})
		}
		return fields, nil
	}
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" && !sf.Anonymous {
			continue
		}
		if sf.Anonymous && !sf.IsExported() && sf.Type.Kind() != reflect.Struct {
			continue
		}
		if tag, ok := sf.Tag.Lookup("bitwalk"); ok && strings.Split(tag, ",")[0] == "-" {
			continue
		}
		fields = append(fields, Field{Index: i, Name: sf.Name, Type: sf.Type})
	}
	return fields, nil
}
