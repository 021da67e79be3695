// Package typehash computes a structural fingerprint of a Go type: the
// shape of its fields, elements and container kinds as seen on the wire.
// Two types with the same fingerprint produce interchangeable encodings.
//
// The fingerprint is stable across processes and platforms. Struct types
// contribute their unqualified name and field count; package paths are
// ignored.
package typehash

import (
	"encoding/binary"
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rawbytedev/bitwalk/internal/common"
	"github.com/rawbytedev/bitwalk/pkg/swiss"
)

var (
	markerSequence    = xxhash.Sum64String("bitwalk/sequence")
	markerArray       = xxhash.Sum64String("bitwalk/array")
	markerOptional    = xxhash.Sum64String("bitwalk/optional")
	markerAssociative = xxhash.Sum64String("bitwalk/associative")
	markerUnion       = xxhash.Sum64String("bitwalk/union")
	markerStruct      = xxhash.Sum64String("bitwalk/struct")
	markerBackRef     = xxhash.Sum64String("bitwalk/backref")
	markerNone        = xxhash.Sum64String("bitwalk/none")
	markerOffset      = xxhash.Sum64String("bitwalk/offset")
)

// Of returns the structural hash of t.
func Of(t reflect.Type) uint64 {
	h := hasher{seen: swiss.NewMap[uint64, int]()}
	return h.hash(t)
}

// For returns the structural hash of T.
func For[T any]() uint64 {
	return Of(reflect.TypeFor[T]())
}

// hasher carries the seen table for one top-level call. Each named
// composite type gets an ordinal the first time it is entered; later
// visits fold a back-reference to that ordinal instead of recursing.
type hasher struct {
	seen *swiss.Map[uint64, int]
}

func fold(parts ...uint64) uint64 {
	var buf [8]byte
	d := xxhash.New()
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], p)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// identity distinguishes types within one call. It is never folded into
// the result, so it may carry the package path.
func identity(t reflect.Type) uint64 {
	return xxhash.Sum64String(t.PkgPath() + "\x00" + t.String())
}

func (h *hasher) hash(t reflect.Type) uint64 {
	shape := common.Classify(t)
	if shape == common.ShapeScalar || shape == common.ShapeComplex || shape == common.ShapeString {
		return leaf(t, shape)
	}
	if shape == common.ShapeOffset {
		// Only the raw distance is encoded; the target type is not.
		return fold(markerOffset, leaf(reflect.TypeFor[int64](), common.ShapeScalar))
	}
	if t.Name() != "" {
		id := identity(t)
		if ord, ok := h.seen.Get(id); ok {
			return fold(markerBackRef, uint64(ord))
		}
		h.seen.Insert(id, h.seen.Len())
	}
	switch shape {
	case common.ShapeSlice:
		return fold(markerSequence, h.hash(t.Elem()))
	case common.ShapeSequence:
		seq := reflect.New(t).Interface().(common.Sequence)
		return fold(markerSequence, h.hash(reflect.TypeOf(seq.Elem()).Elem()))
	case common.ShapeArray:
		return fold(markerArray, uint64(t.Len()), h.hash(t.Elem()))
	case common.ShapePointer:
		return fold(markerOptional, h.hash(t.Elem()))
	case common.ShapeMap:
		return fold(markerAssociative, h.hash(t.Key()), h.hash(t.Elem()))
	case common.ShapeAssociative:
		a := reflect.New(t).Interface().(common.Associative)
		k, v := a.NewEntry()
		vh := markerNone
		if v != nil {
			vh = h.hash(reflect.TypeOf(v).Elem())
		}
		return fold(markerAssociative, h.hash(reflect.TypeOf(k).Elem()), vh)
	case common.ShapeUnion:
		u := reflect.New(t).Interface().(common.Union)
		alts := u.Alternatives()
		parts := make([]uint64, 0, len(alts)+2)
		parts = append(parts, markerUnion, uint64(len(alts)))
		for _, a := range alts {
			parts = append(parts, h.hash(reflect.TypeOf(a).Elem()))
		}
		return fold(parts...)
	case common.ShapeStruct:
		return h.aggregate(t)
	default:
		return xxhash.Sum64String("unsupported:" + t.Kind().String())
	}
}

func (h *hasher) aggregate(t reflect.Type) uint64 {
	fields, err := common.Fields(t)
	if err != nil {
		return xxhash.Sum64String("invalid:" + t.String())
	}
	name := t.Name()
	if name == "" {
		name = "struct"
	}
	parts := make([]uint64, 0, len(fields)+2)
	parts = append(parts, markerStruct, xxhash.Sum64String(name+":"+strconv.Itoa(len(fields))))
	for _, f := range fields {
		parts = append(parts, h.hash(f.Type))
	}
	return fold(parts...)
}

// leaf hashes types that have no components: scalars by wire kind and
// width, strings as a sequence of bytes.
func leaf(t reflect.Type, shape common.Shape) uint64 {
	switch shape {
	case common.ShapeString:
		return fold(markerSequence, leaf(reflect.TypeFor[uint8](), common.ShapeScalar))
	case common.ShapeComplex:
		return xxhash.Sum64String(t.Kind().String() + ":" + strconv.Itoa(int(t.Size())))
	}
	k := t.Kind()
	name := k.String()
	switch k {
	case reflect.Int:
		name = "int64"
	case reflect.Uint:
		name = "uint64"
	}
	return xxhash.Sum64String(name + ":" + strconv.Itoa(common.FixedSize(k)))
}
