package bitwalk

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/rawbytedev/bitwalk/internal/common"
)

// Comparisons share one plan cache.
var (
	cmpMu    sync.Mutex
	cmpPlans *Codec
)

// Equal reports whether a and b serialize the same fields to equal values.
// Fields skipped on the wire are ignored.
func Equal[T any](a, b T) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// Compare orders a and b field by field in wire order. Sequences compare
// lexicographically, pointers put nil first, unions order by index then
// payload. Maps order by length only; unequal maps of equal length, NaN
// floats and unequal complex values return ErrUnordered.
func Compare[T any](a, b T) (int, error) {
	t := reflect.TypeFor[T]()
	av := reflect.New(t).Elem()
	av.Set(reflect.ValueOf(&a).Elem())
	bv := reflect.New(t).Elem()
	bv.Set(reflect.ValueOf(&b).Elem())

	cmpMu.Lock()
	defer cmpMu.Unlock()
	if cmpPlans == nil {
		cmpPlans, _ = NewCodec()
	}
	return cmpPlans.compare(av, bv, cmpPlans.info(t))
}

func (c *Codec) compare(a, b reflect.Value, ti *typeInfo) (int, error) {
	if ti.err != nil {
		return 0, ti.err
	}
	switch ti.shape {
	case common.ShapeScalar:
		return compareScalar(a, b, ti.kind)
	case common.ShapeComplex:
		if a.Complex() == b.Complex() {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: complex", ErrUnordered)
	case common.ShapeString:
		return strings.Compare(a.String(), b.String()), nil
	case common.ShapeSlice, common.ShapeArray:
		n := min(a.Len(), b.Len())
		for i := 0; i < n; i++ {
			if r, err := c.compare(a.Index(i), b.Index(i), ti.elem); r != 0 || err != nil {
				return r, err
			}
		}
		return cmp.Compare(a.Len(), b.Len()), nil
	case common.ShapePointer:
		switch {
		case a.IsNil() && b.IsNil():
			return 0, nil
		case a.IsNil():
			return -1, nil
		case b.IsNil():
			return 1, nil
		}
		return c.compare(a.Elem(), b.Elem(), ti.elem)
	case common.ShapeMap:
		return c.compareMap(a, b, ti)
	case common.ShapeAssociative:
		return c.compareAssociative(a.Addr().Interface().(common.Associative), b.Addr().Interface().(common.Associative))
	case common.ShapeSequence:
		return c.compareSequence(a.Addr().Interface().(common.Sequence), b.Addr().Interface().(common.Sequence))
	case common.ShapeUnion:
		ai, ap := a.Addr().Interface().(common.Union).Active()
		bi, bp := b.Addr().Interface().(common.Union).Active()
		if ai != bi {
			return cmp.Compare(ai, bi), nil
		}
		av, bv := reflect.ValueOf(ap).Elem(), reflect.ValueOf(bp).Elem()
		return c.compare(av, bv, c.info(av.Type()))
	case common.ShapeOffset:
		ao := a.Addr().Interface().(common.OffsetRef).Offset()
		bo := b.Addr().Interface().(common.OffsetRef).Offset()
		return cmp.Compare(ao, bo), nil
	case common.ShapeStruct:
		for _, f := range ti.fields {
			if r, err := c.compare(a.Field(f.index), b.Field(f.index), f.info); r != 0 || err != nil {
				return r, err
			}
		}
		return 0, nil
	}
	return 0, unsupported(ti.typ)
}

func compareScalar(a, b reflect.Value, k reflect.Kind) (int, error) {
	switch k {
	case reflect.Bool:
		switch {
		case a.Bool() == b.Bool():
			return 0, nil
		case b.Bool():
			return -1, nil
		default:
			return 1, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint()), nil
	default:
		x, y := a.Float(), b.Float()
		if math.IsNaN(x) || math.IsNaN(y) {
			return 0, fmt.Errorf("%w: NaN", ErrUnordered)
		}
		return cmp.Compare(x, y), nil
	}
}

func (c *Codec) compareMap(a, b reflect.Value, ti *typeInfo) (int, error) {
	if r := cmp.Compare(a.Len(), b.Len()); r != 0 {
		return r, nil
	}
	it := a.MapRange()
	for it.Next() {
		bv := b.MapIndex(it.Key())
		if !bv.IsValid() {
			return 0, fmt.Errorf("%w: maps differ in keys", ErrUnordered)
		}
		av := reflect.New(ti.elem.typ).Elem()
		av.SetIterValue(it)
		bc := reflect.New(ti.elem.typ).Elem()
		bc.Set(bv)
		if r, err := c.compare(av, bc, ti.elem); r != 0 || err != nil {
			if err == nil {
				err = fmt.Errorf("%w: maps differ at %v", ErrUnordered, it.Key())
			}
			return 0, err
		}
	}
	return 0, nil
}

func (c *Codec) compareAssociative(a, b common.Associative) (int, error) {
	if r := cmp.Compare(a.Len(), b.Len()); r != 0 {
		return r, nil
	}
	entries := make(map[any]any, b.Len())
	if err := b.EachEntry(func(key, value any) error {
		entries[reflect.ValueOf(key).Elem().Interface()] = value
		return nil
	}); err != nil {
		return 0, err
	}
	err := a.EachEntry(func(key, value any) error {
		k := reflect.ValueOf(key).Elem().Interface()
		other, ok := entries[k]
		if !ok {
			return fmt.Errorf("%w: containers differ in keys", ErrUnordered)
		}
		if value == nil {
			return nil
		}
		av, bv := reflect.ValueOf(value).Elem(), reflect.ValueOf(other).Elem()
		r, err := c.compare(av, bv, c.info(av.Type()))
		if err == nil && r != 0 {
			err = fmt.Errorf("%w: containers differ at %v", ErrUnordered, k)
		}
		return err
	})
	return 0, err
}

func (c *Codec) compareSequence(a, b common.Sequence) (int, error) {
	n := min(a.Len(), b.Len())
	for i := 0; i < n; i++ {
		av, bv := reflect.ValueOf(a.At(i)).Elem(), reflect.ValueOf(b.At(i)).Elem()
		if r, err := c.compare(av, bv, c.info(av.Type())); r != 0 || err != nil {
			return r, err
		}
	}
	return cmp.Compare(a.Len(), b.Len()), nil
}
