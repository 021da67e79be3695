package bitwalk

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/rawbytedev/bitwalk/internal/common"
	"github.com/rawbytedev/bitwalk/pkg/bytebuf"
)

type encoder struct {
	c      *Codec
	buf    *bytebuf.Buffer
	order  binary.ByteOrder
	native bool
}

// value writes v following the plan ti. v is always addressable.
func (e *encoder) value(v reflect.Value, ti *typeInfo) error {
	if ti.err != nil {
		return ti.err
	}
	switch ti.shape {
	case common.ShapeScalar:
		e.scalar(v, ti.kind)
	case common.ShapeComplex:
		c := v.Complex()
		e.float(real(c), ti.size)
		e.float(imag(c), ti.size)
	case common.ShapeString:
		s := v.String()
		e.buf.PutUint64(e.order, uint64(len(s)))
		_, _ = e.buf.WriteString(s)
	case common.ShapeSlice:
		e.buf.PutUint64(e.order, uint64(v.Len()))
		return e.elements(v, ti.elem)
	case common.ShapeArray:
		return e.elements(v, ti.elem)
	case common.ShapePointer:
		if v.IsNil() {
			e.buf.PutUint8(0)
			return nil
		}
		e.buf.PutUint8(1)
		return e.value(v.Elem(), ti.elem)
	case common.ShapeMap:
		return e.goMap(v, ti)
	case common.ShapeAssociative:
		return e.associative(v.Addr().Interface().(common.Associative))
	case common.ShapeSequence:
		return e.sequence(v.Addr().Interface().(common.Sequence))
	case common.ShapeUnion:
		return e.union(v.Addr().Interface().(common.Union))
	case common.ShapeOffset:
		e.buf.PutUint64(e.order, uint64(v.Addr().Interface().(common.OffsetRef).Offset()))
	case common.ShapeStruct:
		for _, f := range ti.fields {
			if err := e.value(v.Field(f.index), f.info); err != nil {
				return fmt.Errorf("%s.%s: %w", ti.typ.Name(), f.name, err)
			}
		}
	default:
		return unsupported(ti.typ)
	}
	return nil
}

func (e *encoder) scalar(v reflect.Value, k reflect.Kind) {
	switch k {
	case reflect.Bool:
		if v.Bool() {
			e.buf.PutUint8(1)
		} else {
			e.buf.PutUint8(0)
		}
	case reflect.Int8:
		e.buf.PutUint8(uint8(v.Int()))
	case reflect.Uint8:
		e.buf.PutUint8(uint8(v.Uint()))
	case reflect.Int16:
		e.buf.PutUint16(e.order, uint16(v.Int()))
	case reflect.Uint16:
		e.buf.PutUint16(e.order, uint16(v.Uint()))
	case reflect.Int32:
		e.buf.PutUint32(e.order, uint32(v.Int()))
	case reflect.Uint32:
		e.buf.PutUint32(e.order, uint32(v.Uint()))
	case reflect.Int, reflect.Int64:
		e.buf.PutUint64(e.order, uint64(v.Int()))
	case reflect.Uint, reflect.Uint64:
		e.buf.PutUint64(e.order, v.Uint())
	case reflect.Float32:
		e.float(v.Float(), 4)
	case reflect.Float64:
		e.float(v.Float(), 8)
	}
}

func (e *encoder) float(f float64, size int) {
	if size == 4 {
		e.buf.PutUint32(e.order, math.Float32bits(float32(f)))
		return
	}
	e.buf.PutUint64(e.order, math.Float64bits(f))
}

// elements writes the items of a slice or array. Runs of aliasable
// scalars in native order are copied as one block.
func (e *encoder) elements(v reflect.Value, elem *typeInfo) error {
	n := v.Len()
	if n == 0 {
		return nil
	}
	if elem.aliasable && e.native {
		e.buf.Align(elem.align)
		_, _ = e.buf.Write(rawBytes(v))
		return nil
	}
	for i := 0; i < n; i++ {
		if err := e.value(v.Index(i), elem); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

// rawBytes views the element storage of a slice or addressable array.
func rawBytes(v reflect.Value) []byte {
	if v.Kind() == reflect.Array {
		v = v.Slice(0, v.Len())
	}
	return common.SliceBytes(v)
}

func (e *encoder) goMap(v reflect.Value, ti *typeInfo) error {
	e.buf.PutUint64(e.order, uint64(v.Len()))
	if v.Len() == 0 {
		return nil
	}
	k := reflect.New(ti.key.typ).Elem()
	val := reflect.New(ti.elem.typ).Elem()
	it := v.MapRange()
	for it.Next() {
		k.SetIterKey(it)
		val.SetIterValue(it)
		if err := e.value(k, ti.key); err != nil {
			return fmt.Errorf("key: %w", err)
		}
		if err := e.value(val, ti.elem); err != nil {
			return fmt.Errorf("[%v]: %w", k, err)
		}
	}
	return nil
}

func (e *encoder) associative(a common.Associative) error {
	e.buf.PutUint64(e.order, uint64(a.Len()))
	return a.EachEntry(func(key, value any) error {
		kv := reflect.ValueOf(key).Elem()
		if err := e.value(kv, e.c.info(kv.Type())); err != nil {
			return fmt.Errorf("key: %w", err)
		}
		if value == nil {
			return nil
		}
		vv := reflect.ValueOf(value).Elem()
		if err := e.value(vv, e.c.info(vv.Type())); err != nil {
			return fmt.Errorf("[%v]: %w", kv, err)
		}
		return nil
	})
}

func (e *encoder) sequence(s common.Sequence) error {
	n := s.Len()
	e.buf.PutUint64(e.order, uint64(n))
	for i := 0; i < n; i++ {
		ev := reflect.ValueOf(s.At(i)).Elem()
		if err := e.value(ev, e.c.info(ev.Type())); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (e *encoder) union(u common.Union) error {
	idx, payload := u.Active()
	if idx < 0 || idx >= len(u.Alternatives()) {
		return fmt.Errorf("%w: active %d", ErrBadUnionIndex, idx)
	}
	e.buf.PutUint32(e.order, uint32(idx))
	pv := reflect.ValueOf(payload).Elem()
	return e.value(pv, e.c.info(pv.Type()))
}
