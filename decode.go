package bitwalk

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/rawbytedev/bitwalk/internal/common"
	"github.com/rawbytedev/bitwalk/pkg/bytebuf"
)

type decoder struct {
	c      *Codec
	r      *bytebuf.Reader
	order  binary.ByteOrder
	native bool
	safe   bool
}

// value fills v, which must be addressable and zero, following ti. Empty
// slices and maps decode as empty, not nil.
func (d *decoder) value(v reflect.Value, ti *typeInfo) error {
	if ti.err != nil {
		return ti.err
	}
	switch ti.shape {
	case common.ShapeScalar:
		return d.scalar(v, ti.kind)
	case common.ShapeComplex:
		re, err := d.float(ti.size)
		if err != nil {
			return err
		}
		im, err := d.float(ti.size)
		if err != nil {
			return err
		}
		v.SetComplex(complex(re, im))
	case common.ShapeString:
		return d.str(v)
	case common.ShapeSlice:
		return d.slice(v, ti)
	case common.ShapeArray:
		return d.array(v, ti)
	case common.ShapePointer:
		present, err := d.flag()
		if err != nil || !present {
			return err
		}
		p := reflect.New(ti.elem.typ)
		if err := d.value(p.Elem(), ti.elem); err != nil {
			return err
		}
		v.Set(p)
	case common.ShapeMap:
		return d.goMap(v, ti)
	case common.ShapeAssociative:
		return d.associative(v.Addr().Interface().(common.Associative))
	case common.ShapeSequence:
		return d.sequence(v.Addr().Interface().(common.Sequence))
	case common.ShapeUnion:
		return d.union(v.Addr().Interface().(common.Union))
	case common.ShapeOffset:
		x, err := d.r.Uint64(d.order)
		if err != nil {
			return err
		}
		v.Addr().Interface().(common.OffsetRef).SetOffset(int64(x))
	case common.ShapeStruct:
		for _, f := range ti.fields {
			if err := d.value(v.Field(f.index), f.info); err != nil {
				return fmt.Errorf("%s.%s: %w", ti.typ.Name(), f.name, err)
			}
		}
	default:
		return unsupported(ti.typ)
	}
	return nil
}

func (d *decoder) scalar(v reflect.Value, k reflect.Kind) error {
	switch k {
	case reflect.Bool:
		b, err := d.flag()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int8, reflect.Uint8:
		x, err := d.r.Uint8()
		if err != nil {
			return err
		}
		if k == reflect.Int8 {
			v.SetInt(int64(int8(x)))
		} else {
			v.SetUint(uint64(x))
		}
	case reflect.Int16, reflect.Uint16:
		x, err := d.r.Uint16(d.order)
		if err != nil {
			return err
		}
		if k == reflect.Int16 {
			v.SetInt(int64(int16(x)))
		} else {
			v.SetUint(uint64(x))
		}
	case reflect.Int32, reflect.Uint32:
		x, err := d.r.Uint32(d.order)
		if err != nil {
			return err
		}
		if k == reflect.Int32 {
			v.SetInt(int64(int32(x)))
		} else {
			v.SetUint(uint64(x))
		}
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		x, err := d.r.Uint64(d.order)
		if err != nil {
			return err
		}
		if k == reflect.Int || k == reflect.Int64 {
			v.SetInt(int64(x))
		} else {
			v.SetUint(x)
		}
	case reflect.Float32:
		f, err := d.float(4)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Float64:
		f, err := d.float(8)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	}
	return nil
}

func (d *decoder) float(size int) (float64, error) {
	if size == 4 {
		x, err := d.r.Uint32(d.order)
		return float64(math.Float32frombits(x)), err
	}
	x, err := d.r.Uint64(d.order)
	return math.Float64frombits(x), err
}

// flag reads a bool or presence byte. Anything but 0 or 1 is rejected.
func (d *decoder) flag() (bool, error) {
	b, err := d.r.Uint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: flag byte %#x at offset %d", ErrMalformed, b, d.r.Offset()-1)
	}
}

// length reads a u64 count and checks that n items of at least width
// bytes each could fit in the remaining input.
func (d *decoder) length(width int) (int, error) {
	n, err := d.r.Uint64(d.order)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt {
		return 0, fmt.Errorf("%w: %d", ErrLengthOverflow, n)
	}
	if width < 1 {
		width = 1
	}
	if d.safe && n > uint64(d.r.Remaining()/width) {
		return 0, fmt.Errorf("%w: %d items of %d bytes, %d remaining", ErrLengthOverflow, n, width, d.r.Remaining())
	}
	return int(n), nil
}

func (d *decoder) str(v reflect.Value) error {
	n, err := d.length(1)
	if err != nil {
		return err
	}
	b, err := d.r.Next(n)
	if err != nil {
		return err
	}
	switch {
	case n == 0:
	case d.c.opts.UnsafeStrings:
		v.SetString(unsafe.String(&b[0], n))
	default:
		v.SetString(string(b))
	}
	return nil
}

func (d *decoder) slice(v reflect.Value, ti *typeInfo) error {
	n, err := d.length(ti.elem.elemWidth())
	if err != nil {
		return err
	}
	if n == 0 {
		v.Set(reflect.MakeSlice(ti.typ, 0, 0))
		return nil
	}
	elem := ti.elem
	if elem.aliasable && d.native {
		b, err := d.block(n, elem)
		if err != nil {
			return err
		}
		if d.c.opts.UnsafePrimitives && aligned(b, elem.align) {
			common.AliasSlice(v, b, n)
			return nil
		}
		s := reflect.MakeSlice(ti.typ, n, n)
		copy(common.SliceBytes(s), b)
		v.Set(s)
		return nil
	}
	s := reflect.MakeSlice(ti.typ, n, n)
	for i := 0; i < n; i++ {
		if err := d.value(s.Index(i), elem); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	v.Set(s)
	return nil
}

func (d *decoder) array(v reflect.Value, ti *typeInfo) error {
	n := v.Len()
	if n == 0 {
		return nil
	}
	elem := ti.elem
	if elem.aliasable && d.native {
		b, err := d.block(n, elem)
		if err != nil {
			return err
		}
		copy(rawBytes(v), b)
		return nil
	}
	for i := 0; i < n; i++ {
		if err := d.value(v.Index(i), elem); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

// block reads n aliasable elements written as one run.
func (d *decoder) block(n int, elem *typeInfo) ([]byte, error) {
	if err := d.r.Align(elem.align); err != nil {
		return nil, err
	}
	if n > d.r.Remaining()/elem.size {
		return nil, fmt.Errorf("%w: %d items of %d bytes, %d remaining", ErrTruncated, n, elem.size, d.r.Remaining())
	}
	return d.r.Next(n * elem.size)
}

func aligned(b []byte, align int) bool {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))%uintptr(align) == 0
}

func (d *decoder) goMap(v reflect.Value, ti *typeInfo) error {
	n, err := d.length(ti.key.elemWidth() + ti.elem.minWire)
	if err != nil {
		return err
	}
	m := reflect.MakeMapWithSize(ti.typ, n)
	for i := 0; i < n; i++ {
		k := reflect.New(ti.key.typ).Elem()
		if err := d.value(k, ti.key); err != nil {
			return fmt.Errorf("key: %w", err)
		}
		val := reflect.New(ti.elem.typ).Elem()
		if err := d.value(val, ti.elem); err != nil {
			return fmt.Errorf("[%v]: %w", k, err)
		}
		if m.MapIndex(k).IsValid() {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, k)
		}
		m.SetMapIndex(k, val)
	}
	v.Set(m)
	return nil
}

func (d *decoder) associative(a common.Associative) error {
	k0, v0 := a.NewEntry()
	kt := reflect.TypeOf(k0).Elem()
	width := d.c.info(kt).elemWidth()
	var vt reflect.Type
	if v0 != nil {
		vt = reflect.TypeOf(v0).Elem()
		width += d.c.info(vt).minWire
	}
	n, err := d.length(width)
	if err != nil {
		return err
	}
	if c, ok := a.(interface{ Clear() }); ok {
		c.Clear()
	}
	a.Reserve(n)
	for i := 0; i < n; i++ {
		key, value := a.NewEntry()
		kv := reflect.ValueOf(key).Elem()
		if err := d.value(kv, d.c.info(kt)); err != nil {
			return fmt.Errorf("key: %w", err)
		}
		if value != nil {
			if err := d.value(reflect.ValueOf(value).Elem(), d.c.info(vt)); err != nil {
				return fmt.Errorf("[%v]: %w", kv, err)
			}
		}
		added, err := a.InsertEntry(key, value)
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, kv)
		}
	}
	return nil
}

func (d *decoder) sequence(s common.Sequence) error {
	et := reflect.TypeOf(s.Elem()).Elem()
	ei := d.c.info(et)
	n, err := d.length(ei.elemWidth())
	if err != nil {
		return err
	}
	s.Resize(n)
	for i := 0; i < n; i++ {
		if err := d.value(reflect.ValueOf(s.At(i)).Elem(), ei); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (d *decoder) union(u common.Union) error {
	idx, err := d.r.Uint32(d.order)
	if err != nil {
		return err
	}
	if int(idx) >= len(u.Alternatives()) {
		return fmt.Errorf("%w: %d of %d", ErrBadUnionIndex, idx, len(u.Alternatives()))
	}
	p, err := u.Activate(int(idx))
	if err != nil {
		return err
	}
	pv := reflect.ValueOf(p).Elem()
	return d.value(pv, d.c.info(pv.Type()))
}
