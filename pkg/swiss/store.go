package swiss

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/rawbytedev/bitwalk/pkg/bytebuf"
	"github.com/rawbytedev/bitwalk/pkg/ref"
)

var (
	ErrKeyNotFound = errors.New("swiss: key not found")
	ErrAllocation  = errors.New("swiss: capacity exceeds addressable memory")
	ErrCorrupt     = errors.New("swiss: malformed flat table block")
	ErrPointers    = errors.New("swiss: flat tables require pointer-free keys and values")
	ErrKeyType     = errors.New("swiss: flat table keys must compare by their memory")
)

// meta is the bookkeeping shared by every storage layout.
type meta struct {
	capacity   uint64
	used       uint64
	growthLeft uint64
}

// store abstracts where the control bytes and entries of a slot set live.
// Implementations are selected by type parameter; the engine never calls
// through an interface value.
type store[E, S any] interface {
	*S
	meta() *meta
	// alloc replaces the slot set with an empty one of the given capacity.
	alloc(capacity uint64)
	ctrls() []ctrl
	slots() []E
}

func initCtrls(c []ctrl, capacity uint64) {
	for i := range c {
		c[i] = ctrlEmpty
	}
	c[capacity] = ctrlSentinel
}

// heapStore keeps control bytes and entries in ordinary Go memory and
// reaches them through in-process addresses.
type heapStore[E any] struct {
	m    meta
	ctrl ref.Addr[ctrl]
	slot ref.Addr[E]
}

func (s *heapStore[E]) meta() *meta { return &s.m }

func (s *heapStore[E]) alloc(capacity uint64) {
	c := make([]ctrl, capacity+groupSize)
	initCtrls(c, capacity)
	e := make([]E, capacity)
	s.ctrl.Set(&c[0])
	s.slot.Set(&e[0])
	s.m = meta{capacity: capacity, growthLeft: maxGrowth(capacity)}
}

func (s *heapStore[E]) ctrls() []ctrl {
	if s.ctrl.IsNil() {
		return emptyCtrls
	}
	return s.ctrl.Slice(int(s.m.capacity + groupSize))
}

func (s *heapStore[E]) slots() []E {
	if s.slot.IsNil() {
		return nil
	}
	return s.slot.Slice(int(s.m.capacity))
}

const flatMagic = 0x53575431 // "SWT1"

// flatHeader starts every flat block. Control bytes and entries follow it
// in the same allocation and are reached through offset references, so the
// block can be copied or written out and reopened elsewhere unchanged.
type flatHeader[E any] struct {
	m         meta
	ctrl      ref.Off[ctrl]
	slot      ref.Off[E]
	magic     uint32
	entrySize uint32
}

type flatLayout struct {
	ctrlOff uintptr
	slotOff uintptr
	total   uintptr
}

func layoutFor[E any](capacity uint64) flatLayout {
	var zero E
	hdr := unsafe.Sizeof(flatHeader[E]{})
	slotOff := alignUp(hdr+uintptr(capacity+groupSize), unsafe.Alignof(zero))
	return flatLayout{
		ctrlOff: hdr,
		slotOff: slotOff,
		total:   alignUp(slotOff+uintptr(capacity)*unsafe.Sizeof(zero), 8),
	}
}

func alignUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}

// flatStore keeps the whole slot set in one pointer-free block.
type flatStore[E any] struct {
	block []byte
	zero  meta
}

func (s *flatStore[E]) header() *flatHeader[E] {
	return (*flatHeader[E])(unsafe.Pointer(unsafe.SliceData(s.block)))
}

func (s *flatStore[E]) meta() *meta {
	if s.block == nil {
		return &s.zero
	}
	return &s.header().m
}

func (s *flatStore[E]) alloc(capacity uint64) {
	var zero E
	l := layoutFor[E](capacity)
	words := make([]uint64, l.total/8)
	s.block = unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), l.total)

	h := s.header()
	h.m = meta{capacity: capacity, growthLeft: maxGrowth(capacity)}
	h.magic = flatMagic
	h.entrySize = uint32(unsafe.Sizeof(zero))
	c := s.block[l.ctrlOff : l.ctrlOff+uintptr(capacity+groupSize)]
	initCtrls(c, capacity)
	h.ctrl.Set(&c[0])
	if unsafe.Sizeof(zero) == 0 {
		h.slot.Set((*E)(unsafe.Pointer(&s.block[0])))
	} else {
		h.slot.Set((*E)(unsafe.Pointer(&s.block[l.slotOff])))
	}
}

func (s *flatStore[E]) ctrls() []ctrl {
	if s.block == nil {
		return emptyCtrls
	}
	h := s.header()
	return h.ctrl.Slice(int(h.m.capacity + groupSize))
}

func (s *flatStore[E]) slots() []E {
	if s.block == nil {
		return nil
	}
	h := s.header()
	return h.slot.Slice(int(h.m.capacity))
}

// open adopts data as the block, validating the header against the
// layout this entry type produces.
func (s *flatStore[E]) open(data []byte) error {
	var zero E
	hdr := unsafe.Sizeof(flatHeader[E]{})
	if len(data) < int(hdr) {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	data = bytebuf.Aligned(data)
	h := (*flatHeader[E])(unsafe.Pointer(unsafe.SliceData(data)))
	if h.magic != flatMagic {
		return fmt.Errorf("%w: bad magic %#x", ErrCorrupt, h.magic)
	}
	if h.entrySize != uint32(unsafe.Sizeof(zero)) {
		return fmt.Errorf("%w: entry size %d, want %d", ErrCorrupt, h.entrySize, unsafe.Sizeof(zero))
	}
	capacity := h.m.capacity
	if capacity < groupSize-1 || capacity&(capacity+1) != 0 || capacity > 1<<40 {
		return fmt.Errorf("%w: capacity %d", ErrCorrupt, capacity)
	}
	l := layoutFor[E](capacity)
	if uintptr(len(data)) < l.total {
		return fmt.Errorf("%w: %d bytes, layout needs %d", ErrCorrupt, len(data), l.total)
	}
	wantCtrl := int64(l.ctrlOff) - int64(unsafe.Offsetof(h.ctrl))
	if h.ctrl.Offset() != wantCtrl {
		return fmt.Errorf("%w: control reference %d, want %d", ErrCorrupt, h.ctrl.Offset(), wantCtrl)
	}
	if unsafe.Sizeof(zero) != 0 {
		wantSlot := int64(l.slotOff) - int64(unsafe.Offsetof(h.slot))
		if h.slot.Offset() != wantSlot {
			return fmt.Errorf("%w: entry reference %d, want %d", ErrCorrupt, h.slot.Offset(), wantSlot)
		}
	}
	if h.m.used+h.m.growthLeft > maxGrowth(capacity) {
		return fmt.Errorf("%w: used %d growth-left %d exceed capacity %d", ErrCorrupt, h.m.used, h.m.growthLeft, capacity)
	}
	s.block = data[:l.total:l.total]
	if err := checkCtrls(s.ctrls(), &h.m); err != nil {
		s.block = nil
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// checkCtrls validates the control bytes against m. Lookups only
// terminate on an EMPTY byte, so at least one must survive every insert
// the growth budget still allows.
func checkCtrls(ctrls []ctrl, m *meta) error {
	if ctrls[m.capacity] != ctrlSentinel {
		return fmt.Errorf("ctrl(%d) = %#02x, expected sentinel", m.capacity, ctrls[m.capacity])
	}
	for i := uint64(0); i < groupSize-1 && i < m.capacity; i++ {
		j := ((i - (groupSize - 1)) & m.capacity) + (groupSize - 1)
		if ctrls[i] != ctrls[j] {
			return fmt.Errorf("ctrl(%d)=%#02x != mirror ctrl(%d)=%#02x", i, ctrls[i], j, ctrls[j])
		}
	}
	var full, empty uint64
	for i := uint64(0); i < m.capacity; i++ {
		switch c := ctrls[i]; {
		case c&ctrlEmpty == 0:
			full++
		case c == ctrlEmpty:
			empty++
		case c != ctrlDeleted:
			return fmt.Errorf("ctrl(%d) = %#02x is not a slot state", i, c)
		}
	}
	if full != m.used {
		return fmt.Errorf("%d full slots, used=%d", full, m.used)
	}
	if need := m.capacity - maxGrowth(m.capacity) + m.growthLeft; empty < need {
		return fmt.Errorf("%d empty slots, growth-left=%d needs %d", empty, m.growthLeft, need)
	}
	return nil
}

// memComparable reports whether equal values of t always have identical
// memory: no floats, whose zeros and NaNs break that, and no padding.
func memComparable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() == 0 || memComparable(t.Elem())
	case reflect.Struct:
		var size uintptr
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !memComparable(f.Type) {
				return false
			}
			size += f.Type.Size()
		}
		return size == t.Size()
	default:
		return true
	}
}

// pointerFree reports whether values of t can live in memory the garbage
// collector does not scan.
func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
