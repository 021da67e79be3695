package swiss

import (
	"fmt"
	"iter"
	"reflect"
	"unsafe"
)

// FlatMap is a Map whose whole slot set lives in one pointer-free block
// linked internally by offset references. Bytes exposes the block; any
// byte-for-byte copy of it can be reopened with OpenFlatMap, in this
// process or another, without rebuilding the table.
//
// Keys and values must not contain pointers. The default hash reads the
// key's memory, so without WithHash key types holding floats or padding
// are rejected with ErrKeyType.
type FlatMap[K comparable, V any] struct {
	t table[K, mapEntry[K, V], flatStore[mapEntry[K, V]], *flatStore[mapEntry[K, V]]]
}

// flatOptions validates the entry layout and resolves opts. Key types are
// only restricted when the default memory hash is in use.
func flatOptions[K comparable, E any](opts []Option[K]) (*options[K], error) {
	var zero E
	if !pointerFree(reflect.TypeOf(zero)) {
		return nil, fmt.Errorf("%w: %T", ErrPointers, zero)
	}
	o := buildOptions(opts, nil)
	if o.hash == nil {
		if k := reflect.TypeFor[K](); !memComparable(k) {
			return nil, fmt.Errorf("%w: %v", ErrKeyType, k)
		}
		o.hash = memHash[K]
	}
	return o, nil
}

func NewFlatMap[K comparable, V any](opts ...Option[K]) (*FlatMap[K, V], error) {
	o, err := flatOptions[K, mapEntry[K, V]](opts)
	if err != nil {
		return nil, err
	}
	m := &FlatMap[K, V]{}
	m.t.init(mapKey[K, V], o)
	return m, nil
}

// OpenFlatMap adopts a block produced by Bytes. The map aliases data when
// it is 8-byte aligned; mutations through the map then write into data.
func OpenFlatMap[K comparable, V any](data []byte, opts ...Option[K]) (*FlatMap[K, V], error) {
	m, err := NewFlatMap[K, V](opts...)
	if err != nil {
		return nil, err
	}
	if err := m.t.s().open(data); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FlatMap[K, V]) lazy() {
	if m.t.key != nil {
		return
	}
	o, err := flatOptions[K, mapEntry[K, V]](nil)
	if err != nil {
		panic(err)
	}
	m.t.init(mapKey[K, V], o)
}

func (m *FlatMap[K, V]) Insert(key K, value V) bool {
	m.lazy()
	return m.t.insert(mapEntry[K, V]{key, value}, false)
}

func (m *FlatMap[K, V]) Put(key K, value V) {
	m.lazy()
	m.t.insert(mapEntry[K, V]{key, value}, true)
}

func (m *FlatMap[K, V]) Get(key K) (V, bool) {
	m.lazy()
	if i, ok := m.t.find(key, m.t.hash(key)); ok {
		return m.t.s().slots()[i].Value, true
	}
	var zero V
	return zero, false
}

func (m *FlatMap[K, V]) At(key K) (V, error) {
	v, ok := m.Get(key)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return v, nil
}

func (m *FlatMap[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *FlatMap[K, V]) Count(key K) int {
	if m.Contains(key) {
		return 1
	}
	return 0
}

func (m *FlatMap[K, V]) Erase(key K) int {
	m.lazy()
	return m.t.erase(key)
}

func (m *FlatMap[K, V]) Len() int            { return m.t.count() }
func (m *FlatMap[K, V]) Capacity() int       { return m.t.size() }
func (m *FlatMap[K, V]) LoadFactor() float64 { return m.t.loadFactor() }
func (m *FlatMap[K, V]) Clear()              { m.t.clear() }
func (m *FlatMap[K, V]) verify() error       { return m.t.verify() }

func (m *FlatMap[K, V]) Reserve(n int) {
	m.lazy()
	m.t.reserve(uint64(n))
}

// Bytes returns the backing block. It stays valid until the next mutation
// that grows or clears the map.
func (m *FlatMap[K, V]) Bytes() []byte { return m.t.st.block }

func (m *FlatMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.t.all(func(e *mapEntry[K, V]) bool { return yield(e.Key, e.Value) })
	}
}

// Clone copies the block. The copy needs no rehash since every internal
// link is relative.
func (m *FlatMap[K, V]) Clone() *FlatMap[K, V] {
	m.lazy()
	c := &FlatMap[K, V]{t: m.t}
	c.t.st = flatStore[mapEntry[K, V]]{block: cloneBlock(m.t.st.block)}
	return c
}

func cloneBlock(b []byte) []byte {
	if b == nil {
		return nil
	}
	words := make([]uint64, len(b)/8)
	out := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(b))
	copy(out, b)
	return out
}

func (m *FlatMap[K, V]) EachEntry(fn func(key, value any) error) error {
	for k, v := range m.All() {
		if err := fn(&k, &v); err != nil {
			return err
		}
	}
	return nil
}

func (m *FlatMap[K, V]) NewEntry() (key, value any) {
	return new(K), new(V)
}

func (m *FlatMap[K, V]) InsertEntry(key, value any) (bool, error) {
	k, v, err := entryPointers[K, V](key, value)
	if err != nil {
		return false, err
	}
	return m.Insert(*k, *v), nil
}

// FlatSet is the set counterpart of FlatMap.
type FlatSet[K comparable] struct {
	t table[K, setEntry[K], flatStore[setEntry[K]], *flatStore[setEntry[K]]]
}

func NewFlatSet[K comparable](opts ...Option[K]) (*FlatSet[K], error) {
	o, err := flatOptions[K, setEntry[K]](opts)
	if err != nil {
		return nil, err
	}
	s := &FlatSet[K]{}
	s.t.init(setKey[K], o)
	return s, nil
}

func OpenFlatSet[K comparable](data []byte, opts ...Option[K]) (*FlatSet[K], error) {
	s, err := NewFlatSet[K](opts...)
	if err != nil {
		return nil, err
	}
	if err := s.t.s().open(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FlatSet[K]) lazy() {
	if s.t.key != nil {
		return
	}
	o, err := flatOptions[K, setEntry[K]](nil)
	if err != nil {
		panic(err)
	}
	s.t.init(setKey[K], o)
}

func (s *FlatSet[K]) Insert(key K) bool {
	s.lazy()
	return s.t.insert(setEntry[K]{key}, false)
}

func (s *FlatSet[K]) Contains(key K) bool {
	s.lazy()
	_, ok := s.t.find(key, s.t.hash(key))
	return ok
}

func (s *FlatSet[K]) Count(key K) int {
	if s.Contains(key) {
		return 1
	}
	return 0
}

func (s *FlatSet[K]) Erase(key K) int {
	s.lazy()
	return s.t.erase(key)
}

func (s *FlatSet[K]) Len() int            { return s.t.count() }
func (s *FlatSet[K]) Capacity() int       { return s.t.size() }
func (s *FlatSet[K]) LoadFactor() float64 { return s.t.loadFactor() }
func (s *FlatSet[K]) Clear()              { s.t.clear() }
func (s *FlatSet[K]) Bytes() []byte       { return s.t.st.block }
func (s *FlatSet[K]) verify() error       { return s.t.verify() }

func (s *FlatSet[K]) Reserve(n int) {
	s.lazy()
	s.t.reserve(uint64(n))
}

func (s *FlatSet[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		s.t.all(func(e *setEntry[K]) bool { return yield(e.Key) })
	}
}

func (s *FlatSet[K]) Clone() *FlatSet[K] {
	s.lazy()
	c := &FlatSet[K]{t: s.t}
	c.t.st = flatStore[setEntry[K]]{block: cloneBlock(s.t.st.block)}
	return c
}

func (s *FlatSet[K]) EachEntry(fn func(key, value any) error) error {
	for k := range s.All() {
		if err := fn(&k, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *FlatSet[K]) NewEntry() (key, value any) {
	return new(K), nil
}

func (s *FlatSet[K]) InsertEntry(key, _ any) (bool, error) {
	k, ok := key.(*K)
	if !ok {
		return false, fmt.Errorf("%w: key %T, want %T", ErrEntryType, key, (*K)(nil))
	}
	return s.Insert(*k), nil
}
