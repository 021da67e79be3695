package swiss

import (
	"errors"
	"fmt"
	"iter"
)

// ErrEntryType is returned by InsertEntry when handed pointers of the wrong
// type.
var ErrEntryType = errors.New("swiss: entry type mismatch")

type mapEntry[K comparable, V any] struct {
	Key   K
	Value V
}

func mapKey[K comparable, V any](e *mapEntry[K, V]) K { return e.Key }

// Map is an unordered key/value container. The zero value is an empty map
// ready to use. A Map must not be copied after first use.
type Map[K comparable, V any] struct {
	t table[K, mapEntry[K, V], heapStore[mapEntry[K, V]], *heapStore[mapEntry[K, V]]]
}

func NewMap[K comparable, V any](opts ...Option[K]) *Map[K, V] {
	m := &Map[K, V]{}
	m.t.init(mapKey[K, V], buildOptions(opts, seededHash[K]()))
	return m
}

func (m *Map[K, V]) lazy() {
	if m.t.key == nil {
		m.t.init(mapKey[K, V], buildOptions[K](nil, seededHash[K]()))
	}
}

// Insert adds key with value unless key is already present, in which case
// the existing value is kept. It reports whether the entry was added.
func (m *Map[K, V]) Insert(key K, value V) bool {
	m.lazy()
	return m.t.insert(mapEntry[K, V]{key, value}, false)
}

// Put inserts or overwrites key.
func (m *Map[K, V]) Put(key K, value V) {
	m.lazy()
	m.t.insert(mapEntry[K, V]{key, value}, true)
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	m.lazy()
	if i, ok := m.t.find(key, m.t.hash(key)); ok {
		return m.t.s().slots()[i].Value, true
	}
	var zero V
	return zero, false
}

// At is the strict form of Get.
func (m *Map[K, V]) At(key K) (V, error) {
	v, ok := m.Get(key)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return v, nil
}

func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Count returns 1 if key is present and 0 otherwise.
func (m *Map[K, V]) Count(key K) int {
	if m.Contains(key) {
		return 1
	}
	return 0
}

// Erase removes key and returns how many entries were removed.
func (m *Map[K, V]) Erase(key K) int {
	m.lazy()
	return m.t.erase(key)
}

func (m *Map[K, V]) Len() int            { return m.t.count() }
func (m *Map[K, V]) Capacity() int       { return m.t.size() }
func (m *Map[K, V]) LoadFactor() float64 { return m.t.loadFactor() }
func (m *Map[K, V]) Clear()              { m.t.clear() }
func (m *Map[K, V]) verify() error       { return m.t.verify() }
func (m *Map[K, V]) debugString() string { return m.t.debugString() }

// Reserve presizes the map so n entries fit without growth.
func (m *Map[K, V]) Reserve(n int) {
	m.lazy()
	m.t.reserve(uint64(n))
}

// All iterates entries in slot order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.t.all(func(e *mapEntry[K, V]) bool { return yield(e.Key, e.Value) })
	}
}

func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		m.t.all(func(e *mapEntry[K, V]) bool { return yield(e.Key) })
	}
}

// Clone returns an independent copy sharing the hash configuration.
func (m *Map[K, V]) Clone() *Map[K, V] {
	m.lazy()
	return &Map[K, V]{t: m.t.clone()}
}

// EachEntry calls fn with pointers to a copy of each key and value.
func (m *Map[K, V]) EachEntry(fn func(key, value any) error) error {
	for k, v := range m.All() {
		if err := fn(&k, &v); err != nil {
			return err
		}
	}
	return nil
}

// NewEntry returns fresh key and value pointers for InsertEntry.
func (m *Map[K, V]) NewEntry() (key, value any) {
	return new(K), new(V)
}

func (m *Map[K, V]) InsertEntry(key, value any) (bool, error) {
	k, v, err := entryPointers[K, V](key, value)
	if err != nil {
		return false, err
	}
	return m.Insert(*k, *v), nil
}

func entryPointers[K comparable, V any](key, value any) (*K, *V, error) {
	k, ok := key.(*K)
	if !ok {
		return nil, nil, fmt.Errorf("%w: key %T, want %T", ErrEntryType, key, (*K)(nil))
	}
	v, ok := value.(*V)
	if !ok {
		return nil, nil, fmt.Errorf("%w: value %T, want %T", ErrEntryType, value, (*V)(nil))
	}
	return k, v, nil
}

func (t *table[K, E, S, PS]) clone() table[K, E, S, PS] {
	c := *t
	var zero S
	c.st = zero
	src := t.s()
	if src.meta().capacity == 0 {
		return c
	}
	dst := c.s()
	dst.alloc(src.meta().capacity)
	copy(dst.ctrls(), src.ctrls())
	copy(dst.slots(), src.slots())
	*dst.meta() = *src.meta()
	return c
}
