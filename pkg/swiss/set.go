package swiss

import (
	"fmt"
	"iter"
)

type setEntry[K comparable] struct {
	Key K
}

func setKey[K comparable](e *setEntry[K]) K { return e.Key }

// Set is an unordered collection of distinct keys. The zero value is an
// empty set ready to use.
type Set[K comparable] struct {
	t table[K, setEntry[K], heapStore[setEntry[K]], *heapStore[setEntry[K]]]
}

func NewSet[K comparable](opts ...Option[K]) *Set[K] {
	s := &Set[K]{}
	s.t.init(setKey[K], buildOptions(opts, seededHash[K]()))
	return s
}

func (s *Set[K]) lazy() {
	if s.t.key == nil {
		s.t.init(setKey[K], buildOptions[K](nil, seededHash[K]()))
	}
}

// Insert adds key and reports whether it was absent.
func (s *Set[K]) Insert(key K) bool {
	s.lazy()
	return s.t.insert(setEntry[K]{key}, false)
}

func (s *Set[K]) Contains(key K) bool {
	s.lazy()
	_, ok := s.t.find(key, s.t.hash(key))
	return ok
}

func (s *Set[K]) Count(key K) int {
	if s.Contains(key) {
		return 1
	}
	return 0
}

func (s *Set[K]) Erase(key K) int {
	s.lazy()
	return s.t.erase(key)
}

func (s *Set[K]) Len() int            { return s.t.count() }
func (s *Set[K]) Capacity() int       { return s.t.size() }
func (s *Set[K]) LoadFactor() float64 { return s.t.loadFactor() }
func (s *Set[K]) Clear()              { s.t.clear() }

func (s *Set[K]) Reserve(n int) {
	s.lazy()
	s.t.reserve(uint64(n))
}

func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		s.t.all(func(e *setEntry[K]) bool { return yield(e.Key) })
	}
}

func (s *Set[K]) Clone() *Set[K] {
	s.lazy()
	return &Set[K]{t: s.t.clone()}
}

// EachEntry calls fn with a pointer to a copy of each key and a nil value.
func (s *Set[K]) EachEntry(fn func(key, value any) error) error {
	for k := range s.All() {
		if err := fn(&k, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set[K]) NewEntry() (key, value any) {
	return new(K), nil
}

func (s *Set[K]) InsertEntry(key, _ any) (bool, error) {
	k, ok := key.(*K)
	if !ok {
		return false, fmt.Errorf("%w: key %T, want %T", ErrEntryType, key, (*K)(nil))
	}
	return s.Insert(*k), nil
}
