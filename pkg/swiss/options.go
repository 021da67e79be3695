package swiss

import (
	"hash/maphash"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

type options[K comparable] struct {
	hash     func(K) uint64
	equal    func(a, b K) bool
	capacity int
	logger   *zap.Logger
}

// Option configures a container at construction.
type Option[K comparable] func(*options[K])

// WithHash replaces the default hash function. Keys that compare equal
// under the equality function must hash equally.
func WithHash[K comparable](fn func(K) uint64) Option[K] {
	return func(o *options[K]) { o.hash = fn }
}

// WithEqual replaces == as the key equality function.
func WithEqual[K comparable](fn func(a, b K) bool) Option[K] {
	return func(o *options[K]) { o.equal = fn }
}

// WithCapacity presizes the container for n entries.
func WithCapacity[K comparable](n int) Option[K] {
	return func(o *options[K]) { o.capacity = n }
}

// WithLogger attaches a logger that receives growth events at debug level.
func WithLogger[K comparable](l *zap.Logger) Option[K] {
	return func(o *options[K]) { o.logger = l }
}

func buildOptions[K comparable](opts []Option[K], fallback func(K) uint64) *options[K] {
	o := &options[K]{}
	for _, opt := range opts {
		opt(o)
	}
	if o.hash == nil {
		o.hash = fallback
	}
	return o
}

// seededHash hashes with a per-container random seed.
func seededHash[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(k K) uint64 { return maphash.Comparable(seed, k) }
}

// memHash hashes the memory representation of a pointer-free key. The
// result is stable across processes, which flat containers rely on after
// being reopened.
func memHash[K comparable](k K) uint64 {
	b := unsafe.Slice((*byte)(unsafe.Pointer(&k)), unsafe.Sizeof(k))
	return xxhash.Sum64(b)
}
