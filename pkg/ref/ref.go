// Package ref provides two interchangeable reference kinds: Off, a
// self-relative offset that survives relocation of the memory holding it,
// and Addr, an ordinary in-process pointer with the same method set.
//
// An Off is only meaningful while it and its target live in the same Go
// allocation and move together. Copying the reference without its target
// (or the target without the reference) leaves the stored offset pointing
// at unrelated memory; nothing detects this at run time.
package ref

import "unsafe"

// Kind is the method set shared by both reference kinds.
type Kind[T any] interface {
	*Off[T] | *Addr[T]
	Set(p *T)
	Get() *T
	IsNil() bool
	At(i int) *T
	Advance(n int)
}

// Off stores the signed byte distance from its own address to its target.
// The zero value is null.
type Off[T any] struct {
	off int64
}

// Set points o at p. A nil p makes o null. Pointing a reference at its own
// address is not representable and panics.
func (o *Off[T]) Set(p *T) {
	if p == nil {
		o.off = 0
		return
	}
	d := int64(uintptr(unsafe.Pointer(p)) - uintptr(unsafe.Pointer(o)))
	if d == 0 {
		panic("ref: offset reference cannot target itself")
	}
	o.off = d
}

// Get returns the target, recomputed from o's current address.
func (o *Off[T]) Get() *T {
	if o.off == 0 {
		panic("ref: dereference of null offset")
	}
	return (*T)(unsafe.Add(unsafe.Pointer(o), o.off))
}

func (o *Off[T]) IsNil() bool { return o.off == 0 }

// Offset returns the raw stored distance in bytes.
func (o *Off[T]) Offset() int64 { return o.off }

// SetOffset stores a raw byte distance. The walker restores decoded
// references through it.
func (o *Off[T]) SetOffset(d int64) { o.off = d }

// Assign makes o reach the same absolute target as src.
func (o *Off[T]) Assign(src *Off[T]) {
	if src.IsNil() {
		o.off = 0
		return
	}
	o.Set(src.Get())
}

// Advance moves the target by n elements.
func (o *Off[T]) Advance(n int) {
	if o.off == 0 {
		panic("ref: advance of null offset")
	}
	var zero T
	o.off += int64(n) * int64(unsafe.Sizeof(zero))
	if o.off == 0 {
		panic("ref: offset reference cannot target itself")
	}
}

// At returns the i-th element counting from the target.
func (o *Off[T]) At(i int) *T {
	var zero T
	return (*T)(unsafe.Add(unsafe.Pointer(o.Get()), uintptr(i)*unsafe.Sizeof(zero)))
}

// Slice views n elements starting at the target.
func (o *Off[T]) Slice(n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice(o.Get(), n)
}

// Addr is an ordinary pointer exposing the Off method set.
type Addr[T any] struct {
	p *T
}

func (a *Addr[T]) Set(p *T) { a.p = p }

func (a *Addr[T]) Get() *T {
	if a.p == nil {
		panic("ref: dereference of null address")
	}
	return a.p
}

func (a *Addr[T]) IsNil() bool { return a.p == nil }

func (a *Addr[T]) Assign(src *Addr[T]) { a.p = src.p }

func (a *Addr[T]) Advance(n int) {
	var zero T
	a.p = (*T)(unsafe.Add(unsafe.Pointer(a.Get()), n*int(unsafe.Sizeof(zero))))
}

func (a *Addr[T]) At(i int) *T {
	var zero T
	return (*T)(unsafe.Add(unsafe.Pointer(a.Get()), uintptr(i)*unsafe.Sizeof(zero)))
}

func (a *Addr[T]) Slice(n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice(a.Get(), n)
}

// Diff returns the distance from b's target to a's target in elements.
func Diff[T any](a, b *Off[T]) int {
	var zero T
	size := int64(unsafe.Sizeof(zero))
	if size == 0 {
		return 0
	}
	da := uintptr(unsafe.Pointer(a.Get()))
	db := uintptr(unsafe.Pointer(b.Get()))
	return int(int64(da-db) / size)
}
