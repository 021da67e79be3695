// Package bytebuf implements the append-only write cursor and the matching
// read cursor used by the walker. Scalars are placed at their natural
// alignment measured from the start of the buffer.
package bytebuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

var (
	ErrOutOfBounds = errors.New("bytebuf: read past end of buffer")
	ErrBadPatch    = errors.New("bytebuf: patch outside written region")
)

var zeroPadding [8]byte

// Buffer is a growable, append-only byte buffer.
type Buffer struct {
	buf []byte
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int { return len(b.buf) }

// Align zero-pads until Len is a multiple of n.
func (b *Buffer) Align(n int) {
	if n <= 1 {
		return
	}
	if pad := padding(len(b.buf), n); pad > 0 {
		b.buf = append(b.buf, zeroPadding[:pad]...)
	}
}

func padding(off, n int) int {
	return (n - off%n) % n
}

// grow aligns to n and extends the buffer by n bytes, returning the offset
// of the new space.
func (b *Buffer) grow(n int) int {
	b.Align(n)
	off := len(b.buf)
	b.buf = append(b.buf, zeroPadding[:n]...)
	return off
}

func (b *Buffer) PutUint8(v uint8) {
	b.buf = append(b.buf, v)
}

func (b *Buffer) PutUint16(order binary.ByteOrder, v uint16) {
	off := b.grow(2)
	order.PutUint16(b.buf[off:], v)
}

func (b *Buffer) PutUint32(order binary.ByteOrder, v uint32) {
	off := b.grow(4)
	order.PutUint32(b.buf[off:], v)
}

func (b *Buffer) PutUint64(order binary.ByteOrder, v uint64) {
	off := b.grow(8)
	order.PutUint64(b.buf[off:], v)
}

// Write appends p verbatim.
func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *Buffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// Reserve aligns to align, appends n zero bytes and returns their offset
// so the caller can patch them once the value is known.
func (b *Buffer) Reserve(n, align int) int {
	b.Align(align)
	off := len(b.buf)
	for n > 0 {
		k := min(n, len(zeroPadding))
		b.buf = append(b.buf, zeroPadding[:k]...)
		n -= k
	}
	return off
}

func (b *Buffer) PatchUint32(off int, order binary.ByteOrder, v uint32) error {
	if off < 0 || off+4 > len(b.buf) {
		return fmt.Errorf("%w: offset %d", ErrBadPatch, off)
	}
	order.PutUint32(b.buf[off:], v)
	return nil
}

func (b *Buffer) PatchUint64(off int, order binary.ByteOrder, v uint64) error {
	if off < 0 || off+8 > len(b.buf) {
		return fmt.Errorf("%w: offset %d", ErrBadPatch, off)
	}
	order.PutUint64(b.buf[off:], v)
	return nil
}

// From returns the bytes written since off.
func (b *Buffer) From(off int) []byte { return b.buf[off:] }

// Bytes hands the written bytes to the caller. The buffer must be Reset
// before further use.
func (b *Buffer) Bytes() []byte { return b.buf }

func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// IsAligned reports whether data starts on an 8-byte boundary.
func IsAligned(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&data[0]))%8 == 0
}

// Aligned returns data unchanged when it starts on an 8-byte boundary and
// an aligned copy otherwise.
func Aligned(data []byte) []byte {
	if IsAligned(data) {
		return data
	}
	words := make([]uint64, (len(data)+7)/8)
	out := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(data))
	copy(out, data)
	return out
}
