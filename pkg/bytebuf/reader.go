package bytebuf

import (
	"encoding/binary"
	"fmt"
)

// Reader walks a byte slice with the same alignment rules as Buffer.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Offset() int    { return r.pos }
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) Align(n int) error {
	if n <= 1 {
		return nil
	}
	pad := padding(r.pos, n)
	if r.pos+pad > len(r.data) {
		return r.short(pad)
	}
	r.pos += pad
	return nil
}

// Next returns the following n bytes without copying.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, r.short(n)
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.Next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16(order binary.ByteOrder) (uint16, error) {
	b, err := r.aligned(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

func (r *Reader) Uint32(order binary.ByteOrder) (uint32, error) {
	b, err := r.aligned(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func (r *Reader) Uint64(order binary.ByteOrder) (uint64, error) {
	b, err := r.aligned(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

// Peek64 reads an aligned uint64 at off without moving the cursor.
func (r *Reader) Peek64(off int, order binary.ByteOrder) (uint64, error) {
	if off < 0 || off%8 != 0 || off+8 > len(r.data) {
		return 0, fmt.Errorf("%w: peek at %d", ErrOutOfBounds, off)
	}
	return order.Uint64(r.data[off:]), nil
}

func (r *Reader) aligned(n int) ([]byte, error) {
	if err := r.Align(n); err != nil {
		return nil, err
	}
	return r.Next(n)
}

func (r *Reader) short(n int) error {
	return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrOutOfBounds, n, r.pos, r.Remaining())
}
