package bytebuf

import (
	"encoding/binary"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaturalAlignment(t *testing.T) {
	b := NewBuffer(0)
	b.PutUint8(1)
	b.PutUint32(binary.LittleEndian, 0xdeadbeef)
	require.Equal(t, 8, b.Len())
	require.Equal(t, []byte{1, 0, 0, 0, 0xef, 0xbe, 0xad, 0xde}, b.Bytes())

	b.PutUint8(2)
	b.PutUint64(binary.BigEndian, 1)
	require.Equal(t, 24, b.Len())
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, b.Bytes()[16:])
}

func TestByteOrders(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian, binary.NativeEndian} {
		b := NewBuffer(0)
		b.PutUint16(order, 0x0102)
		b.PutUint32(order, 0x03040506)
		b.PutUint64(order, 0x0708090a0b0c0d0e)
		require.Equal(t, 16, b.Len(), order.String())

		want := make([]byte, 16)
		order.PutUint16(want, 0x0102)
		order.PutUint32(want[4:], 0x03040506)
		order.PutUint64(want[8:], 0x0708090a0b0c0d0e)
		assert.Equal(t, want, b.Bytes(), order.String())
	}
}

func TestReservePatch(t *testing.T) {
	b := NewBuffer(16)
	b.PutUint8(9)
	off := b.Reserve(4, 4)
	require.Equal(t, 4, off)
	b.WriteString("tail")
	require.NoError(t, b.PatchUint32(off, binary.LittleEndian, 7))
	require.Equal(t, []byte{9, 0, 0, 0, 7, 0, 0, 0, 't', 'a', 'i', 'l'}, b.Bytes())

	require.ErrorIs(t, b.PatchUint32(10, binary.LittleEndian, 1), ErrBadPatch)
	require.ErrorIs(t, b.PatchUint64(-1, binary.LittleEndian, 1), ErrBadPatch)
}

func TestReaderMirrorsBuffer(t *testing.T) {
	condition := func(a uint8, c uint16, d uint32, e uint64, big bool) bool {
		var order binary.ByteOrder = binary.LittleEndian
		if big {
			order = binary.BigEndian
		}
		b := NewBuffer(0)
		b.PutUint8(a)
		b.PutUint16(order, c)
		b.PutUint8(a)
		b.PutUint64(order, e)
		b.PutUint32(order, d)

		r := NewReader(b.Bytes())
		ga, err := r.Uint8()
		require.NoError(t, err)
		gc, err := r.Uint16(order)
		require.NoError(t, err)
		ga2, err := r.Uint8()
		require.NoError(t, err)
		ge, err := r.Uint64(order)
		require.NoError(t, err)
		gd, err := r.Uint32(order)
		require.NoError(t, err)
		return assert.ObjectsAreEqual([]any{a, c, a, e, d}, []any{ga, gc, ga2, ge, gd}) && r.Remaining() == 0
	}
	require.NoError(t, quick.Check(condition, &quick.Config{}))
}

func TestReaderOutOfBounds(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	_, err := r.Uint32(binary.LittleEndian)
	require.ErrorIs(t, err, ErrOutOfBounds)

	r = NewReader([]byte{1, 2, 3, 4, 5})
	_, err = r.Uint8()
	require.NoError(t, err)
	_, err = r.Uint32(binary.LittleEndian)
	require.ErrorIs(t, err, ErrOutOfBounds)

	_, err = r.Next(-1)
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = r.Peek64(3, binary.LittleEndian)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestAligned(t *testing.T) {
	b := NewBuffer(0)
	b.PutUint64(binary.LittleEndian, 11)
	b.PutUint64(binary.LittleEndian, 22)
	src := b.Bytes()
	raw := []byte{0}
	raw = append(raw, src...)
	shifted := raw[1:]
	if IsAligned(shifted) {
		t.Skip("allocator returned an offset that keeps the shifted slice aligned")
	}
	out := Aligned(shifted)
	require.True(t, IsAligned(out))
	require.Equal(t, src, out)

	aligned := make([]byte, 16)
	if IsAligned(aligned) {
		out = Aligned(aligned)
		require.Same(t, &aligned[0], &out[0])
	}
	require.True(t, IsAligned(nil))
}

func BenchmarkBufferPutUint64(b *testing.B) {
	buf := NewBuffer(1 << 16)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if buf.Len() > 1<<15 {
			buf.Reset()
		}
		buf.PutUint8(1)
		buf.PutUint64(binary.LittleEndian, uint64(i))
	}
}
