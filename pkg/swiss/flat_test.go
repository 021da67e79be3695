package swiss

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int32
}

func TestFlatMapRelocation(t *testing.T) {
	m, err := NewFlatMap[uint64, point]()
	require.NoError(t, err)
	for i := uint64(0); i < 300; i++ {
		m.Put(i, point{int32(i), -int32(i)})
	}
	for i := uint64(0); i < 300; i += 3 {
		m.Erase(i)
	}
	require.NoError(t, m.verify())

	// Move the block to an odd address to force the aligned copy path.
	raw := make([]byte, len(m.Bytes())+1)
	copy(raw[1:], m.Bytes())
	moved, err := OpenFlatMap[uint64, point](raw[1:])
	require.NoError(t, err)
	require.Equal(t, m.Len(), moved.Len())
	require.Equal(t, m.Capacity(), moved.Capacity())
	for i := uint64(0); i < 300; i++ {
		p, ok := moved.Get(i)
		require.Equal(t, i%3 != 0, ok, "key %d", i)
		if ok {
			require.Equal(t, point{int32(i), -int32(i)}, p)
		}
	}
	require.NoError(t, moved.verify())

	moved.Put(1000, point{1, 2})
	require.False(t, m.Contains(1000))
}

func unsafeBytes(w []uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&w[0])), len(w)*8)
}

func TestFlatMapAliasesAlignedBlock(t *testing.T) {
	m, err := NewFlatMap[int32, int32]()
	require.NoError(t, err)
	m.Put(1, 10)
	block := make([]uint64, len(m.Bytes())/8)
	buf := unsafeBytes(block)
	copy(buf, m.Bytes())
	opened, err := OpenFlatMap[int32, int32](buf)
	require.NoError(t, err)
	opened.Put(1, 11)
	reopened, err := OpenFlatMap[int32, int32](buf)
	require.NoError(t, err)
	v, _ := reopened.Get(1)
	require.Equal(t, int32(11), v)
}

func TestFlatMapClone(t *testing.T) {
	m, err := NewFlatMap[int64, float64]()
	require.NoError(t, err)
	for i := int64(0); i < 40; i++ {
		m.Put(i, float64(i)/2)
	}
	c := m.Clone()
	m.Erase(5)
	require.True(t, c.Contains(5))
	require.Equal(t, 40, c.Len())
	require.NoError(t, c.verify())
}

func TestFlatMapRejectsPointers(t *testing.T) {
	_, err := NewFlatMap[int, string]()
	require.ErrorIs(t, err, ErrPointers)
	_, err = NewFlatSet[*int]()
	require.ErrorIs(t, err, ErrPointers)

	var m FlatMap[int, []byte]
	require.Panics(t, func() { m.Put(1, nil) })
}

func TestFlatKeysCompareByMemory(t *testing.T) {
	_, err := NewFlatMap[float64, int32]()
	require.ErrorIs(t, err, ErrKeyType)
	_, err = NewFlatSet[complex64]()
	require.ErrorIs(t, err, ErrKeyType)
	_, err = NewFlatSet[[2]float32]()
	require.ErrorIs(t, err, ErrKeyType)
	type padded struct {
		A uint8
		B uint32
	}
	_, err = NewFlatSet[padded]()
	require.ErrorIs(t, err, ErrKeyType)
	var lazy FlatSet[struct{ F float32 }]
	require.Panics(t, func() { lazy.Insert(struct{ F float32 }{}) })

	_, err = NewFlatMap[point, float64]()
	require.NoError(t, err)

	canonical := func(f float64) uint64 {
		if f == 0 {
			f = 0
		}
		return memHash(f)
	}
	m, err := NewFlatMap[float64, int32](WithHash(canonical))
	require.NoError(t, err)
	negZero := math.Copysign(0, -1)
	m.Put(0, 1)
	m.Put(negZero, 2)
	require.Equal(t, 1, m.Len())
	v, ok := m.Get(0)
	require.True(t, ok)
	require.Equal(t, int32(2), v)
}

func TestOpenFlatMapCorrupt(t *testing.T) {
	m, err := NewFlatMap[uint32, uint32]()
	require.NoError(t, err)
	m.Put(1, 2)
	good := append([]byte(nil), m.Bytes()...)

	_, err = OpenFlatMap[uint32, uint32](good[:8])
	require.ErrorIs(t, err, ErrCorrupt)

	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xff
	bad = bad[:len(bad)-8]
	_, err = OpenFlatMap[uint32, uint32](bad)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = OpenFlatMap[uint64, uint64](good)
	require.ErrorIs(t, err, ErrCorrupt)

	bad = append([]byte(nil), good...)
	binary.NativeEndian.PutUint64(bad[8:], 5) // used
	_, err = OpenFlatMap[uint32, uint32](bad)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestOpenFlatMapCorruptCtrls(t *testing.T) {
	m, err := NewFlatMap[uint32, uint32]()
	require.NoError(t, err)
	m.Put(1, 2)
	good := append([]byte(nil), m.Bytes()...)
	capacity := binary.NativeEndian.Uint64(good)
	ctrlOff := int(layoutFor[mapEntry[uint32, uint32]](capacity).ctrlOff)
	ctrls := func(b []byte) []byte { return b[ctrlOff : ctrlOff+int(capacity)+groupSize] }

	cases := map[string]func(b []byte){
		"no empty slots": func(b []byte) {
			for i, c := range ctrls(b) {
				if c == ctrlEmpty {
					ctrls(b)[i] = ctrlDeleted
				}
			}
			binary.NativeEndian.PutUint64(b[16:], 0) // growthLeft
		},
		"growth left overstated": func(b []byte) {
			c := ctrls(b)
			for i := 0; i < int(capacity); i++ {
				if c[i] == ctrlEmpty {
					setCtrl(c, capacity, uint64(i), ctrlDeleted)
					return
				}
			}
		},
		"sentinel": func(b []byte) { ctrls(b)[capacity] = ctrlEmpty },
		"mirror": func(b []byte) {
			c := ctrls(b)
			c[capacity+1] ^= 0x01
		},
		"illegal state": func(b []byte) {
			c := ctrls(b)
			for i := 0; i < int(capacity); i++ {
				if c[i] == ctrlEmpty {
					setCtrl(c, capacity, uint64(i), 0x81)
					return
				}
			}
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			bad := append([]byte(nil), good...)
			corrupt(bad)
			_, err := OpenFlatMap[uint32, uint32](bad)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}

	_, err = OpenFlatMap[uint32, uint32](append([]byte(nil), good...))
	require.NoError(t, err)
}

func TestOpenFlatMapWithTombstones(t *testing.T) {
	m, err := NewFlatMap[uint32, uint32]()
	require.NoError(t, err)
	for i := uint32(0); i < 100; i++ {
		m.Put(i, i)
	}
	for i := uint32(0); i < 100; i += 3 {
		require.Equal(t, 1, m.Erase(i))
	}
	opened, err := OpenFlatMap[uint32, uint32](append([]byte(nil), m.Bytes()...))
	require.NoError(t, err)
	require.NoError(t, opened.verify())
	require.Equal(t, m.Len(), opened.Len())
	_, ok := opened.Get(3)
	require.False(t, ok)
	v, ok := opened.Get(4)
	require.True(t, ok)
	require.Equal(t, uint32(4), v)
}

func TestFlatSet(t *testing.T) {
	var s FlatSet[uuid.UUID]
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.True(t, s.Insert(id))
	}
	require.False(t, s.Insert(ids[1]))
	require.Equal(t, 1, s.Erase(ids[1]))

	opened, err := OpenFlatSet[uuid.UUID](append([]byte(nil), s.Bytes()...))
	require.NoError(t, err)
	require.True(t, opened.Contains(ids[0]))
	require.False(t, opened.Contains(ids[1]))
	require.True(t, opened.Contains(ids[2]))
	require.Equal(t, 2, opened.Len())

	k, v := opened.NewEntry()
	require.Nil(t, v)
	*k.(*uuid.UUID) = ids[1]
	ok, err := opened.InsertEntry(k, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, opened.Len())
}

func TestFlatHashIsStable(t *testing.T) {
	require.Equal(t, memHash(uint64(12345)), memHash(uint64(12345)))
	require.NotEqual(t, memHash(uint64(1)), memHash(uint64(2)))
}
