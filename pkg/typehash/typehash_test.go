package typehash

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/rawbytedev/bitwalk/pkg/ref"
	"github.com/rawbytedev/bitwalk/pkg/swiss"
	"github.com/stretchr/testify/require"
)

type Color uint8

type Node struct {
	Value int
	Next  *Node
	Kids  []Node
}

type Pair struct {
	A, B Inner
}

type Inner struct {
	X int32
}

func recordV1() uint64 {
	type Record struct {
		ID   uint64
		Name string
	}
	return For[Record]()
}

func recordV2() uint64 {
	type Record struct {
		ID   uint64
		Name string
		Tags []string
	}
	return For[Record]()
}

func recordSkipped() uint64 {
	type Record struct {
		ID      uint64
		Name    string
		Scratch []byte `bitwalk:"-"`
		cache   map[string]int
	}
	return For[Record]()
}

func recordSwapped() uint64 {
	type Record struct {
		Name string
		ID   uint64
	}
	return For[Record]()
}

func TestDeterministic(t *testing.T) {
	require.Equal(t, For[Node](), For[Node]())
	require.Equal(t, Of(reflect.TypeFor[Pair]()), For[Pair]())
}

func TestScalarsHashByWireShape(t *testing.T) {
	require.Equal(t, For[int](), For[int64]())
	require.Equal(t, For[uint](), For[uint64]())
	require.Equal(t, For[Color](), For[uint8]())
	require.NotEqual(t, For[int32](), For[uint32]())
	require.NotEqual(t, For[float32](), For[int32]())
	require.NotEqual(t, For[complex64](), For[complex128]())
}

func TestLayoutChangesHash(t *testing.T) {
	require.NotEqual(t, recordV1(), recordV2())
	require.NotEqual(t, recordV1(), recordSwapped())
	require.Equal(t, recordV1(), recordSkipped())
}

func TestContainerMarkers(t *testing.T) {
	require.NotEqual(t, For[[]int32](), For[[4]int32]())
	require.NotEqual(t, For[[4]int32](), For[[5]int32]())
	require.NotEqual(t, For[*int32](), For[int32]())
	require.NotEqual(t, For[map[int]string](), For[map[string]int]())
	require.Equal(t, For[string](), For[[]byte]())
	require.Equal(t, For[[16]byte](), For[uuid.UUID]())
}

func TestOffsetReferences(t *testing.T) {
	require.Equal(t, For[ref.Off[int32]](), For[ref.Off[string]]())
	require.NotEqual(t, For[ref.Off[int32]](), For[int64]())
	type withRef struct {
		X int32
		P ref.Off[int32]
	}
	type withoutRef struct {
		X int32
	}
	require.NotEqual(t, For[withRef](), For[withoutRef]())
}

func TestSwissMatchesBuiltinMap(t *testing.T) {
	require.Equal(t, For[map[int]string](), For[swiss.Map[int, string]]())
	require.Equal(t, For[map[int32]int64](), For[swiss.FlatMap[int32, int64]]())
	require.NotEqual(t, For[swiss.Set[int]](), For[swiss.Map[int, int]]())
	require.Equal(t, For[swiss.Set[int]](), For[swiss.FlatSet[int]]())
}

func TestRecursiveTypesTerminate(t *testing.T) {
	h := For[Node]()
	require.NotZero(t, h)
	type List []List
	require.NotZero(t, For[List]())
}

func TestSeenTableIsPerCall(t *testing.T) {
	first := For[Pair]()
	For[Inner]()
	require.Equal(t, first, For[Pair]())
}
