package bitwalk

import (
	"reflect"

	"github.com/rawbytedev/bitwalk/internal/common"
)

// typeInfo is the cached walk plan for one type.
type typeInfo struct {
	typ       reflect.Type
	shape     common.Shape
	kind      reflect.Kind
	size      int // wire width of scalars and complex halves
	align     int
	aliasable bool // slices of this type may share memory with wire bytes
	elem      *typeInfo
	key       *typeInfo
	fields    []fieldInfo
	minWire   int // lower bound on the encoded size, used for plausibility checks
	err       error
}

type fieldInfo struct {
	index int
	name  string
	info  *typeInfo
}

// info returns the plan for t, building and caching it on first use.
// Recursive types resolve to the entry inserted before their components
// are visited.
func (c *Codec) info(t reflect.Type) *typeInfo {
	if ti, ok := c.plans.Get(t); ok {
		return ti
	}
	ti := &typeInfo{typ: t, kind: t.Kind(), shape: common.Classify(t)}
	c.plans.Put(t, ti)

	switch ti.shape {
	case common.ShapeScalar:
		ti.size = common.FixedSize(ti.kind)
		ti.align = common.Alignment(ti.kind)
		ti.aliasable = common.Aliasable(ti.kind)
		ti.minWire = ti.size
	case common.ShapeComplex:
		ti.size = int(t.Size()) / 2
		ti.align = ti.size
		ti.minWire = 2 * ti.size
	case common.ShapeString, common.ShapeSequence, common.ShapeAssociative:
		ti.minWire = 8
	case common.ShapeSlice:
		ti.elem = c.info(t.Elem())
		ti.minWire = 8
	case common.ShapeArray:
		ti.elem = c.info(t.Elem())
		ti.minWire = t.Len() * ti.elem.minWire
	case common.ShapePointer:
		ti.elem = c.info(t.Elem())
		ti.minWire = 1
	case common.ShapeMap:
		ti.key = c.info(t.Key())
		ti.elem = c.info(t.Elem())
		ti.minWire = 8
	case common.ShapeUnion:
		ti.minWire = 4
	case common.ShapeOffset:
		ti.size, ti.align, ti.minWire = 8, 8, 8
	case common.ShapeStruct:
		fields, err := common.Fields(t)
		if err != nil {
			ti.err = err
			break
		}
		ti.fields = make([]fieldInfo, len(fields))
		for i, f := range fields {
			fi := c.info(f.Type)
			ti.fields[i] = fieldInfo{index: f.Index, name: f.Name, info: fi}
			ti.minWire += fi.minWire
		}
	default:
		ti.err = unsupported(t)
	}
	return ti
}

// elemWidth returns a conservative element width for plausibility checks.
func (ti *typeInfo) elemWidth() int {
	if ti.minWire < 1 {
		return 1
	}
	return ti.minWire
}
