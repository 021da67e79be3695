// Package swiss implements an open-addressing hash table in the Swiss-table
// style: control bytes scanned a group at a time, 7-bit tags, tombstones
// on erase and full rehash on growth. One engine backs Map, Set and their
// relocatable Flat variants.
package swiss

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const debug = false

// table is the engine shared by every container. E is the stored entry,
// K the key projected from it and S the storage layout.
type table[K comparable, E any, S any, PS store[E, S]] struct {
	st    S
	key   func(*E) K
	hash  func(K) uint64
	equal func(a, b K) bool
	log   *zap.Logger
}

func (t *table[K, E, S, PS]) s() PS { return PS(&t.st) }

func (t *table[K, E, S, PS]) init(key func(*E) K, o *options[K]) {
	t.key = key
	t.hash = o.hash
	t.equal = o.equal
	t.log = o.logger
	if t.equal == nil {
		t.equal = func(a, b K) bool { return a == b }
	}
	if o.capacity > 0 {
		t.reserve(uint64(o.capacity))
	}
}

func (t *table[K, E, S, PS]) count() int { return int(t.s().meta().used) }

func (t *table[K, E, S, PS]) size() int { return int(t.s().meta().capacity) }

// find returns the index of the slot holding key.
func (t *table[K, E, S, PS]) find(key K, h uint64) (uint64, bool) {
	s := t.s()
	m := s.meta()
	if m.used == 0 {
		return 0, false
	}
	ctrls, slots := s.ctrls(), s.slots()
	for seq := makeProbeSeq(h1(h), m.capacity); ; seq = seq.next() {
		g := groupAt(ctrls, seq.offset)
		match := g.matchH2(h2(h))
		for match != 0 {
			idx := match.first()
			i := seq.offsetAt(idx)
			if t.equal(key, t.key(&slots[i])) {
				return i, true
			}
			match = match.remove(idx)
		}
		if g.matchEmpty() != 0 {
			return 0, false
		}
	}
}

// insert adds e unless its key is present. With overwrite set an existing
// entry is replaced. It reports whether a new entry was added.
func (t *table[K, E, S, PS]) insert(e E, overwrite bool) bool {
	k := t.key(&e)
	h := t.hash(k)
	if i, ok := t.find(k, h); ok {
		if overwrite {
			t.s().slots()[i] = e
		}
		return false
	}
	if t.s().meta().growthLeft == 0 {
		t.rehash()
	}
	s := t.s()
	place(s, h, e)
	s.meta().used++
	t.checkInvariants()
	return true
}

// place stores an entry known to be absent into the first empty or
// deleted slot along its probe sequence. The caller guarantees room.
func place[E any, S any, PS store[E, S]](s PS, h uint64, e E) {
	m := s.meta()
	ctrls, slots := s.ctrls(), s.slots()
	for seq := makeProbeSeq(h1(h), m.capacity); ; seq = seq.next() {
		match := groupAt(ctrls, seq.offset).matchEmptyOrDeleted()
		if match != 0 {
			i := seq.offsetAt(match.first())
			slots[i] = e
			if ctrls[i] == ctrlEmpty {
				m.growthLeft--
			}
			setCtrl(ctrls, m.capacity, i, ctrl(h2(h)))
			return
		}
	}
}

// setCtrl writes slot i's control byte and its mirror past the sentinel.
func setCtrl(ctrls []ctrl, capacity, i uint64, v ctrl) {
	ctrls[i] = v
	ctrls[((i-(groupSize-1))&capacity)+(groupSize-1)] = v
}

// erase removes key and returns the number of entries removed.
func (t *table[K, E, S, PS]) erase(key K) int {
	i, ok := t.find(key, t.hash(key))
	if !ok {
		return 0
	}
	s := t.s()
	m := s.meta()
	var zero E
	s.slots()[i] = zero
	m.used--
	if t.wasNeverFull(i) {
		setCtrl(s.ctrls(), m.capacity, i, ctrlEmpty)
		m.growthLeft++
	} else {
		setCtrl(s.ctrls(), m.capacity, i, ctrlDeleted)
	}
	t.checkInvariants()
	return 1
}

// wasNeverFull reports whether slot i was never inside a group that had
// no empty slot. Such a slot can be marked empty instead of deleted since
// no probe sequence could have passed over it.
func (t *table[K, E, S, PS]) wasNeverFull(i uint64) bool {
	s := t.s()
	capacity := s.meta().capacity
	if capacity < groupSize {
		return true
	}
	ctrls := s.ctrls()
	before := (i - groupSize) & capacity
	emptyAfter := groupAt(ctrls, i).matchEmpty()
	emptyBefore := groupAt(ctrls, before).matchEmpty()
	return emptyBefore != 0 && emptyAfter != 0 &&
		emptyBefore.absentAtEnd()+emptyAfter.absentAtStart() < groupSize
}

func (t *table[K, E, S, PS]) rehash() {
	t.resize(2*t.s().meta().capacity + 1)
}

// resize builds a complete slot set of newCapacity and moves every entry
// into it before the old one is dropped.
func (t *table[K, E, S, PS]) resize(newCapacity uint64) {
	if newCapacity < groupSize-1 {
		newCapacity = groupSize - 1
	}
	if newCapacity > 1<<58 {
		panic(ErrAllocation)
	}
	old := t.s()
	oldMeta := *old.meta()

	var next S
	ns := PS(&next)
	ns.alloc(newCapacity)
	if oldMeta.used > 0 {
		ctrls, slots := old.ctrls(), old.slots()
		for i := uint64(0); i < oldMeta.capacity; i++ {
			if ctrls[i]&ctrlEmpty != 0 {
				continue
			}
			place(ns, t.hash(t.key(&slots[i])), slots[i])
		}
	}
	ns.meta().used = oldMeta.used
	t.st = next

	if t.log != nil {
		t.log.Debug("swiss: resize",
			zap.Uint64("from", oldMeta.capacity),
			zap.Uint64("to", newCapacity),
			zap.Uint64("used", oldMeta.used),
			zap.Uint64("growthLeft", ns.meta().growthLeft))
	}
	t.checkInvariants()
}

// reserve grows the table so n entries fit without further growth.
func (t *table[K, E, S, PS]) reserve(n uint64) {
	m := t.s().meta()
	if n <= m.used+m.growthLeft {
		return
	}
	c := capacityFor(n)
	if c > m.capacity {
		t.resize(c)
	}
}

func (t *table[K, E, S, PS]) clear() {
	var zero S
	t.st = zero
}

// all yields every full slot. The slot set is snapshotted so growth
// during iteration does not invalidate it.
func (t *table[K, E, S, PS]) all(yield func(*E) bool) {
	s := t.s()
	capacity := s.meta().capacity
	ctrls, slots := s.ctrls(), s.slots()
	for i := uint64(0); i < capacity; i++ {
		if ctrls[i]&ctrlEmpty != 0 {
			continue
		}
		if !yield(&slots[i]) {
			return
		}
	}
}

func (t *table[K, E, S, PS]) loadFactor() float64 {
	m := t.s().meta()
	if m.capacity == 0 {
		return 0
	}
	return float64(m.used) / float64(m.capacity)
}

func (t *table[K, E, S, PS]) checkInvariants() {
	if !debug {
		return
	}
	if err := t.verify(); err != nil {
		panic(err)
	}
}

// verify checks the slot set bookkeeping against the control bytes and
// that every full slot is reachable from its own probe sequence.
func (t *table[K, E, S, PS]) verify() error {
	s := t.s()
	m := s.meta()
	if m.capacity == 0 {
		if m.used != 0 || m.growthLeft != 0 {
			return fmt.Errorf("swiss: empty table with used=%d growth-left=%d", m.used, m.growthLeft)
		}
		return nil
	}
	if m.used+m.growthLeft > maxGrowth(m.capacity) {
		return fmt.Errorf("swiss: used=%d growth-left=%d over capacity %d", m.used, m.growthLeft, m.capacity)
	}
	ctrls := s.ctrls()
	if err := checkCtrls(ctrls, m); err != nil {
		return fmt.Errorf("swiss: %w", err)
	}
	slots := s.slots()
	for i := uint64(0); i < m.capacity; i++ {
		if ctrls[i]&ctrlEmpty != 0 {
			continue
		}
		k := t.key(&slots[i])
		if j, ok := t.find(k, t.hash(k)); !ok || j != i {
			return fmt.Errorf("swiss: slot %d unreachable from its probe sequence", i)
		}
	}
	return nil
}

func (t *table[K, E, S, PS]) debugString() string {
	s := t.s()
	m := s.meta()
	var b strings.Builder
	fmt.Fprintf(&b, "capacity=%d used=%d growth-left=%d\n", m.capacity, m.used, m.growthLeft)
	ctrls := s.ctrls()
	for i := uint64(0); i < m.capacity+groupSize && m.capacity > 0; i++ {
		switch c := ctrls[i]; c {
		case ctrlEmpty:
			fmt.Fprintf(&b, "  %4d: empty\n", i)
		case ctrlDeleted:
			fmt.Fprintf(&b, "  %4d: deleted\n", i)
		case ctrlSentinel:
			fmt.Fprintf(&b, "  %4d: sentinel\n", i)
		default:
			fmt.Fprintf(&b, "  %4d: %02x\n", i, c)
		}
	}
	return b.String()
}
