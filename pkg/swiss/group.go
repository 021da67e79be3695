package swiss

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

const (
	groupSize       = 8
	maxAvgGroupLoad = 7

	ctrlEmpty    ctrl = 0b10000000
	ctrlDeleted  ctrl = 0b11111110
	ctrlSentinel ctrl = 0b11111111

	bitsetLSB = 0x0101010101010101
	bitsetMSB = 0x8080808080808080
)

// Control byte states:
//
//	   empty: 1 0 0 0 0 0 0 0
//	 deleted: 1 1 1 1 1 1 1 0
//	    full: 0 h h h h h h h
//	sentinel: 1 1 1 1 1 1 1 1
type ctrl = uint8

// emptyCtrls backs every table with zero capacity so lookups can probe
// without a nil check.
var emptyCtrls = []ctrl{
	ctrlEmpty, ctrlEmpty, ctrlEmpty, ctrlEmpty,
	ctrlEmpty, ctrlEmpty, ctrlEmpty, ctrlEmpty,
}

// ctrlGroup holds control bytes i through i+7. Byte i occupies the low
// eight bits regardless of host byte order.
type ctrlGroup uint64

func groupAt(ctrls []ctrl, i uint64) ctrlGroup {
	return ctrlGroup(binary.LittleEndian.Uint64(ctrls[i : i+groupSize]))
}

func (g ctrlGroup) matchH2(h uint64) bitset {
	v := uint64(g) ^ (bitsetLSB * h)
	return bitset(((v - bitsetLSB) &^ v) & bitsetMSB)
}

// matchEmpty: bit 7 set and bit 1 clear.
func (g ctrlGroup) matchEmpty() bitset {
	v := uint64(g)
	return bitset((v &^ (v << 6)) & bitsetMSB)
}

// matchEmptyOrDeleted: bit 7 set and bit 0 clear.
func (g ctrlGroup) matchEmptyOrDeleted() bitset {
	v := uint64(g)
	return bitset((v &^ (v << 7)) & bitsetMSB)
}

// bitset marks matching slots of a group in the high bit of each byte.
type bitset uint64

func (b bitset) first() uint64 {
	return uint64(bits.TrailingZeros64(uint64(b))) >> 3
}

func (b bitset) remove(i uint64) bitset {
	return b &^ (bitset(0x80) << (i << 3))
}

func (b bitset) absentAtStart() uint64 {
	return uint64(bits.TrailingZeros64(uint64(b))) >> 3
}

func (b bitset) absentAtEnd() uint64 {
	return uint64(bits.LeadingZeros64(uint64(b))) >> 3
}

func (b bitset) String() string {
	var buf [groupSize]byte
	for i := range buf {
		if b&(bitset(0x80)<<(i<<3)) != 0 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf[:])
}

// probeSeq is the triangular sequence
//
//	p(i) := groupSize * (i^2 + i)/2 + hash (mod mask+1)
//
// which visits every group exactly once when the group count is a power
// of two.
type probeSeq struct {
	mask   uint64
	offset uint64
	index  uint64
}

func makeProbeSeq(hash, mask uint64) probeSeq {
	return probeSeq{mask: mask, offset: hash & mask}
}

func (s probeSeq) next() probeSeq {
	s.index += groupSize
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) offsetAt(i uint64) uint64 {
	return (s.offset + i) & s.mask
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}

// h1 selects the probe start.
func h1(h uint64) uint64 { return h >> 7 }

// h2 is the 7-bit tag kept in the control byte.
func h2(h uint64) uint64 { return h & 0x7f }

// maxGrowth is the number of entries a fresh slot set of the given
// capacity accepts before it must grow. A single group keeps one slot
// empty so probing always terminates.
func maxGrowth(capacity uint64) uint64 {
	if capacity < groupSize {
		return capacity - 1
	}
	return capacity * maxAvgGroupLoad / groupSize
}

// capacityFor returns the smallest 2^n-1 capacity holding n entries.
func capacityFor(n uint64) uint64 {
	c := uint64(groupSize - 1)
	for maxGrowth(c) < n {
		if c > 1<<62 {
			panic(ErrAllocation)
		}
		c = 2*c + 1
	}
	return c
}
