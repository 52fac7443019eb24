package bitset

import (
	bbs "github.com/bits-and-blooms/bitset"
)

// BitSet is a fixed-size bitset of n bits. Unlike the underlying
// bits-and-blooms set it never grows: out-of-range indices are ignored.
type BitSet struct {
	bits *bbs.BitSet
	n    int
}

// New creates a bitset with n bits, all clear.
func New(n int) *BitSet {
	if n < 0 {
		n = 0
	}
	return &BitSet{
		bits: bbs.New(uint(n)),
		n:    n,
	}
}

// Set sets bit i. Out-of-range indices are ignored.
func (b *BitSet) Set(i int) {
	if uint(i) >= uint(b.n) {
		return
	}
	b.bits.Set(uint(i))
}

// Unset clears bit i. Out-of-range indices are ignored.
func (b *BitSet) Unset(i int) {
	if uint(i) >= uint(b.n) {
		return
	}
	b.bits.Clear(uint(i))
}

// Test reports whether bit i is set. Out-of-range indices report false.
func (b *BitSet) Test(i int) bool {
	if uint(i) >= uint(b.n) {
		return false
	}
	return b.bits.Test(uint(i))
}

// ClearAll clears every bit.
func (b *BitSet) ClearAll() {
	b.bits.ClearAll()
}

// NextSetBefore returns the index of the first set bit in [from, limit), or -1.
func (b *BitSet) NextSetBefore(from, limit int) int {
	from, limit = max(from, 0), min(limit, b.n)
	if from >= limit {
		return -1
	}
	i, ok := b.bits.NextSet(uint(from))
	if !ok || int(i) >= limit {
		return -1
	}
	return int(i)
}

// AnyInRange reports whether any bit in [start, end) is set.
func (b *BitSet) AnyInRange(start, end int) bool {
	return b.NextSetBefore(start, end) >= 0
}
