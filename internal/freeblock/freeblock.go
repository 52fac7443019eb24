package freeblock

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/btree"

	"github.com/hupe1980/ecsmem/internal/mem"
)

// btreeDegree is the B-tree node degree used for the size index.
const btreeDegree = 16

// Block is a half-open byte range [Start, End).
type Block struct {
	Start int
	End   int
}

// Size returns the number of bytes in the block.
func (b Block) Size() int {
	return b.End - b.Start
}

func (b Block) String() string {
	return fmt.Sprintf("[%d, %d)", b.Start, b.End)
}

type sizeKey struct {
	size  int
	start int
}

func lessSizeKey(a, b sizeKey) bool {
	if a.size != b.size {
		return a.size < b.size
	}
	return a.start < b.start
}

// Stats describes the free-block population.
type Stats struct {
	Blocks    int // number of tracked free blocks
	FreeBytes int // sum of all free block sizes
	Largest   int // size of the largest free block
}

// Master manages a set of disjoint free blocks.
type Master struct {
	bySize  *btree.BTreeG[sizeKey]
	byStart map[int]int // start -> end
	byEnd   map[int]int // end -> start
	free    int
}

// New creates an empty Master.
func New() *Master {
	return &Master{
		bySize:  btree.NewG(btreeDegree, lessSizeKey),
		byStart: make(map[int]int),
		byEnd:   make(map[int]int),
	}
}

// NewWithBlock creates a Master holding the single block [0, size).
func NewWithBlock(size int) *Master {
	m := New()
	m.Insert(Block{Start: 0, End: size})
	return m
}

// Insert adds b to the free set, merging it with the block that ends at
// b.Start and the block that starts at b.End. Empty blocks are ignored.
func (m *Master) Insert(b Block) {
	if b.Size() <= 0 {
		return
	}

	if start, ok := m.byEnd[b.Start]; ok {
		m.remove(Block{Start: start, End: b.Start})
		b.Start = start
	}
	if end, ok := m.byStart[b.End]; ok {
		m.remove(Block{Start: b.End, End: end})
		b.End = end
	}

	m.add(b)
}

// FindBestFit returns the smallest block of at least size bytes without
// removing it.
func (m *Master) FindBestFit(size int) (Block, bool) {
	if size <= 0 {
		return Block{}, false
	}
	var found sizeKey
	ok := false
	m.bySize.AscendGreaterOrEqual(sizeKey{size: size, start: math.MinInt}, func(k sizeKey) bool {
		found, ok = k, true
		return false
	})
	if !ok {
		return Block{}, false
	}
	return Block{Start: found.start, End: found.start + found.size}, true
}

// Allocate removes size bytes from the best-fitting block and returns the
// consumed range. Any remainder stays free.
func (m *Master) Allocate(size int) (Block, bool) {
	b, ok := m.FindBestFit(size)
	if !ok {
		return Block{}, false
	}

	m.remove(b)
	if b.Size() > size {
		m.add(Block{Start: b.Start + size, End: b.End})
	}
	return Block{Start: b.Start, End: b.Start + size}, true
}

// AllocateAligned removes size bytes starting at a multiple of align from the
// smallest block able to hold them. Leading alignment padding and any trailing
// remainder stay free. align must be a power of two.
func (m *Master) AllocateAligned(size, align int) (Block, bool) {
	if align <= 1 {
		return m.Allocate(size)
	}
	if size <= 0 || !mem.IsPowerOfTwo(align) {
		return Block{}, false
	}

	var (
		src     Block
		aligned int
		ok      bool
	)
	m.bySize.AscendGreaterOrEqual(sizeKey{size: size, start: math.MinInt}, func(k sizeKey) bool {
		a := mem.AlignUp(k.start, align)
		if a+size <= k.start+k.size {
			src = Block{Start: k.start, End: k.start + k.size}
			aligned, ok = a, true
			return false
		}
		return true
	})
	if !ok {
		return Block{}, false
	}

	m.remove(src)
	if aligned > src.Start {
		m.add(Block{Start: src.Start, End: aligned})
	}
	if aligned+size < src.End {
		m.add(Block{Start: aligned + size, End: src.End})
	}
	return Block{Start: aligned, End: aligned + size}, true
}

// TakeEndingAt removes and returns the block whose end equals end.
func (m *Master) TakeEndingAt(end int) (Block, bool) {
	start, ok := m.byEnd[end]
	if !ok {
		return Block{}, false
	}
	b := Block{Start: start, End: end}
	m.remove(b)
	return b, true
}

// Len returns the number of free blocks.
func (m *Master) Len() int {
	return m.bySize.Len()
}

// IsEmpty reports whether no free blocks are tracked.
func (m *Master) IsEmpty() bool {
	return m.bySize.Len() == 0
}

// TotalFree returns the number of free bytes across all blocks.
func (m *Master) TotalFree() int {
	return m.free
}

// Blocks returns all free blocks ordered by start offset.
func (m *Master) Blocks() []Block {
	out := make([]Block, 0, len(m.byStart))
	for start, end := range m.byStart {
		out = append(out, Block{Start: start, End: end})
	}
	slices.SortFunc(out, func(a, b Block) int { return a.Start - b.Start })
	return out
}

// Stats returns a snapshot of the free-block population.
func (m *Master) Stats() Stats {
	s := Stats{Blocks: m.Len(), FreeBytes: m.free}
	if largest, ok := m.bySize.Max(); ok {
		s.Largest = largest.size
	}
	return s
}

// Clear drops every free block.
func (m *Master) Clear() {
	m.bySize.Clear(false)
	clear(m.byStart)
	clear(m.byEnd)
	m.free = 0
}

func (m *Master) add(b Block) {
	m.bySize.ReplaceOrInsert(sizeKey{size: b.Size(), start: b.Start})
	m.byStart[b.Start] = b.End
	m.byEnd[b.End] = b.Start
	m.free += b.Size()
}

func (m *Master) remove(b Block) {
	m.bySize.Delete(sizeKey{size: b.Size(), start: b.Start})
	delete(m.byStart, b.Start)
	delete(m.byEnd, b.End)
	m.free -= b.Size()
}
