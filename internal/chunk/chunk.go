package chunk

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/ecsmem/internal/bitset"
	"github.com/hupe1980/ecsmem/internal/mem"
)

var (
	// ErrInvalidLayout is returned for layouts with a bad size or alignment.
	ErrInvalidLayout = errors.New("chunk: invalid layout")
	// ErrInvalidCapacity is returned for non-positive capacities.
	ErrInvalidCapacity = errors.New("chunk: invalid capacity")
)

// Allocator hands out aligned byte ranges addressed by offset.
type Allocator interface {
	Allocate(size, align int) (int, error)
	Bytes(offset, n int) []byte
}

// Freer is implemented by allocators that can take memory back.
type Freer interface {
	Free(offset, size int) error
}

// Chunk is a single-owner array of capacity record slots.
type Chunk struct {
	alloc    Allocator
	layout   Layout
	stride   int
	offset   int
	size     int
	released bool
	capacity int
	count    int // high-water mark
	active   int // occupied slots
	free     *bitset.BitSet
}

// New allocates storage for capacity records of the given layout from a.
// The storage starts on a cache line and is zeroed.
func New(a Allocator, layout Layout, capacity int) (*Chunk, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	stride := layout.Stride()
	size := mem.AlignUp(stride*capacity, mem.CacheLineSize)
	off, err := a.Allocate(size, max(layout.Align, mem.CacheLineSize))
	if err != nil {
		return nil, err
	}
	clear(a.Bytes(off, size))

	return &Chunk{
		alloc:    a,
		layout:   layout,
		stride:   stride,
		offset:   off,
		size:     size,
		capacity: capacity,
		free:     bitset.New(capacity),
	}, nil
}

// data resolves the chunk's storage through the allocator. It is nil once
// the chunk is released or the allocator's region is gone.
func (c *Chunk) data() []byte {
	if c.released {
		return nil
	}
	return c.alloc.Bytes(c.offset, c.size)
}

// AllocateSlot reserves the lowest free slot below the high-water mark, or
// extends the mark. It returns false when every slot is occupied.
func (c *Chunk) AllocateSlot() (int, bool) {
	if c.active >= c.capacity || c.data() == nil {
		return 0, false
	}

	i := c.free.NextSetBefore(0, c.count)
	if i >= 0 {
		c.free.Unset(i)
	} else {
		i = c.count
		c.count++
	}
	c.active++
	return i, true
}

// FreeSlot releases slot i and zeroes it. It returns false if i is out of
// range or already free.
func (c *Chunk) FreeSlot(i int) bool {
	if !c.IsOccupied(i) {
		return false
	}
	c.free.Set(i)
	c.active--
	if data := c.data(); data != nil {
		clear(data[i*c.stride : (i+1)*c.stride])
	}
	return true
}

// IsOccupied reports whether slot i holds a record.
func (c *Chunk) IsOccupied(i int) bool {
	return i >= 0 && i < c.count && !c.free.Test(i)
}

// Slot returns the record bytes of slot i, or nil if it is not occupied.
func (c *Chunk) Slot(i int) []byte {
	data := c.data()
	if data == nil || !c.IsOccupied(i) {
		return nil
	}
	start := i * c.stride
	end := start + c.layout.Size
	return data[start:end:end]
}

// Pointer returns the address of slot i, or nil if it is not occupied.
func (c *Chunk) Pointer(i int) unsafe.Pointer {
	data := c.data()
	if data == nil || !c.IsOccupied(i) {
		return nil
	}
	return unsafe.Pointer(&data[i*c.stride]) //nolint:gosec // records live in arena memory
}

// Set overwrites the occupied slot i with src. It returns false if the slot
// is not occupied or src does not match the record size.
func (c *Chunk) Set(i int, src []byte) bool {
	if len(src) != c.layout.Size {
		return false
	}
	dst := c.Slot(i)
	if dst == nil {
		return false
	}
	copy(dst, src)
	return true
}

// Compact moves occupied slots to the front, preserving their order, and
// calls onMoved for every record that changed slot. It returns the number of
// moved records. A chunk without holes, or whose storage is gone, is left
// untouched.
func (c *Chunk) Compact(onMoved func(from, to int)) int {
	data := c.data()
	if c.active == c.count || data == nil {
		return 0
	}

	moved := 0
	write := 0
	for read := range c.count {
		if c.free.Test(read) {
			continue
		}
		if read != write {
			copy(data[write*c.stride:(write+1)*c.stride], data[read*c.stride:(read+1)*c.stride])
			if onMoved != nil {
				onMoved(read, write)
			}
			moved++
		}
		write++
	}

	clear(data[c.active*c.stride : c.count*c.stride])
	c.count = c.active
	c.free.ClearAll()
	return moved
}

// ProcessRange calls fn for every occupied slot in [start, end), clamped to
// the high-water mark.
func (c *Chunk) ProcessRange(start, end int, fn func(i int, rec []byte)) {
	start, end = c.clamp(start, end)
	for i := start; i < end; i++ {
		if rec := c.Slot(i); rec != nil {
			fn(i, rec)
		}
	}
}

// ProcessRangeBatched visits the same slots as ProcessRange. Runs of lanes
// consecutive occupied slots are passed to batch as one contiguous byte
// range (lanes*stride bytes starting at slot first); everything else falls
// back to fn.
func (c *Chunk) ProcessRangeBatched(start, end, lanes int, batch func(first int, recs []byte), fn func(i int, rec []byte)) {
	if lanes <= 1 || batch == nil {
		c.ProcessRange(start, end, fn)
		return
	}
	data := c.data()
	if data == nil {
		return
	}

	start, end = c.clamp(start, end)
	i := start
	for i < end {
		if i+lanes <= end && !c.free.AnyInRange(i, i+lanes) {
			batch(i, data[i*c.stride:(i+lanes)*c.stride])
			i += lanes
			continue
		}
		if rec := c.Slot(i); rec != nil {
			fn(i, rec)
		}
		i++
	}
}

// Reset frees every slot and zeroes the storage.
func (c *Chunk) Reset() {
	clear(c.data())
	c.count = 0
	c.active = 0
	c.free.ClearAll()
}

// Release returns the storage to the allocator if it supports Free.
// The chunk is unusable afterwards. It is idempotent.
func (c *Chunk) Release() error {
	if c.released {
		return nil
	}
	c.released = true
	c.count = 0
	c.active = 0
	c.free.ClearAll()
	if f, ok := c.alloc.(Freer); ok {
		return f.Free(c.offset, c.size)
	}
	return nil
}

// Fragmentation returns the share of slots below the high-water mark that
// are free.
func (c *Chunk) Fragmentation() float64 {
	if c.count == 0 {
		return 0
	}
	return float64(c.count-c.active) / float64(c.count)
}

// Count returns the high-water mark.
func (c *Chunk) Count() int { return c.count }

// ActiveCount returns the number of occupied slots.
func (c *Chunk) ActiveCount() int { return c.active }

// Capacity returns the number of slots.
func (c *Chunk) Capacity() int { return c.capacity }

// Layout returns the record layout.
func (c *Chunk) Layout() Layout { return c.layout }

// Stride returns the distance between consecutive records.
func (c *Chunk) Stride() int { return c.stride }

// Offset returns the arena offset of slot 0.
func (c *Chunk) Offset() int { return c.offset }

// Size returns the number of arena bytes held by the chunk.
func (c *Chunk) Size() int { return c.size }

// IsFull reports whether every slot is occupied.
func (c *Chunk) IsFull() bool { return c.active == c.capacity }

// IsEmpty reports whether no slot is occupied.
func (c *Chunk) IsEmpty() bool { return c.active == 0 }

// Released reports whether Release has been called.
func (c *Chunk) Released() bool { return c.released }

func (c *Chunk) clamp(start, end int) (int, int) {
	return max(start, 0), min(end, c.count)
}

func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk{offset=%d, stride=%d, active=%d, count=%d, capacity=%d}",
		c.offset, c.stride, c.active, c.count, c.capacity)
}
