package arena

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/ecsmem/internal/freeblock"
	"github.com/hupe1980/ecsmem/internal/mem"
)

// Stats tracks arena memory usage.
type Stats struct {
	Capacity    int    // region size in bytes
	Cursor      int    // bump cursor (high-water mark of handed out bytes)
	Used        int    // bytes currently handed out
	FreeBytes   int    // bytes below the cursor available for reuse
	FreeBlocks  int    // number of reusable blocks
	LargestFree int    // largest reusable block
	Allocs      uint64 // cumulative successful allocations
	Reused      uint64 // allocations served from the free list
	Frees       uint64 // cumulative frees
	Failed      uint64 // allocations rejected with ErrArenaFull
}

// Arena is a single-owner allocator over one fixed region.
type Arena struct {
	region
	minAlign int
	cursor   int
	free     *freeblock.Master
	logger   *slog.Logger

	allocs uint64
	reused uint64
	frees  uint64
	failed uint64
}

// New maps a region of capacity bytes (rounded up to CacheLineSize).
// A capacity of 0 selects DefaultCapacity.
func New(capacity int, opts ...Option) (*Arena, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r, err := mapRegion(capacity, &o)
	if err != nil {
		return nil, err
	}

	a := &Arena{
		region:   r,
		minAlign: o.minAlign,
		free:     freeblock.New(),
		logger:   o.logger,
	}
	a.logger.Debug("arena mapped", slog.Int("capacity", a.capacity))
	return a, nil
}

// MustNew is like New but panics if the region cannot be mapped.
func MustNew(capacity int, opts ...Option) *Arena {
	a, err := New(capacity, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Allocate reserves size bytes aligned to align and returns their offset.
// The size is rounded up to the minimum alignment, and align is raised to it.
// An align of 0 selects the minimum alignment.
func (a *Arena) Allocate(size, align int) (int, error) {
	if a.data == nil {
		return 0, ErrClosed
	}
	if size <= 0 {
		return 0, ErrInvalidSize
	}
	if align == 0 {
		align = a.minAlign
	}
	if !mem.IsPowerOfTwo(align) {
		return 0, ErrInvalidAlignment
	}
	align = max(align, a.minAlign)
	if size > a.capacity {
		a.failed++
		return 0, ErrArenaFull
	}
	size = mem.AlignUp(size, a.minAlign)

	if b, ok := a.free.AllocateAligned(size, align); ok {
		a.allocs++
		a.reused++
		return b.Start, nil
	}

	start := mem.AlignUp(a.cursor, align)
	if start+size > a.capacity || start+size < 0 {
		a.failed++
		a.logger.Warn("arena exhausted",
			slog.Int("size", size),
			slog.Int("align", align),
			slog.Int("cursor", a.cursor),
			slog.Int("capacity", a.capacity),
			slog.Int("free_bytes", a.free.TotalFree()))
		return 0, ErrArenaFull
	}
	if start > a.cursor {
		a.free.Insert(freeblock.Block{Start: a.cursor, End: start})
	}
	a.cursor = start + size
	a.allocs++
	return start, nil
}

// Free returns the range [offset, offset+size) to the arena. The size is
// rounded up the same way Allocate rounds it. Overlapping or repeated frees
// are not detected.
func (a *Arena) Free(offset, size int) error {
	if a.data == nil {
		return ErrClosed
	}
	size = mem.AlignUp(size, a.minAlign)
	if size <= 0 || offset < 0 || offset%a.minAlign != 0 || offset+size > a.cursor {
		return fmt.Errorf("%w: [%d, %d) with cursor %d", ErrInvalidRange, offset, offset+size, a.cursor)
	}

	a.frees++
	if offset+size == a.cursor {
		a.cursor = offset
		for {
			b, ok := a.free.TakeEndingAt(a.cursor)
			if !ok {
				break
			}
			a.cursor = b.Start
		}
		return nil
	}

	a.free.Insert(freeblock.Block{Start: offset, End: offset + size})
	return nil
}

// Bytes returns the n bytes at offset, or nil if the range is outside the
// region or the arena is closed.
func (a *Arena) Bytes(offset, n int) []byte {
	return a.bytes(offset, n)
}

// Reset forgets every allocation and lets the OS reclaim the touched pages.
// Offsets handed out before Reset must no longer be used.
func (a *Arena) Reset() {
	if a.data == nil {
		return
	}
	a.discard(0, a.cursor)
	a.cursor = 0
	a.free.Clear()
	a.logger.Debug("arena reset", slog.Int("capacity", a.capacity))
}

// Close unmaps the region. It is idempotent.
func (a *Arena) Close() error {
	if a.data == nil {
		return nil
	}
	a.free.Clear()
	a.cursor = 0
	a.logger.Debug("arena closed", slog.Int("capacity", a.capacity))
	return a.release()
}

// Closed reports whether Close has been called.
func (a *Arena) Closed() bool {
	return a.data == nil
}

// Capacity returns the region size in bytes.
func (a *Arena) Capacity() int {
	return a.capacity
}

// Used returns the number of bytes currently handed out.
func (a *Arena) Used() int {
	return a.cursor - a.free.TotalFree()
}

// Available returns the bytes that can still be allocated, ignoring alignment.
func (a *Arena) Available() int {
	return a.capacity - a.Used()
}

// MinAlignment returns the minimum alignment of every allocation.
func (a *Arena) MinAlignment() int {
	return a.minAlign
}

// Stats returns a snapshot of the arena's usage.
func (a *Arena) Stats() Stats {
	fs := a.free.Stats()
	return Stats{
		Capacity:    a.capacity,
		Cursor:      a.cursor,
		Used:        a.cursor - fs.FreeBytes,
		FreeBytes:   fs.FreeBytes,
		FreeBlocks:  fs.Blocks,
		LargestFree: fs.Largest,
		Allocs:      a.allocs,
		Reused:      a.reused,
		Frees:       a.frees,
		Failed:      a.failed,
	}
}

func (a *Arena) String() string {
	return fmt.Sprintf("Arena{capacity=%d, used=%d, cursor=%d, free_blocks=%d}",
		a.capacity, a.Used(), a.cursor, a.free.Len())
}
