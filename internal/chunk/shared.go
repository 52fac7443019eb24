package chunk

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/ecsmem/internal/mem"
)

// Shared is an append-only chunk whose slots are reserved with an atomic
// counter. Append is safe for concurrent use; slots are never reused.
type Shared struct {
	alloc    Allocator
	layout   Layout
	stride   int
	offset   int
	size     int
	capacity int
	count    atomic.Int64
}

// NewShared allocates storage for capacity records of the given layout from a.
func NewShared(a Allocator, layout Layout, capacity int) (*Shared, error) {
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

	return &Shared{
		alloc:    a,
		layout:   layout,
		stride:   stride,
		offset:   off,
		size:     size,
		capacity: capacity,
	}, nil
}

func (s *Shared) data() []byte {
	return s.alloc.Bytes(s.offset, s.size)
}

// Append reserves the next slot. It returns false when the chunk is full.
func (s *Shared) Append() (int, bool) {
	for {
		n := s.count.Load()
		if n >= int64(s.capacity) {
			return 0, false
		}
		if s.count.CompareAndSwap(n, n+1) {
			return int(n), true
		}
	}
}

// Slot returns the record bytes of a reserved slot, or nil.
func (s *Shared) Slot(i int) []byte {
	data := s.data()
	if data == nil || i < 0 || int64(i) >= s.count.Load() {
		return nil
	}
	start := i * s.stride
	end := start + s.layout.Size
	return data[start:end:end]
}

// Pointer returns the address of a reserved slot, or nil.
func (s *Shared) Pointer(i int) unsafe.Pointer {
	data := s.data()
	if data == nil || i < 0 || int64(i) >= s.count.Load() {
		return nil
	}
	return unsafe.Pointer(&data[i*s.stride]) //nolint:gosec // records live in arena memory
}

// Len returns the number of reserved slots.
func (s *Shared) Len() int { return int(s.count.Load()) }

// Capacity returns the number of slots.
func (s *Shared) Capacity() int { return s.capacity }

// Offset returns the arena offset of slot 0.
func (s *Shared) Offset() int { return s.offset }

// Reset zeroes the storage and rewinds the counter. It must not run
// concurrently with Append.
func (s *Shared) Reset() {
	if data := s.data(); data != nil {
		clear(data[:int(s.count.Load())*s.stride])
	}
	s.count.Store(0)
}
