package arena

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/ecsmem/internal/mem"
)

// Shared is a lock-free bump allocator over one fixed region.
// Allocate is safe for concurrent use; freed memory is never reused.
type Shared struct {
	region
	minAlign int
	cursor   atomic.Int64
	closed   atomic.Bool
	logger   *slog.Logger
}

// NewShared maps a region of capacity bytes (rounded up to CacheLineSize).
// A capacity of 0 selects DefaultCapacity.
func NewShared(capacity int, opts ...Option) (*Shared, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r, err := mapRegion(capacity, &o)
	if err != nil {
		return nil, err
	}

	s := &Shared{
		region:   r,
		minAlign: o.minAlign,
		logger:   o.logger,
	}
	s.logger.Debug("shared arena mapped", slog.Int("capacity", s.capacity))
	return s, nil
}

// Allocate reserves size bytes aligned to align and returns their offset.
func (s *Shared) Allocate(size, align int) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if size <= 0 {
		return 0, ErrInvalidSize
	}
	if align == 0 {
		align = s.minAlign
	}
	if !mem.IsPowerOfTwo(align) {
		return 0, ErrInvalidAlignment
	}
	align = max(align, s.minAlign)
	if size > s.capacity {
		s.logger.Warn("shared arena exhausted",
			slog.Int("size", size),
			slog.Int("capacity", s.capacity))
		return 0, ErrArenaFull
	}
	size = mem.AlignUp(size, s.minAlign)

	for {
		cur := s.cursor.Load()
		start := int64(mem.AlignUp(int(cur), align))
		next := start + int64(size)
		if next > int64(s.capacity) || next < start {
			s.logger.Warn("shared arena exhausted",
				slog.Int("size", size),
				slog.Int64("cursor", cur),
				slog.Int("capacity", s.capacity))
			return 0, ErrArenaFull
		}
		if s.cursor.CompareAndSwap(cur, next) {
			return int(start), nil
		}
	}
}

// Bytes returns the n bytes at offset, or nil if the range is outside the
// region or the arena is closed.
func (s *Shared) Bytes(offset, n int) []byte {
	if s.closed.Load() {
		return nil
	}
	return s.bytes(offset, n)
}

// Used returns the bump cursor.
func (s *Shared) Used() int {
	return int(s.cursor.Load())
}

// Capacity returns the region size in bytes.
func (s *Shared) Capacity() int {
	return s.capacity
}

// Reset rewinds the cursor to zero. It must not run concurrently with Allocate.
func (s *Shared) Reset() {
	if s.closed.Load() {
		return
	}
	s.discard(0, int(s.cursor.Load()))
	s.cursor.Store(0)
}

// Close unmaps the region. It is idempotent.
func (s *Shared) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.release()
}

func (s *Shared) String() string {
	return fmt.Sprintf("Shared{capacity=%d, used=%d}", s.capacity, s.Used())
}
