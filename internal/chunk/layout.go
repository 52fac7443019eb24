package chunk

import (
	"fmt"

	"github.com/hupe1980/ecsmem/internal/mem"
)

// Layout describes the size and alignment of one record.
type Layout struct {
	Size  int
	Align int
}

// Validate checks that the alignment is a power of two and the size is not negative.
func (l Layout) Validate() error {
	if l.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidLayout, l.Size)
	}
	if !mem.IsPowerOfTwo(l.Align) {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidLayout, l.Align)
	}
	return nil
}

// Stride is the distance in bytes between consecutive records.
// Zero-sized records still occupy one alignment unit.
func (l Layout) Stride() int {
	return mem.AlignUp(max(l.Size, 1), max(l.Align, 1))
}

func (l Layout) String() string {
	return fmt.Sprintf("Layout{size=%d, align=%d}", l.Size, l.Align)
}
