package arena

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/ecsmem/internal/mem"
	"github.com/hupe1980/ecsmem/internal/mmap"
)

// acquireTimeout bounds how long New waits for the memory budget.
const acquireTimeout = 100 * time.Millisecond

// region is the OS-backed byte range shared by Arena and Shared.
type region struct {
	mapping  *mmap.Mapping
	data     []byte
	capacity int
	acquirer MemoryAcquirer
}

func mapRegion(capacity int, o *options) (region, error) {
	if capacity < 0 {
		return region{}, ErrInvalidSize
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	capacity = mem.AlignUp(capacity, CacheLineSize)

	if o.acquirer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
		defer cancel()
		if err := o.acquirer.AcquireMemory(ctx, int64(capacity)); err != nil {
			return region{}, fmt.Errorf("arena: reserve %d bytes: %w", capacity, err)
		}
	}

	mapping, err := mmap.MapAnon(capacity)
	if err != nil {
		if o.acquirer != nil {
			o.acquirer.ReleaseMemory(int64(capacity))
		}
		return region{}, fmt.Errorf("arena: failed to map region: %w", err)
	}

	return region{
		mapping:  mapping,
		data:     mapping.Bytes(),
		capacity: capacity,
		acquirer: o.acquirer,
	}, nil
}

func (r *region) bytes(off, n int) []byte {
	if r.data == nil || off < 0 || n < 0 || off+n > r.capacity {
		return nil
	}
	return r.data[off : off+n : off+n]
}

func (r *region) discard(off, n int) {
	if r.data == nil {
		return
	}
	_ = r.mapping.Advise(off, n, mmap.AccessDontNeed)
}

func (r *region) release() error {
	if r.data == nil {
		return nil
	}
	r.data = nil
	err := r.mapping.Close()
	if r.acquirer != nil {
		r.acquirer.ReleaseMemory(int64(r.capacity))
	}
	return err
}
