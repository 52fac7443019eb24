package pool

import (
	"context"
	"errors"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ecsmem/internal/mem"
	"github.com/hupe1980/ecsmem/internal/simd"
)

// ctxCheckInterval is how many records a parallel worker visits between
// context checks.
const ctxCheckInterval = 1024

// ThreadRange returns the half-open range of dense positions that worker
// threadID out of threadCount should process. Ranges are contiguous, cover
// [0, Len()) exactly, and the first Len() % threadCount workers get one extra
// record.
func (p *Pool[T]) ThreadRange(threadID, threadCount int) (start, end int) {
	return mem.Partition(p.Len(), threadID, threadCount)
}

// ForEach calls fn for every live record in dense order until fn returns
// false.
func (p *Pool[T]) ForEach(fn func(h Handle, v *T) bool) {
	p.ForEachInRange(0, p.Len(), fn)
}

// ForEachInRange calls fn for the live records at dense positions
// [start, end) until fn returns false.
func (p *Pool[T]) ForEachInRange(start, end int, fn func(h Handle, v *T) bool) {
	if p.arena.Closed() {
		return
	}
	locs := p.index.Values()
	keys := p.index.Indices()
	start, end = max(start, 0), min(end, len(locs))
	for i := start; i < end; i++ {
		h := Handle(p.index.SlotFor(keys[i]))
		if !fn(h, p.ptr(locs[i])) {
			return
		}
	}
}

// ForEachParallel splits the live records into threads ranges with
// ThreadRange and processes them concurrently. A threads value of 0 uses the
// controller's worker count. Each range runs on its own goroutine while a
// controller worker slot is free and on the calling goroutine otherwise, so
// ForEachParallel never waits for slots held elsewhere. fn may modify the
// record it is given but must not touch other records or change the pool's
// structure. The first error cancels the remaining ranges and is returned.
func (p *Pool[T]) ForEachParallel(ctx context.Context, threads int, fn func(h Handle, v *T) error) error {
	if threads <= 0 {
		threads = p.controller.MaxWorkers()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for t := range threads {
		start, end := p.ThreadRange(t, threads)
		if start == end {
			continue
		}
		if !p.controller.TryAcquireWorker() {
			if err := p.visitRange(gctx, start, end, fn); err != nil {
				cancel()
				if werr := g.Wait(); werr != nil && errors.Is(err, context.Canceled) {
					return werr
				}
				return err
			}
			continue
		}
		g.Go(func() error {
			defer p.controller.ReleaseWorker()
			return p.visitRange(gctx, start, end, fn)
		})
	}
	return g.Wait()
}

func (p *Pool[T]) visitRange(ctx context.Context, start, end int, fn func(h Handle, v *T) error) error {
	var err error
	n := 0
	p.ForEachInRange(start, end, func(h Handle, v *T) bool {
		if n%ctxCheckInterval == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}
		n++
		err = fn(h, v)
		return err == nil
	})
	return err
}

// ForEachBatch visits every live record chunk by chunk in slot order. Runs
// of consecutive live records as wide as the CPU's vector registers are
// passed to batch as one slice; remaining records are passed one at a time.
func (p *Pool[T]) ForEachBatch(batch func(records []T)) {
	lanes := simd.Lanes(p.layout.Stride())
	for _, c := range p.chunks {
		c.ProcessRangeBatched(0, c.Count(), lanes,
			func(_ int, recs []byte) {
				batch(unsafe.Slice((*T)(unsafe.Pointer(&recs[0])), lanes)) //nolint:gosec // records live in arena memory
			},
			func(_ int, rec []byte) {
				batch(unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(rec))), 1)) //nolint:gosec // records live in arena memory
			},
		)
	}
}

// Lanes returns the batch width ForEachBatch uses.
func (p *Pool[T]) Lanes() int {
	return simd.Lanes(p.layout.Stride())
}
