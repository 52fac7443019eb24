package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/ecsmem/arena"
	"github.com/hupe1980/ecsmem/internal/chunk"
)

// copyBatch is the number of records Compact moves between copy bandwidth
// checks.
const copyBatch = 256

// Relocation records that the record at logical index Index moved.
type Relocation struct {
	Index uint32
	From  Location
	To    Location
}

// ChunkMove records that the chunk at index From now lives at index To.
type ChunkMove struct {
	From int
	To   int
}

// CompactionResult lists every physical move made by Compact or
// ReleaseEmptyChunks.
type CompactionResult struct {
	Relocations    []Relocation
	ChunkMoves     []ChunkMove
	ChunksReleased int
	BytesReleased  int
}

// Compact rebuilds the pool into a single chunk holding every live record in
// logical index order. The new chunk has room for the live count times
// CompactionHeadroom, and at least ComponentsPerChunk records. Handles stay
// valid; a Relocation is reported for each record whose location changed.
//
// The pool is left untouched if ctx is canceled or the arena cannot hold the
// new chunk next to the old ones.
func (p *Pool[T]) Compact(ctx context.Context) (CompactionResult, error) {
	start := time.Now()
	res, err := p.compact(ctx)
	p.metrics.RecordCompaction(len(res.Relocations), res.ChunksReleased, time.Since(start), err)
	if err != nil {
		return CompactionResult{}, err
	}

	p.logger.Info("pool compacted",
		slog.Int("live", p.Len()),
		slog.Int("relocated", len(res.Relocations)),
		slog.Int("chunks_released", res.ChunksReleased),
		slog.Int("bytes_released", res.BytesReleased),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (p *Pool[T]) compact(ctx context.Context) (CompactionResult, error) {
	if err := p.controller.AcquireWorker(ctx); err != nil {
		return CompactionResult{}, err
	}
	defer p.controller.ReleaseWorker()

	live := p.Len()
	capacity := max(int(math.Ceil(float64(live)*p.cfg.CompactionHeadroom)), p.perChunk)

	dst, err := chunk.New(p.arena, p.layout, capacity)
	if err != nil {
		if errors.Is(err, arena.ErrArenaFull) {
			err = fmt.Errorf("%w: %w", ErrNoCapacity, err)
		}
		return CompactionResult{}, err
	}

	order := slices.Clone(p.index.Indices())
	slices.Sort(order)

	owners := make([]uint32, capacity)
	moves := make([]Relocation, 0, len(order))
	pending := 0
	for n, idx := range order {
		if n%copyBatch == 0 {
			if err := p.throttle(ctx, pending); err != nil {
				_ = dst.Release()
				return CompactionResult{}, err
			}
			pending = 0
		}

		from, _ := p.index.Get(p.index.SlotFor(idx))
		slot, _ := dst.AllocateSlot()
		copy(dst.Slot(slot), p.chunks[from.Chunk].Slot(from.Slot))
		owners[slot] = idx
		moves = append(moves, Relocation{Index: idx, From: from, To: Location{Chunk: 0, Slot: slot}})
		pending += dst.Stride()
	}
	if err := p.throttle(ctx, pending); err != nil {
		_ = dst.Release()
		return CompactionResult{}, err
	}

	res := CompactionResult{Relocations: moves[:0]}
	for _, m := range moves {
		p.index.Insert(p.index.SlotFor(m.Index), m.To)
		if m.From != m.To {
			res.Relocations = append(res.Relocations, m)
		}
	}

	for i := len(p.chunks) - 1; i >= 0; i-- {
		res.BytesReleased += p.chunks[i].Size()
		p.releaseChunk(i)
	}
	res.ChunksReleased = len(p.chunks)

	p.chunks = append(p.chunks[:0], dst)
	p.owners = append(p.owners[:0], owners)
	p.freeSlots.Clear()
	p.freeChunks = p.freeChunks[:0]
	p.current = 0
	p.maxChunks = max(p.maxChunks, 1)
	p.needsCompaction = false
	return res, nil
}

func (p *Pool[T]) throttle(ctx context.Context, bytes int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.controller.AcquireCopy(ctx, bytes)
}

// ReleaseEmptyChunks returns empty chunks to the arena, keeping the keep
// highest-indexed ones for reuse. A negative keep selects
// Config.KeepEmptyChunks. Each released chunk is replaced by the last chunk
// (swap-with-last); the moves and the resulting record relocations are
// reported.
func (p *Pool[T]) ReleaseEmptyChunks(keep int) CompactionResult {
	start := time.Now()
	if keep < 0 {
		keep = p.cfg.KeepEmptyChunks
	}

	var res CompactionResult
	if len(p.freeChunks) <= keep {
		return res
	}

	drop := slices.Clone(p.freeChunks[:len(p.freeChunks)-keep])
	seen := make(map[uint32]int)
	for _, ci := range slices.Backward(drop) {
		res.BytesReleased += p.chunks[ci].Size()
		p.removeChunk(ci, &res, seen)
		res.ChunksReleased++
	}

	p.logger.Debug("empty chunks released",
		slog.Int("released", res.ChunksReleased),
		slog.Int("chunks", len(p.chunks)),
		slog.Int("relocated", len(res.Relocations)))
	p.metrics.RecordCompaction(len(res.Relocations), res.ChunksReleased, time.Since(start), nil)
	return res
}

// removeChunk releases chunk ci and moves the last chunk into its place.
// A record moved more than once keeps a single relocation from its original
// location to its final one; seen maps logical indices to their entry.
func (p *Pool[T]) removeChunk(ci int, res *CompactionResult, seen map[uint32]int) {
	last := len(p.chunks) - 1
	p.releaseChunk(ci)
	p.unparkChunk(ci)

	if ci != last {
		moved := p.chunks[last]
		p.chunks[ci] = moved
		p.owners[ci] = p.owners[last]
		res.ChunkMoves = append(res.ChunkMoves, ChunkMove{From: last, To: ci})

		for slot := range moved.Count() {
			if !moved.IsOccupied(slot) {
				continue
			}
			idx := p.owners[ci][slot]
			from := Location{Chunk: last, Slot: slot}
			to := Location{Chunk: ci, Slot: slot}
			p.index.Insert(p.index.SlotFor(idx), to)
			if i, ok := seen[idx]; ok {
				res.Relocations[i].To = to
				continue
			}
			seen[idx] = len(res.Relocations)
			res.Relocations = append(res.Relocations, Relocation{Index: idx, From: from, To: to})
		}

		p.remapFreeSlots(last, ci)
		if i, found := slices.BinarySearch(p.freeChunks, last); found {
			p.freeChunks = slices.Delete(p.freeChunks, i, i+1)
			j, _ := slices.BinarySearch(p.freeChunks, ci)
			p.freeChunks = slices.Insert(p.freeChunks, j, ci)
		}
	}

	p.chunks[last] = nil
	p.owners[last] = nil
	p.chunks = p.chunks[:last]
	p.owners = p.owners[:last]

	switch {
	case len(p.chunks) == 0:
		p.current = -1
	case p.current == ci:
		p.current = len(p.chunks) - 1
	case p.current == last:
		p.current = ci
	}
}

// remapFreeSlots moves free-slot entries of chunk from to chunk to.
func (p *Pool[T]) remapFreeSlots(from, to int) {
	lo, hi := encodeSlot(from, 0), encodeSlot(from+1, 0)
	var slots []uint64
	it := p.freeSlots.Iterator()
	it.AdvanceIfNeeded(lo)
	for it.HasNext() {
		v := it.Next()
		if v >= hi {
			break
		}
		_, slot := decodeSlot(v)
		slots = append(slots, encodeSlot(to, slot))
	}
	if len(slots) == 0 {
		return
	}
	p.freeSlots.RemoveRange(lo, hi)
	p.freeSlots.Or(roaring64.BitmapOf(slots...))
}

// Relocate returns where the record that lived at loc before the call that
// produced res lives now.
func (res CompactionResult) Relocate(loc Location) Location {
	for _, m := range res.Relocations {
		if m.From == loc {
			return m.To
		}
	}
	return loc
}
