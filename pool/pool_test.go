package pool

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ecsmem/arena"
	"github.com/hupe1980/ecsmem/component"
	"github.com/hupe1980/ecsmem/internal/resource"
)

type particle struct {
	X, Y float64
	ID   uint32
}

type named struct {
	Name string
}

func newTestArena(t *testing.T, capacity int) *arena.Arena {
	t.Helper()
	a, err := arena.New(capacity)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func newTestPool(t *testing.T, opts ...Option) *Pool[particle] {
	t.Helper()
	opts = append([]Option{WithRegistry(component.NewRegistry())}, opts...)
	p, err := New[particle](newTestArena(t, 1<<20), opts...)
	require.NoError(t, err)
	return p
}

func mustAllocate(t *testing.T, p *Pool[particle], id uint32) (Handle, Location) {
	t.Helper()
	h, loc, err := p.Allocate(particle{X: float64(id), Y: -float64(id), ID: id})
	require.NoError(t, err)
	return h, loc
}

func TestNew(t *testing.T) {
	p := newTestPool(t)

	assert.Equal(t, 1, p.ChunkCount())
	assert.Equal(t, 2*component.SmallComponentsPerChunk, p.Capacity(), "primary chunk holds twice the size-class capacity")
	assert.Equal(t, 24, p.Descriptor().Size)
	assert.Equal(t, 0, p.Len())
}

func TestNew_RejectsPointerTypes(t *testing.T) {
	_, err := New[named](newTestArena(t, 1<<16), WithRegistry(component.NewRegistry()))
	assert.ErrorIs(t, err, component.ErrPointerType)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New[particle](newTestArena(t, 1<<16), WithMaxChunks(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_ArenaTooSmall(t *testing.T) {
	_, err := New[particle](newTestArena(t, 64), WithRegistry(component.NewRegistry()))
	assert.ErrorIs(t, err, arena.ErrArenaFull)
}

func TestAllocateGet(t *testing.T) {
	p := newTestPool(t)

	h, loc, err := p.Allocate(particle{X: 1, Y: 2, ID: 3})
	require.NoError(t, err)
	assert.Equal(t, Location{Chunk: 0, Slot: 0}, loc)

	v, ok := p.Value(h)
	require.True(t, ok)
	assert.Equal(t, particle{X: 1, Y: 2, ID: 3}, v)

	ptr, ok := p.Get(h)
	require.True(t, ok)
	ptr.X = 10

	v, _ = p.Value(h)
	assert.Equal(t, 10.0, v.X)

	require.True(t, p.Set(h, particle{ID: 9}))
	v, _ = p.Value(h)
	assert.Equal(t, particle{ID: 9}, v)

	got, ok := p.Location(h)
	require.True(t, ok)
	assert.Equal(t, loc, got)

	byIndex, ok := p.HandleAt(h.Index)
	require.True(t, ok)
	assert.Equal(t, h, byIndex)
	_, ok = p.HandleAt(42)
	assert.False(t, ok)
}

func TestIndexStability(t *testing.T) {
	p := newTestPool(t)

	handles := make([]Handle, 10)
	for i := range handles {
		handles[i], _ = mustAllocate(t, p, uint32(i))
	}

	require.True(t, p.Remove(handles[4]))
	assert.False(t, p.Contains(handles[4]))
	_, ok := p.Get(handles[4])
	assert.False(t, ok)
	assert.False(t, p.Remove(handles[4]), "double remove")
	assert.False(t, p.Set(handles[4], particle{}))

	for i, h := range handles {
		if i == 4 {
			continue
		}
		v, ok := p.Value(h)
		require.True(t, ok)
		assert.Equal(t, uint32(i), v.ID)
	}

	// The lowest free index is reused with a new generation.
	h, _ := mustAllocate(t, p, 100)
	assert.Equal(t, uint32(4), h.Index)
	assert.NotEqual(t, handles[4].Generation, h.Generation)

	_, ok = p.Value(handles[4])
	assert.False(t, ok, "stale handle must not see the new occupant")
	v, _ := p.Value(h)
	assert.Equal(t, uint32(100), v.ID)
}

func TestLowestFreeIndexFirst(t *testing.T) {
	p := newTestPool(t)
	handles := make([]Handle, 6)
	for i := range handles {
		handles[i], _ = mustAllocate(t, p, uint32(i))
	}
	p.Remove(handles[5])
	p.Remove(handles[1])
	p.Remove(handles[3])

	for _, want := range []uint32{1, 3, 5, 6} {
		h, _ := mustAllocate(t, p, 0)
		assert.Equal(t, want, h.Index)
	}
	assert.Equal(t, 7, p.ComponentCount())
}

func TestPlacementOrder(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(4))
	require.Equal(t, 8, p.Capacity())

	handles := make([]Handle, 8)
	for i := range handles {
		var loc Location
		handles[i], loc = mustAllocate(t, p, uint32(i))
		assert.Equal(t, Location{Chunk: 0, Slot: i}, loc)
	}

	// Overflow chunk.
	_, loc := mustAllocate(t, p, 8)
	assert.Equal(t, Location{Chunk: 1, Slot: 0}, loc)
	assert.Equal(t, 2, p.ChunkCount())

	// The current chunk wins over an older freed slot.
	require.True(t, p.Remove(handles[2]))
	_, loc = mustAllocate(t, p, 9)
	assert.Equal(t, Location{Chunk: 1, Slot: 1}, loc)
	mustAllocate(t, p, 10)
	mustAllocate(t, p, 11)

	// Current chunk full: the freed slot is reused.
	_, loc = mustAllocate(t, p, 12)
	assert.Equal(t, Location{Chunk: 0, Slot: 2}, loc)
	assert.Zero(t, p.Stats().FreeSlots)

	// Everything full: a third chunk.
	_, loc = mustAllocate(t, p, 13)
	assert.Equal(t, Location{Chunk: 2, Slot: 0}, loc)
}

func TestPlacement_ReusesParkedChunk(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(4))

	var chunk1 []Handle
	for i := range 16 {
		h, loc := mustAllocate(t, p, uint32(i))
		if loc.Chunk == 1 {
			chunk1 = append(chunk1, h)
		}
	}
	require.Equal(t, 3, p.ChunkCount())
	require.Len(t, chunk1, 4)

	for _, h := range chunk1 {
		require.True(t, p.Remove(h))
	}
	s := p.Stats()
	assert.Equal(t, 1, s.EmptyChunks)
	assert.Zero(t, s.FreeSlots, "slots of a parked chunk are not in the free-slot list")
	assert.InDelta(t, 1.0/3.0, p.EmptyChunkRatio(), 1e-9)

	_, loc := mustAllocate(t, p, 100)
	assert.Equal(t, Location{Chunk: 1, Slot: 0}, loc)
	assert.Zero(t, p.Stats().EmptyChunks)
	assert.Equal(t, 3, p.ChunkCount())
}

func TestAllocate_PoolFull(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(4), WithMaxChunks(1))

	for i := range 8 {
		mustAllocate(t, p, uint32(i))
	}

	_, _, err := p.Allocate(particle{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, 8, p.Len())
}

func TestAllocate_ArenaFull(t *testing.T) {
	// Room for the primary chunk only.
	a := newTestArena(t, 192)
	p, err := New[particle](a, WithRegistry(component.NewRegistry()), WithComponentsPerChunk(4))
	require.NoError(t, err)

	for i := range 8 {
		mustAllocate(t, p, uint32(i))
	}
	_, _, err = p.Allocate(particle{})
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.ErrorIs(t, err, arena.ErrArenaFull)
}

func TestAllocate_DynamicGrowth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ComponentsPerChunk = 4
	cfg.MaxChunks = 1
	cfg.DynamicGrowth = true
	cfg.MaxExpansionFactor = 3

	p := newTestPool(t, WithConfig(cfg))

	// 8 in the primary chunk, then limits 2 and 3 with 4 records each.
	for i := range 16 {
		mustAllocate(t, p, uint32(i))
	}
	assert.Equal(t, 3, p.MaxChunks())

	_, _, err := p.Allocate(particle{})
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestFragmentationAndNeedsCompaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLiveForCompaction = 4
	p := newTestPool(t, WithConfig(cfg))

	handles := make([]Handle, 10)
	for i := range handles {
		handles[i], _ = mustAllocate(t, p, uint32(i))
	}
	assert.Zero(t, p.Fragmentation())
	assert.False(t, p.NeedsCompaction())

	for _, i := range []int{0, 2, 4} {
		p.Remove(handles[i])
	}
	assert.InDelta(t, 0.3, p.Fragmentation(), 1e-9)
	assert.True(t, p.NeedsCompaction())

	// Too few live records.
	for _, i := range []int{1, 3, 5, 6} {
		p.Remove(handles[i])
	}
	assert.False(t, p.NeedsCompaction())
}

func TestNeedsCompaction_OverflowChunk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ComponentsPerChunk = 4
	cfg.MinLiveForCompaction = 1
	p := newTestPool(t, WithConfig(cfg))

	for i := range 8 {
		mustAllocate(t, p, uint32(i))
	}
	assert.False(t, p.NeedsCompaction())

	mustAllocate(t, p, 8)
	assert.True(t, p.NeedsCompaction())

	_, err := p.Compact(t.Context())
	require.NoError(t, err)
	assert.False(t, p.NeedsCompaction())
}

func TestCompact_RelocationCompleteness(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(8))
	rng := rand.New(rand.NewPCG(5, 8))

	want := map[Handle]uint32{}
	var live []Handle
	for i := range 600 {
		if len(live) > 0 && rng.IntN(3) == 0 {
			k := rng.IntN(len(live))
			require.True(t, p.Remove(live[k]))
			delete(want, live[k])
			live[k] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		h, _ := mustAllocate(t, p, uint32(i))
		want[h] = uint32(i)
		live = append(live, h)
	}
	require.Greater(t, p.ChunkCount(), 1)

	before := map[Handle]Location{}
	for h := range want {
		before[h], _ = p.Location(h)
	}

	res, err := p.Compact(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, p.ChunkCount())
	assert.GreaterOrEqual(t, p.Capacity(), len(want))

	reported := map[uint32]Relocation{}
	for _, r := range res.Relocations {
		reported[r.Index] = r
	}

	changed := 0
	for h, id := range want {
		v, ok := p.Value(h)
		require.True(t, ok, "handle %v lost by compaction", h)
		assert.Equal(t, id, v.ID)

		after, _ := p.Location(h)
		assert.Equal(t, 0, after.Chunk)
		assert.Equal(t, after, res.Relocate(before[h]))

		r, ok := reported[h.Index]
		if before[h] != after {
			changed++
			require.True(t, ok, "missing relocation for %v", h)
			assert.Equal(t, before[h], r.From)
			assert.Equal(t, after, r.To)
		} else {
			assert.False(t, ok, "relocation reported for unmoved %v", h)
		}
	}
	assert.Len(t, res.Relocations, changed)

	// Records are laid out in logical index order.
	prev := -1
	for _, r := range res.Relocations {
		assert.Greater(t, r.To.Slot, prev)
		prev = r.To.Slot
	}

	// The pool keeps working after compaction.
	h, _ := mustAllocate(t, p, 9999)
	v, _ := p.Value(h)
	assert.Equal(t, uint32(9999), v.ID)
}

func TestCompact_NoMovesWhenCompact(t *testing.T) {
	a := newTestArena(t, 1<<16)
	p, err := New[particle](a, WithRegistry(component.NewRegistry()), WithComponentsPerChunk(4))
	require.NoError(t, err)
	for i := range 5 {
		mustAllocate(t, p, uint32(i))
	}
	used := a.Used()

	res, err := p.Compact(t.Context())
	require.NoError(t, err)
	assert.Empty(t, res.Relocations)
	assert.Equal(t, 1, res.ChunksReleased)
	assert.Equal(t, 192, res.BytesReleased)
	assert.Equal(t, used, a.Used(), "old primary chunk returned to the arena")
}

func TestCompact_Canceled(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(4))
	var handles []Handle
	for i := range 20 {
		h, _ := mustAllocate(t, p, uint32(i))
		handles = append(handles, h)
	}
	chunks := p.ChunkCount()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := p.Compact(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, chunks, p.ChunkCount())
	for i, h := range handles {
		v, ok := p.Value(h)
		require.True(t, ok)
		assert.Equal(t, uint32(i), v.ID)
	}
}

func TestCompact_ArenaFull(t *testing.T) {
	a := newTestArena(t, 192)
	p, err := New[particle](a, WithRegistry(component.NewRegistry()), WithComponentsPerChunk(4))
	require.NoError(t, err)
	h, _ := mustAllocate(t, p, 1)

	_, err = p.Compact(t.Context())
	assert.ErrorIs(t, err, ErrNoCapacity)

	v, ok := p.Value(h)
	require.True(t, ok)
	assert.Equal(t, uint32(1), v.ID)
}

func TestCompact_Throttled(t *testing.T) {
	rc := resource.NewController(resource.Config{CopyBytesPerSec: 1 << 30, MaxWorkers: 2})
	p := newTestPool(t, WithComponentsPerChunk(4), WithController(rc))
	for i := range 50 {
		mustAllocate(t, p, uint32(i))
	}

	_, err := p.Compact(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 50, p.Len())
}

func TestReleaseEmptyChunks(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(4))

	byChunk := map[int][]Handle{}
	for i := range 20 { // chunks 0 (8), 1, 2, 3 (4 each)
		h, loc := mustAllocate(t, p, uint32(i))
		byChunk[loc.Chunk] = append(byChunk[loc.Chunk], h)
	}
	require.Equal(t, 4, p.ChunkCount())

	for _, ci := range []int{1, 2} {
		for _, h := range byChunk[ci] {
			require.True(t, p.Remove(h))
		}
	}
	require.Equal(t, 2, p.Stats().EmptyChunks)

	before := map[Handle]Location{}
	for _, h := range byChunk[3] {
		before[h], _ = p.Location(h)
	}

	res := p.ReleaseEmptyChunks(0)
	assert.Equal(t, 2, res.ChunksReleased)
	assert.Equal(t, []ChunkMove{{From: 3, To: 2}, {From: 2, To: 1}}, res.ChunkMoves)
	assert.Equal(t, 2, p.ChunkCount())
	assert.Zero(t, p.Stats().EmptyChunks)

	require.Len(t, res.Relocations, 4, "moved records report one net relocation each")
	for _, h := range byChunk[3] {
		loc, ok := p.Location(h)
		require.True(t, ok)
		assert.Equal(t, 1, loc.Chunk)
		assert.Equal(t, loc, res.Relocate(before[h]))
	}

	for ci, hs := range byChunk {
		if ci == 1 || ci == 2 {
			continue
		}
		for _, h := range hs {
			_, ok := p.Value(h)
			assert.True(t, ok)
		}
	}

	// Nothing left to release.
	assert.Zero(t, p.ReleaseEmptyChunks(0).ChunksReleased)
}

func TestReleaseEmptyChunks_KeepsNewest(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(4))

	byChunk := map[int][]Handle{}
	for i := range 20 {
		h, loc := mustAllocate(t, p, uint32(i))
		byChunk[loc.Chunk] = append(byChunk[loc.Chunk], h)
	}
	for _, ci := range []int{1, 2} {
		for _, h := range byChunk[ci] {
			p.Remove(h)
		}
	}
	// A freed slot in the chunk that will move.
	p.Remove(byChunk[3][0])

	res := p.ReleaseEmptyChunks(-1) // default keeps one
	assert.Equal(t, 1, res.ChunksReleased)
	assert.Equal(t, []ChunkMove{{From: 3, To: 1}}, res.ChunkMoves)
	assert.Equal(t, 3, p.ChunkCount())
	assert.Equal(t, 1, p.Stats().EmptyChunks)
	assert.Equal(t, 1, p.Stats().FreeSlots)

	// The remapped free slot is reused: current chunk moved to 1 and has room.
	_, loc := mustAllocate(t, p, 100)
	assert.Equal(t, Location{Chunk: 1, Slot: 0}, loc)
	assert.Zero(t, p.Stats().FreeSlots)
}

func TestReleaseEmptyChunks_AllEmpty(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(4))
	h, _ := mustAllocate(t, p, 1)
	p.Remove(h)

	res := p.ReleaseEmptyChunks(0)
	assert.Equal(t, 1, res.ChunksReleased)
	assert.Zero(t, p.ChunkCount())

	// A fresh primary chunk is created on demand.
	_, loc := mustAllocate(t, p, 2)
	assert.Equal(t, Location{Chunk: 0, Slot: 0}, loc)
	assert.Equal(t, 8, p.Capacity())
}

func TestThreadRange(t *testing.T) {
	for _, items := range []int{0, 1, 7, 64, 1000} {
		p := newTestPool(t)
		for i := range items {
			mustAllocate(t, p, uint32(i))
		}

		for _, threads := range []int{1, 2, 3, 8, 13} {
			next := 0
			minSize, maxSize := items, 0
			for id := range threads {
				start, end := p.ThreadRange(id, threads)
				assert.Equal(t, next, start, "items=%d threads=%d id=%d", items, threads, id)
				next = end
				minSize = min(minSize, end-start)
				maxSize = max(maxSize, end-start)
			}
			assert.Equal(t, items, next)
			assert.LessOrEqual(t, maxSize-minSize, 1)
		}
	}
}

func TestForEach(t *testing.T) {
	p := newTestPool(t)
	handles := make([]Handle, 10)
	for i := range handles {
		handles[i], _ = mustAllocate(t, p, uint32(i))
	}
	p.Remove(handles[3])

	seen := map[uint32]Handle{}
	p.ForEach(func(h Handle, v *particle) bool {
		seen[v.ID] = h
		return true
	})
	assert.Len(t, seen, 9)
	assert.Equal(t, handles[7], seen[7])

	n := 0
	p.ForEach(func(Handle, *particle) bool {
		n++
		return n < 4
	})
	assert.Equal(t, 4, n)
}

func TestForEachParallel(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxWorkers: 4})
	p := newTestPool(t, WithComponentsPerChunk(64), WithController(rc))
	for i := range 1000 {
		mustAllocate(t, p, uint32(i))
	}

	var visited atomic.Int64
	err := p.ForEachParallel(t.Context(), 0, func(_ Handle, v *particle) error {
		v.X *= 2
		visited.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), visited.Load())

	p.ForEach(func(_ Handle, v *particle) bool {
		assert.Equal(t, float64(v.ID)*2, v.X)
		return true
	})
}

func TestForEachParallel_Error(t *testing.T) {
	p := newTestPool(t)
	for i := range 100 {
		mustAllocate(t, p, uint32(i))
	}

	boom := errors.New("boom")
	err := p.ForEachParallel(t.Context(), 4, func(_ Handle, v *particle) error {
		if v.ID == 42 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEachParallel_NoFreeWorker(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxWorkers: 1})
	p := newTestPool(t, WithController(rc))
	for i := range 100 {
		mustAllocate(t, p, uint32(i))
	}

	// Every slot is taken elsewhere: all ranges run on the calling goroutine.
	require.NoError(t, rc.AcquireWorker(t.Context()))
	defer rc.ReleaseWorker()

	visited := 0
	err := p.ForEachParallel(t.Context(), 4, func(_ Handle, _ *particle) error {
		visited++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 100, visited)

	boom := errors.New("boom")
	err = p.ForEachParallel(t.Context(), 4, func(_ Handle, v *particle) error {
		if v.ID == 60 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, rc.TryAcquireWorker(), "slot stays with its holder")
}

func TestForEachBatch(t *testing.T) {
	p := newTestPool(t, WithComponentsPerChunk(16))
	handles := make([]Handle, 100)
	want := 0.0
	for i := range handles {
		handles[i], _ = mustAllocate(t, p, uint32(i))
		want += float64(i)
	}
	for _, i := range []int{3, 17, 50, 51, 99} {
		p.Remove(handles[i])
		want -= float64(i)
	}

	got := 0.0
	n := 0
	p.ForEachBatch(func(recs []particle) {
		assert.True(t, len(recs) == 1 || len(recs) == p.Lanes())
		for _, r := range recs {
			got += r.X
			n++
		}
	})
	assert.Equal(t, 95, n)
	assert.Equal(t, want, got)
}

func TestResetAndRelease(t *testing.T) {
	a := newTestArena(t, 1<<16)
	p, err := New[particle](a, WithRegistry(component.NewRegistry()), WithComponentsPerChunk(4))
	require.NoError(t, err)

	var handles []Handle
	for i := range 20 {
		h, _ := mustAllocate(t, p, uint32(i))
		handles = append(handles, h)
	}

	p.Reset()
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 1, p.ChunkCount())
	assert.Equal(t, 0, p.ComponentCount())
	for _, h := range handles {
		assert.False(t, p.Contains(h))
	}

	h, loc := mustAllocate(t, p, 7)
	assert.Equal(t, Location{Chunk: 0, Slot: 0}, loc)
	assert.Equal(t, uint32(0), h.Index)
	assert.NotEqual(t, handles[0], h)

	p.Release()
	assert.Equal(t, 0, p.ChunkCount())
	assert.Equal(t, 0, a.Used())
}

type countingMetrics struct {
	allocs, allocErrs, removes, misses, chunks, compactions atomic.Int64
}

func (m *countingMetrics) RecordAllocate(_ time.Duration, err error) {
	m.allocs.Add(1)
	if err != nil {
		m.allocErrs.Add(1)
	}
}

func (m *countingMetrics) RecordRemove(found bool) {
	m.removes.Add(1)
	if !found {
		m.misses.Add(1)
	}
}

func (m *countingMetrics) RecordChunkCreated(int) { m.chunks.Add(1) }

func (m *countingMetrics) RecordCompaction(int, int, time.Duration, error) { m.compactions.Add(1) }

func TestMetricsAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := &countingMetrics{}

	p := newTestPool(t, WithComponentsPerChunk(4), WithMaxChunks(1), WithMetrics(m), WithLogger(logger))
	for i := range 9 {
		_, _, _ = p.Allocate(particle{ID: uint32(i)})
	}
	p.Remove(Handle{Index: 0})
	p.Remove(Handle{Index: 0, Generation: 5})
	_, err := p.Compact(t.Context())
	require.NoError(t, err)

	assert.Equal(t, int64(9), m.allocs.Load())
	assert.Equal(t, int64(1), m.allocErrs.Load())
	assert.Equal(t, int64(2), m.removes.Load())
	assert.Equal(t, int64(1), m.misses.Load())
	assert.Equal(t, int64(1), m.chunks.Load(), "compaction targets are not counted")
	assert.Equal(t, int64(1), m.compactions.Load())

	out := buf.String()
	assert.Contains(t, out, "chunk created")
	assert.Contains(t, out, "pool full")
	assert.Contains(t, out, "pool compacted")
	assert.Contains(t, out, "component=pool.particle")
}

// checkInvariants verifies that every live logical index owns exactly one
// occupied slot and every occupied slot belongs to exactly one live index.
func checkInvariants(t *testing.T, p *Pool[particle]) {
	t.Helper()
	require.Len(t, p.owners, len(p.chunks))

	seen := make(map[Location]uint32, p.Len())
	for _, idx := range p.index.Indices() {
		require.Less(t, idx, p.assigned)
		require.False(t, p.freeIndices.Contains(idx), "index %d is live and free", idx)

		loc, ok := p.index.Get(p.index.SlotFor(idx))
		require.True(t, ok)
		require.Less(t, loc.Chunk, len(p.chunks))
		require.True(t, p.chunks[loc.Chunk].IsOccupied(loc.Slot), "index %d at free slot %s", idx, loc)
		require.Equal(t, idx, p.owners[loc.Chunk][loc.Slot], "owner of %s", loc)
		prev, dup := seen[loc]
		require.False(t, dup, "indices %d and %d share %s", prev, idx, loc)
		seen[loc] = idx
	}
	require.Equal(t, uint64(p.assigned), uint64(p.Len())+p.freeIndices.GetCardinality())

	active := 0
	for ci, c := range p.chunks {
		active += c.ActiveCount()
		for slot := range c.Count() {
			loc := Location{Chunk: ci, Slot: slot}
			_, live := seen[loc]
			require.Equal(t, c.IsOccupied(slot), live, "slot %s", loc)
			if !c.IsEmpty() {
				require.Equal(t, !live, p.freeSlots.Contains(encodeSlot(ci, slot)), "free-slot entry of %s", loc)
			}
		}
		if c.IsEmpty() {
			_, parked := slices.BinarySearch(p.freeChunks, ci)
			require.True(t, parked || ci == p.current, "empty chunk %d is neither parked nor current", ci)
		}
	}
	require.Equal(t, p.Len(), active)
	require.Equal(t, int(p.freeSlots.GetCardinality()), countFreeBelowMark(p))

	require.True(t, slices.IsSorted(p.freeChunks))
	for i, ci := range p.freeChunks {
		require.True(t, p.chunks[ci].IsEmpty(), "parked chunk %d holds records", ci)
		if i > 0 {
			require.NotEqual(t, p.freeChunks[i-1], ci)
		}
	}
	if len(p.chunks) > 0 {
		require.GreaterOrEqual(t, p.current, 0)
		require.Less(t, p.current, len(p.chunks))
	}
}

func countFreeBelowMark(p *Pool[particle]) int {
	n := 0
	for _, c := range p.chunks {
		if !c.IsEmpty() {
			n += c.Count() - c.ActiveCount()
		}
	}
	return n
}

func TestPool_RandomizedInvariants(t *testing.T) {
	for _, seed := range []uint64{1, 7, 42, 1234} {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b9))
		p := newTestPool(t, WithComponentsPerChunk(4))

		model := make(map[Handle]uint32)
		live := make([]Handle, 0, 256)
		var nextID uint32

		for step := range 2000 {
			switch op := rng.IntN(100); {
			case op < 50:
				h, _, err := p.Allocate(particle{ID: nextID})
				if err != nil {
					require.ErrorIs(t, err, ErrNoCapacity)
					break
				}
				require.NotContains(t, model, h)
				model[h] = nextID
				live = append(live, h)
				nextID++
			case op < 85:
				if len(live) == 0 {
					break
				}
				i := rng.IntN(len(live))
				require.True(t, p.Remove(live[i]))
				require.False(t, p.Remove(live[i]))
				delete(model, live[i])
				live[i] = live[len(live)-1]
				live = live[:len(live)-1]
			case op < 90:
				if len(live) == 0 {
					break
				}
				h := live[rng.IntN(len(live))]
				require.True(t, p.Set(h, particle{X: 1, ID: model[h]}))
			case op < 96:
				p.ReleaseEmptyChunks(rng.IntN(2))
			default:
				_, err := p.Compact(t.Context())
				require.NoError(t, err)
			}

			checkInvariants(t, p)
			require.Equal(t, len(model), p.Len(), "seed %d step %d", seed, step)
		}

		for h, id := range model {
			v, ok := p.Value(h)
			require.True(t, ok)
			require.Equal(t, id, v.ID)
		}
	}
}

func TestArenaClosed(t *testing.T) {
	a, err := arena.New(1 << 16)
	require.NoError(t, err)
	p, err := New[particle](a, WithRegistry(component.NewRegistry()), WithComponentsPerChunk(4))
	require.NoError(t, err)

	var handles []Handle
	for i := range 10 {
		h, _ := mustAllocate(t, p, uint32(i))
		handles = append(handles, h)
	}
	require.NoError(t, a.Close())

	_, ok := p.Value(handles[0])
	assert.False(t, ok)
	_, ok = p.Get(handles[9])
	assert.False(t, ok)
	assert.False(t, p.Set(handles[1], particle{}))

	_, _, err = p.Allocate(particle{})
	assert.ErrorIs(t, err, arena.ErrClosed)

	_, err = p.Compact(t.Context())
	assert.ErrorIs(t, err, arena.ErrClosed)

	visited := 0
	p.ForEach(func(Handle, *particle) bool { visited++; return true })
	p.ForEachBatch(func(recs []particle) { visited += len(recs) })
	require.NoError(t, p.ForEachParallel(t.Context(), 2, func(Handle, *particle) error { visited++; return nil }))
	assert.Zero(t, visited)

	// Bookkeeping keeps working without the memory.
	for _, h := range handles[8:] {
		require.True(t, p.Remove(h))
	}
	checkInvariants(t, p)
	p.ReleaseEmptyChunks(0)
	checkInvariants(t, p)
	assert.Equal(t, 8, p.Len())
	p.Release()
	assert.Zero(t, p.ChunkCount())
}

func BenchmarkPool_AllocateRemove(b *testing.B) {
	a := arena.MustNew(1 << 24)
	defer a.Close()
	p, err := New[particle](a, WithRegistry(component.NewRegistry()))
	require.NoError(b, err)

	b.ReportAllocs()
	for b.Loop() {
		h, _, _ := p.Allocate(particle{X: 1})
		p.Remove(h)
	}
}

func BenchmarkPool_ForEachBatch(b *testing.B) {
	a := arena.MustNew(1 << 24)
	defer a.Close()
	p, err := New[particle](a, WithRegistry(component.NewRegistry()))
	require.NoError(b, err)
	for i := range 10000 {
		_, _, _ = p.Allocate(particle{X: float64(i)})
	}

	b.ReportAllocs()
	for b.Loop() {
		sum := 0.0
		p.ForEachBatch(func(recs []particle) {
			for i := range recs {
				sum += recs[i].X
			}
		})
	}
}
