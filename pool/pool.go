package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/ecsmem/arena"
	"github.com/hupe1980/ecsmem/component"
	"github.com/hupe1980/ecsmem/internal/chunk"
	"github.com/hupe1980/ecsmem/internal/resource"
	"github.com/hupe1980/ecsmem/sparse"
)

var (
	// ErrPoolFull is returned when the chunk limit is reached.
	ErrPoolFull = errors.New("pool: chunk limit reached")
	// ErrNoCapacity wraps every capacity exhaustion reported by Allocate and Compact.
	ErrNoCapacity = errors.New("pool: no capacity")
)

// Handle addresses one record. It stays valid until the record is removed.
type Handle sparse.Slot

func (h Handle) String() string {
	return sparse.Slot(h).String()
}

// Location is the physical position of a record.
type Location struct {
	Chunk int
	Slot  int
}

func (l Location) String() string {
	return fmt.Sprintf("(%d, %d)", l.Chunk, l.Slot)
}

// Pool stores records of type T in arena-backed chunks.
type Pool[T any] struct {
	arena      *arena.Arena
	desc       component.Descriptor
	layout     chunk.Layout
	perChunk   int
	cfg        Config
	logger     *slog.Logger
	metrics    MetricsCollector
	controller *resource.Controller

	chunks []*chunk.Chunk
	owners [][]uint32 // chunk -> slot -> logical index
	index  *sparse.SlotMap[Location]

	assigned    uint32            // logical indices handed out so far
	freeIndices *roaring.Bitmap   // removed logical indices
	freeSlots   *roaring64.Bitmap // freed slots of non-empty chunks, chunk<<32 | slot
	freeChunks  []int             // empty chunks kept for reuse, ascending
	current     int               // -1 when the pool has no chunk

	maxChunks       int
	needsCompaction bool
}

// New creates a pool for T in a and allocates its primary chunk, which holds
// twice ComponentsPerChunk records.
func New[T any](a *arena.Arena, opts ...Option) (*Pool[T], error) {
	o := options{
		cfg:     DefaultConfig(),
		logger:  slog.New(slog.DiscardHandler),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	desc, err := component.Register[T](o.registry)
	if err != nil {
		return nil, err
	}

	perChunk := o.cfg.ComponentsPerChunk
	if perChunk == 0 {
		perChunk = desc.ComponentsPerChunk()
	}

	p := &Pool[T]{
		arena:       a,
		desc:        desc,
		layout:      chunk.Layout{Size: desc.Size, Align: desc.Align},
		perChunk:    perChunk,
		cfg:         o.cfg,
		logger:      o.logger.With(slog.String("component", desc.Name), slog.Uint64("component_id", uint64(desc.ID))),
		metrics:     o.metrics,
		controller:  o.controller,
		index:       sparse.NewSlotMap[Location](o.cfg.InitialCapacity),
		freeIndices: roaring.New(),
		freeSlots:   roaring64.New(),
		current:     -1,
		maxChunks:   o.cfg.MaxChunks,
	}

	if _, err := p.newChunk(2 * perChunk); err != nil {
		return nil, err
	}
	return p, nil
}

// Descriptor returns the registered descriptor of T.
func (p *Pool[T]) Descriptor() component.Descriptor {
	return p.desc
}

// Allocate stores value and returns its handle and location.
// It returns arena.ErrClosed once the arena is closed.
func (p *Pool[T]) Allocate(value T) (Handle, Location, error) {
	start := time.Now()

	if p.arena.Closed() {
		p.metrics.RecordAllocate(time.Since(start), arena.ErrClosed)
		return Handle{}, Location{}, arena.ErrClosed
	}

	loc, err := p.place()
	if err != nil {
		p.needsCompaction = true
		if errors.Is(err, ErrPoolFull) || errors.Is(err, arena.ErrArenaFull) {
			err = fmt.Errorf("%w: %w", ErrNoCapacity, err)
		}
		p.metrics.RecordAllocate(time.Since(start), err)
		return Handle{}, Location{}, err
	}

	var idx uint32
	if !p.freeIndices.IsEmpty() {
		idx = p.freeIndices.Minimum()
		p.freeIndices.Remove(idx)
	} else {
		idx = p.assigned
		p.assigned++
	}

	*p.ptr(loc) = value
	p.owners[loc.Chunk][loc.Slot] = idx
	h := Handle(p.index.Put(idx, loc))

	p.metrics.RecordAllocate(time.Since(start), nil)
	return h, loc, nil
}

// place reserves a slot following the placement order described in the
// package documentation.
func (p *Pool[T]) place() (Location, error) {
	if p.current >= 0 {
		if c := p.chunks[p.current]; !c.IsFull() {
			return p.takeSlot(p.current), nil
		}
	}

	if !p.freeSlots.IsEmpty() {
		ci, _ := decodeSlot(p.freeSlots.Minimum())
		return p.takeSlot(ci), nil
	}

	if n := len(p.freeChunks); n > 0 {
		ci := p.freeChunks[n-1]
		p.current = ci
		return p.takeSlot(ci), nil
	}

	if len(p.chunks) >= p.maxChunks && !p.grow() {
		p.logger.Warn("pool full",
			slog.Int("chunks", len(p.chunks)),
			slog.Int("max_chunks", p.maxChunks),
			slog.Int("live", p.Len()))
		return Location{}, fmt.Errorf("%w: %d chunks", ErrPoolFull, p.maxChunks)
	}

	capacity := p.perChunk
	if len(p.chunks) == 0 {
		capacity *= 2
	}
	ci, err := p.newChunk(capacity)
	if err != nil {
		return Location{}, err
	}
	if len(p.chunks) > 1 {
		p.needsCompaction = true
	}
	return p.takeSlot(ci), nil
}

func (p *Pool[T]) takeSlot(ci int) Location {
	c := p.chunks[ci]
	if c.IsEmpty() {
		p.unparkChunk(ci)
	}
	slot, _ := c.AllocateSlot()
	p.freeSlots.Remove(encodeSlot(ci, slot))
	return Location{Chunk: ci, Slot: slot}
}

// grow raises the chunk limit when dynamic growth allows it.
func (p *Pool[T]) grow() bool {
	limit := p.cfg.MaxExpansionFactor * p.cfg.MaxChunks
	if !p.cfg.DynamicGrowth || p.maxChunks >= limit {
		return false
	}

	next := int(math.Ceil(float64(p.maxChunks) * p.cfg.GrowthFactor))
	next = min(max(next, p.maxChunks+1), limit)
	p.logger.Info("pool chunk limit raised",
		slog.Int("from", p.maxChunks),
		slog.Int("to", next))
	p.maxChunks = next
	return true
}

func (p *Pool[T]) newChunk(capacity int) (int, error) {
	c, err := chunk.New(p.arena, p.layout, capacity)
	if err != nil {
		p.logger.Warn("chunk allocation failed",
			slog.Int("capacity", capacity),
			slog.Any("error", err))
		return 0, err
	}

	ci := len(p.chunks)
	p.chunks = append(p.chunks, c)
	p.owners = append(p.owners, make([]uint32, capacity))
	p.current = ci

	p.logger.Debug("chunk created",
		slog.Int("chunk", ci),
		slog.Int("capacity", capacity),
		slog.Int("offset", c.Offset()))
	p.metrics.RecordChunkCreated(capacity)
	return ci, nil
}

// Remove deletes the record addressed by h. A chunk that becomes empty is
// kept for reuse until ReleaseEmptyChunks or Compact drops it.
func (p *Pool[T]) Remove(h Handle) bool {
	loc, ok := p.index.Remove(sparse.Slot(h))
	if !ok {
		p.metrics.RecordRemove(false)
		return false
	}

	c := p.chunks[loc.Chunk]
	c.FreeSlot(loc.Slot)
	p.freeIndices.Add(h.Index)

	if c.IsEmpty() {
		p.parkChunk(loc.Chunk)
	} else {
		p.freeSlots.Add(encodeSlot(loc.Chunk, loc.Slot))
	}

	p.metrics.RecordRemove(true)
	return true
}

// parkChunk resets an empty chunk and registers it for reuse.
func (p *Pool[T]) parkChunk(ci int) {
	p.chunks[ci].Reset()
	p.freeSlots.RemoveRange(encodeSlot(ci, 0), encodeSlot(ci+1, 0))
	if i, found := slices.BinarySearch(p.freeChunks, ci); !found {
		p.freeChunks = slices.Insert(p.freeChunks, i, ci)
	}
}

func (p *Pool[T]) unparkChunk(ci int) {
	if i, found := slices.BinarySearch(p.freeChunks, ci); found {
		p.freeChunks = slices.Delete(p.freeChunks, i, i+1)
	}
}

// Get returns a pointer to the record addressed by h. The pointer is valid
// until the record moves (Compact, ReleaseEmptyChunks) or is removed. No
// record is found once the arena is closed.
func (p *Pool[T]) Get(h Handle) (*T, bool) {
	loc, ok := p.index.Get(sparse.Slot(h))
	if !ok {
		return nil, false
	}
	v := p.ptr(loc)
	return v, v != nil
}

// Value returns a copy of the record addressed by h.
func (p *Pool[T]) Value(h Handle) (T, bool) {
	v, ok := p.Get(h)
	if !ok {
		var zero T
		return zero, false
	}
	return *v, true
}

// Set overwrites the record addressed by h.
func (p *Pool[T]) Set(h Handle, value T) bool {
	v, ok := p.Get(h)
	if !ok {
		return false
	}
	*v = value
	return true
}

// Contains reports whether h addresses a live record.
func (p *Pool[T]) Contains(h Handle) bool {
	return p.index.Contains(sparse.Slot(h))
}

// Location returns the current location of the record addressed by h.
func (p *Pool[T]) Location(h Handle) (Location, bool) {
	return p.index.Get(sparse.Slot(h))
}

// HandleAt returns the live handle of logical index idx.
func (p *Pool[T]) HandleAt(idx uint32) (Handle, bool) {
	if !p.index.ContainsIndex(idx) {
		return Handle{}, false
	}
	return Handle(p.index.SlotFor(idx)), true
}

// Len returns the number of live records.
func (p *Pool[T]) Len() int {
	return p.index.Len()
}

// ComponentCount returns the number of logical indices handed out, live or
// free.
func (p *Pool[T]) ComponentCount() int {
	return int(p.assigned)
}

// Capacity returns the total number of slots across all chunks.
func (p *Pool[T]) Capacity() int {
	n := 0
	for _, c := range p.chunks {
		n += c.Capacity()
	}
	return n
}

// ChunkCount returns the number of chunks.
func (p *Pool[T]) ChunkCount() int {
	return len(p.chunks)
}

// MaxChunks returns the current chunk limit.
func (p *Pool[T]) MaxChunks() int {
	return p.maxChunks
}

// Fragmentation returns free logical indices divided by assigned indices.
func (p *Pool[T]) Fragmentation() float64 {
	if p.assigned == 0 {
		return 0
	}
	return float64(p.freeIndices.GetCardinality()) / float64(p.assigned)
}

// EmptyChunkRatio returns the share of chunks that hold no record.
func (p *Pool[T]) EmptyChunkRatio() float64 {
	if len(p.chunks) == 0 {
		return 0
	}
	return float64(len(p.freeChunks)) / float64(len(p.chunks))
}

// NeedsCompaction reports whether compaction is worthwhile: the pool holds
// at least MinLiveForCompaction records and either fragmentation or the
// empty-chunk ratio exceeds the threshold, or an overflow chunk was created
// or an allocation failed since the last compaction.
func (p *Pool[T]) NeedsCompaction() bool {
	if p.Len() < p.cfg.MinLiveForCompaction {
		return false
	}
	return p.needsCompaction ||
		p.Fragmentation() > p.cfg.CompactionThreshold ||
		p.EmptyChunkRatio() > p.cfg.CompactionThreshold
}

// Reset removes every record, keeps only the primary chunk and invalidates
// all handles.
func (p *Pool[T]) Reset() {
	for i := len(p.chunks) - 1; i >= 1; i-- {
		p.releaseChunk(i)
	}
	if len(p.chunks) > 0 {
		p.chunks = p.chunks[:1]
		p.owners = p.owners[:1]
		p.chunks[0].Reset()
		p.current = 0
	}

	p.index.Clear()
	p.assigned = 0
	p.freeIndices.Clear()
	p.freeSlots.Clear()
	p.freeChunks = p.freeChunks[:0]
	p.maxChunks = p.cfg.MaxChunks
	p.needsCompaction = false
}

// Release returns every chunk to the arena. The pool is empty afterwards
// and allocates a fresh primary chunk on the next Allocate.
func (p *Pool[T]) Release() {
	for i := len(p.chunks) - 1; i >= 0; i-- {
		p.releaseChunk(i)
	}
	p.chunks = nil
	p.owners = nil
	p.current = -1

	p.index.Clear()
	p.assigned = 0
	p.freeIndices.Clear()
	p.freeSlots.Clear()
	p.freeChunks = nil
	p.needsCompaction = false
}

func (p *Pool[T]) releaseChunk(ci int) {
	if err := p.chunks[ci].Release(); err != nil {
		p.logger.Warn("chunk release failed", slog.Int("chunk", ci), slog.Any("error", err))
	}
}

func (p *Pool[T]) ptr(loc Location) *T {
	return (*T)(p.chunks[loc.Chunk].Pointer(loc.Slot))
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	Live            int
	ComponentCount  int
	FreeIndices     int
	FreeSlots       int
	Chunks          int
	EmptyChunks     int
	MaxChunks       int
	Capacity        int
	BytesReserved   int
	Fragmentation   float64
	EmptyChunkRatio float64
	NeedsCompaction bool
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool[T]) Stats() Stats {
	bytes := 0
	for _, c := range p.chunks {
		bytes += c.Size()
	}
	return Stats{
		Live:            p.Len(),
		ComponentCount:  p.ComponentCount(),
		FreeIndices:     int(p.freeIndices.GetCardinality()),
		FreeSlots:       int(p.freeSlots.GetCardinality()),
		Chunks:          len(p.chunks),
		EmptyChunks:     len(p.freeChunks),
		MaxChunks:       p.maxChunks,
		Capacity:        p.Capacity(),
		BytesReserved:   bytes,
		Fragmentation:   p.Fragmentation(),
		EmptyChunkRatio: p.EmptyChunkRatio(),
		NeedsCompaction: p.NeedsCompaction(),
	}
}

func (p *Pool[T]) String() string {
	return fmt.Sprintf("Pool[%s]{live=%d, chunks=%d, capacity=%d}", p.desc.Name, p.Len(), len(p.chunks), p.Capacity())
}

func encodeSlot(ci, slot int) uint64 {
	return uint64(ci)<<32 | uint64(slot) //nolint:gosec // chunk and slot indices are non-negative
}

func decodeSlot(v uint64) (ci, slot int) {
	return int(v >> 32), int(v & math.MaxUint32) //nolint:gosec // both halves fit in 32 bits
}
