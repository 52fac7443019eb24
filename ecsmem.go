package ecsmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/ecsmem/arena"
	"github.com/hupe1980/ecsmem/component"
	"github.com/hupe1980/ecsmem/internal/resource"
	"github.com/hupe1980/ecsmem/pool"
)

// Handle addresses one record of a pool.
type Handle = pool.Handle

// Location is the physical (chunk, slot) position of a record.
type Location = pool.Location

// Store owns one arena and creates pools of component records inside it.
//
// Pools are single-owner; the Store itself is safe for concurrent use.
type Store struct {
	arena       *arena.Arena
	registry    *component.Registry
	controller  *resource.Controller
	logger      *Logger
	metrics     MetricsCollector
	poolOptions []pool.Option

	mu     sync.Mutex
	pools  int
	closed bool
}

// New maps the arena and returns a ready Store.
func New(optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)

	controller := resource.NewController(o.resources)

	arenaOpts := []arena.Option{
		arena.WithLogger(o.logger.Logger),
		arena.WithMemoryAcquirer(controller),
	}
	if o.minAlignment > 0 {
		arenaOpts = append(arenaOpts, arena.WithMinAlignment(o.minAlignment))
	}

	a, err := arena.New(o.capacity, arenaOpts...)
	if err != nil {
		return nil, translateError("arena", err)
	}

	o.logger.Info("store opened",
		"capacity", a.Capacity(),
		"min_alignment", a.MinAlignment(),
		"max_workers", controller.MaxWorkers(),
	)

	return &Store{
		arena:       a,
		registry:    o.registry,
		controller:  controller,
		logger:      o.logger,
		metrics:     o.metricsCollector,
		poolOptions: o.poolOptions,
	}, nil
}

// Arena returns the store's arena.
func (s *Store) Arena() *arena.Arena {
	return s.arena
}

// Registry returns the component registry pools register their types with.
func (s *Store) Registry() *component.Registry {
	return s.registry
}

// Logger returns the store logger.
func (s *Store) Logger() *Logger {
	return s.logger
}

// Close unmaps the arena. Pools created by the store stay safe to call
// afterwards: lookups find nothing and Allocate returns ErrClosed. It is safe
// to call Close more than once.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.arena.Close()
	s.logger.LogClose(context.Background(), s.pools, err)
	return err
}

// StoreStats is a snapshot of store-wide resource usage.
type StoreStats struct {
	Arena       arena.Stats
	Pools       int
	Components  int
	MemoryUsage int64
	MemoryLimit int64 // 0 if unlimited
	Closed      bool
}

// Stats returns a snapshot of store-wide resource usage.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StoreStats{
		Arena:       s.arena.Stats(),
		Pools:       s.pools,
		Components:  s.registry.Len(),
		MemoryUsage: s.controller.MemoryUsage(),
		MemoryLimit: s.controller.MemoryLimit(),
		Closed:      s.closed,
	}
}

func (s *Store) String() string {
	st := s.Stats()
	return fmt.Sprintf("Store{pools=%d, arena=%s}", st.Pools, s.arena)
}

// Pool is a pool.Pool whose errors are normalized to the ecsmem error set
// and whose operations are logged with the store logger.
type Pool[T any] struct {
	*pool.Pool[T]

	logger *Logger
}

// NewPool creates a pool for T in the store's arena. T must not contain
// pointers; ErrInvalidArgument is returned otherwise.
func NewPool[T any](s *Store, opts ...pool.Option) (*Pool[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	all := make([]pool.Option, 0, len(s.poolOptions)+len(opts)+4)
	all = append(all,
		pool.WithRegistry(s.registry),
		pool.WithController(s.controller),
		pool.WithMetrics(s.metrics),
		pool.WithLogger(s.logger.Logger),
	)
	all = append(all, s.poolOptions...)
	all = append(all, opts...)

	p, err := pool.New[T](s.arena, all...)
	if err != nil {
		var zero T
		return nil, translateError(fmt.Sprintf("%T", zero), err)
	}
	s.pools++

	return &Pool[T]{
		Pool:   p,
		logger: s.logger.WithComponent(p.Descriptor().Name),
	}, nil
}

// Allocate stores value. Capacity exhaustion is reported as *ErrCapacity,
// which matches ErrNoCapacity.
func (p *Pool[T]) Allocate(value T) (Handle, Location, error) {
	h, loc, err := p.Pool.Allocate(value)
	err = translateError(p.Descriptor().Name, err)
	p.logger.LogAllocate(context.Background(), h, loc, err)
	return h, loc, err
}

// Compact rebuilds the pool into a single chunk. See pool.Pool.Compact.
func (p *Pool[T]) Compact(ctx context.Context) (pool.CompactionResult, error) {
	res, err := p.Pool.Compact(ctx)
	err = translateError(p.Descriptor().Name, err)
	p.logger.LogCompaction(ctx, err)
	return res, err
}

// Maintain compacts the pool when NeedsCompaction reports it worthwhile and
// otherwise only releases surplus empty chunks. compacted tells which of the
// two ran.
func (p *Pool[T]) Maintain(ctx context.Context) (res pool.CompactionResult, compacted bool, err error) {
	if p.NeedsCompaction() {
		res, err = p.Compact(ctx)
		return res, err == nil, err
	}
	return p.ReleaseEmptyChunks(-1), false, nil
}
