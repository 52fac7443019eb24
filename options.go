package ecsmem

import (
	"log/slog"

	"github.com/hupe1980/ecsmem/arena"
	"github.com/hupe1980/ecsmem/component"
	"github.com/hupe1980/ecsmem/internal/resource"
	"github.com/hupe1980/ecsmem/pool"
)

type options struct {
	capacity         int
	minAlignment     int
	resources        resource.Config
	registry         *component.Registry
	metricsCollector MetricsCollector
	logger           *Logger
	poolOptions      []pool.Option
}

// Option configures a Store.
type Option func(*options)

// WithCapacity sets the arena capacity in bytes. It is rounded up to a
// multiple of the cache line size.
//
// Default: arena.DefaultCapacity (64 MiB).
func WithCapacity(bytes int) Option {
	return func(o *options) {
		o.capacity = bytes
	}
}

// WithMinAlignment raises the minimum alignment of arena allocations.
// Values that are not a power of two or are below arena.MinAlignment are
// ignored.
func WithMinAlignment(align int) Option {
	return func(o *options) {
		o.minAlignment = align
	}
}

// WithMemoryLimit caps the arena memory that may be mapped through this
// store's resource controller. The arena capacity itself must fit within
// the limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.resources.MemoryLimitBytes = bytes
	}
}

// WithMaxWorkers bounds the goroutines used by parallel iteration and
// compaction across all pools of the store.
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		o.resources.MaxWorkers = int64(n)
	}
}

// WithCopyBandwidth limits how many bytes per second compaction may copy.
// Zero means unlimited.
func WithCopyBandwidth(bytesPerSec int64) Option {
	return func(o *options) {
		o.resources.CopyBytesPerSec = bytesPerSec
	}
}

// WithRegistry sets the component registry. Defaults to component.Default.
func WithRegistry(r *component.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithMetricsCollector configures a metrics collector shared by all pools.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ecsmem.BasicMetricsCollector{}
//	store, _ := ecsmem.New(ecsmem.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
//	fmt.Printf("Allocations: %d, Avg latency: %dns\n", stats.AllocateCount, stats.AllocateAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := ecsmem.NewJSONLogger(slog.LevelInfo)
//	store, _ := ecsmem.New(ecsmem.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithPoolOptions sets default options applied to every pool created by the
// store. Options passed to NewPool are applied after these.
func WithPoolOptions(opts ...pool.Option) Option {
	return func(o *options) {
		o.poolOptions = append(o.poolOptions, opts...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		capacity:         arena.DefaultCapacity,
		registry:         component.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
