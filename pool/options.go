package pool

import (
	"log/slog"

	"github.com/hupe1980/ecsmem/component"
	"github.com/hupe1980/ecsmem/internal/resource"
)

type options struct {
	cfg        Config
	logger     *slog.Logger
	metrics    MetricsCollector
	registry   *component.Registry
	controller *resource.Controller
}

// Option configures a Pool.
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithComponentsPerChunk overrides the size-class chunk capacity.
func WithComponentsPerChunk(n int) Option {
	return func(o *options) {
		o.cfg.ComponentsPerChunk = n
	}
}

// WithMaxChunks sets the chunk limit.
func WithMaxChunks(n int) Option {
	return func(o *options) {
		o.cfg.MaxChunks = n
	}
}

// WithDynamicGrowth enables raising the chunk limit instead of failing.
func WithDynamicGrowth(enabled bool) Option {
	return func(o *options) {
		o.cfg.DynamicGrowth = enabled
	}
}

// WithCompactionThreshold sets the fragmentation ratio that triggers
// NeedsCompaction.
func WithCompactionThreshold(threshold float64) Option {
	return func(o *options) {
		o.cfg.CompactionThreshold = threshold
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithRegistry registers the record type with r instead of component.Default.
func WithRegistry(r *component.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithController sets the resource controller that bounds parallel workers
// and compaction copy bandwidth.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}
