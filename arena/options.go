package arena

import (
	"context"
	"log/slog"

	"github.com/hupe1980/ecsmem/internal/mem"
)

const (
	// DefaultCapacity is the region size used when New is called with capacity 0 (64 MiB).
	DefaultCapacity = 64 << 20
	// CacheLineSize is the alignment of the region start and of chunk storage.
	CacheLineSize = mem.CacheLineSize
	// MinAlignment is the smallest alignment and size granule handed out.
	MinAlignment = mem.MinAlignment
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

type options struct {
	logger   *slog.Logger
	minAlign int
	acquirer MemoryAcquirer
}

func defaultOptions() options {
	return options{
		logger:   slog.New(slog.DiscardHandler),
		minAlign: MinAlignment,
	}
}

// Option is a configuration option for Arena and Shared.
type Option func(*options)

// WithLogger sets the logger used for lifecycle and exhaustion events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMinAlignment raises the minimum alignment (and size granule) of every
// allocation. Values that are not a power of two or below MinAlignment are
// ignored.
func WithMinAlignment(align int) Option {
	return func(o *options) {
		if align >= MinAlignment && mem.IsPowerOfTwo(align) {
			o.minAlign = align
		}
	}
}

// WithMemoryAcquirer charges the region size against acquirer when the arena
// is created and releases it on Close.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = acquirer
	}
}
