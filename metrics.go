package ecsmem

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
// Every MetricsCollector is also a pool.MetricsCollector.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    allocCounter       prometheus.Counter
//	    compactionDuration prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAllocate(duration time.Duration, err error) {
//	    p.allocCounter.Inc()
//	}
type MetricsCollector interface {
	// RecordAllocate is called after each allocation.
	// duration is the time taken, err is nil if successful.
	RecordAllocate(duration time.Duration, err error)

	// RecordRemove is called after each remove. found is false for stale
	// or unknown handles.
	RecordRemove(found bool)

	// RecordChunkCreated is called when a pool adds a chunk of capacity slots.
	RecordChunkCreated(capacity int)

	// RecordCompaction is called after Compact and ReleaseEmptyChunks.
	RecordCompaction(relocated, chunksReleased int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(time.Duration, error)             {}
func (NoopMetricsCollector) RecordRemove(bool)                               {}
func (NoopMetricsCollector) RecordChunkCreated(int)                          {}
func (NoopMetricsCollector) RecordCompaction(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount        atomic.Int64
	AllocateErrors       atomic.Int64
	AllocateTotalNanos   atomic.Int64
	RemoveCount          atomic.Int64
	RemoveMisses         atomic.Int64
	ChunksCreated        atomic.Int64
	SlotsCreated         atomic.Int64
	CompactionCount      atomic.Int64
	CompactionErrors     atomic.Int64
	CompactionTotalNanos atomic.Int64
	Relocations          atomic.Int64
	ChunksReleased       atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(duration time.Duration, err error) {
	b.AllocateCount.Add(1)
	b.AllocateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocateErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(found bool) {
	b.RemoveCount.Add(1)
	if !found {
		b.RemoveMisses.Add(1)
	}
}

// RecordChunkCreated implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChunkCreated(capacity int) {
	b.ChunksCreated.Add(1)
	b.SlotsCreated.Add(int64(capacity))
}

// RecordCompaction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompaction(relocated, chunksReleased int, duration time.Duration, err error) {
	b.CompactionCount.Add(1)
	b.CompactionTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CompactionErrors.Add(1)
		return
	}
	b.Relocations.Add(int64(relocated))
	b.ChunksReleased.Add(int64(chunksReleased))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:      b.AllocateCount.Load(),
		AllocateErrors:     b.AllocateErrors.Load(),
		AllocateAvgNanos:   avgNanos(b.AllocateTotalNanos.Load(), b.AllocateCount.Load()),
		RemoveCount:        b.RemoveCount.Load(),
		RemoveMisses:       b.RemoveMisses.Load(),
		ChunksCreated:      b.ChunksCreated.Load(),
		SlotsCreated:       b.SlotsCreated.Load(),
		CompactionCount:    b.CompactionCount.Load(),
		CompactionErrors:   b.CompactionErrors.Load(),
		CompactionAvgNanos: avgNanos(b.CompactionTotalNanos.Load(), b.CompactionCount.Load()),
		Relocations:        b.Relocations.Load(),
		ChunksReleased:     b.ChunksReleased.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount      int64
	AllocateErrors     int64
	AllocateAvgNanos   int64
	RemoveCount        int64
	RemoveMisses       int64
	ChunksCreated      int64
	SlotsCreated       int64
	CompactionCount    int64
	CompactionErrors   int64
	CompactionAvgNanos int64
	Relocations        int64
	ChunksReleased     int64
}
