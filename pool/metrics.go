package pool

import "time"

// MetricsCollector receives pool operation outcomes.
type MetricsCollector interface {
	// RecordAllocate is called after each Allocate.
	RecordAllocate(duration time.Duration, err error)
	// RecordRemove is called after each Remove; found is false for stale handles.
	RecordRemove(found bool)
	// RecordChunkCreated is called whenever the pool maps a new chunk.
	RecordChunkCreated(capacity int)
	// RecordCompaction is called after each Compact or ReleaseEmptyChunks.
	RecordCompaction(relocated, chunksReleased int, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordAllocate(time.Duration, error)             {}
func (noopMetrics) RecordRemove(bool)                               {}
func (noopMetrics) RecordChunkCreated(int)                          {}
func (noopMetrics) RecordCompaction(int, int, time.Duration, error) {}
