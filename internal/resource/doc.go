// Package resource implements the Controller that governs process-wide limits
// for arenas and pools.
//
// The Controller manages three resource types:
//
//   - Memory: budget for arena regions (weighted semaphore)
//   - Workers: slots for parallel iteration and compaction
//   - Copy bandwidth: token bucket throttling the bytes moved by compaction
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                        Controller                           │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Memory Budget  │  Worker Slots   │  Copy Rate Limiter      │
//	│  (semaphore)    │  (semaphore)    │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  AcquireMemory  │  AcquireWorker  │  AcquireCopy            │
//	│  ReleaseMemory  │  TryAcquire...  │                         │
//	│  MemoryLimit    │  ReleaseWorker  │                         │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// # Memory Budget
//
// Arenas reserve their whole region up front, so the budget is charged once
// per arena and released when the arena is closed:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB budget
//	})
//
//	if err := rc.AcquireMemory(ctx, 64<<20); err != nil {
//	    // budget exhausted
//	}
//	defer rc.ReleaseMemory(64 << 20)
//
// # Worker Slots
//
// Parallel iteration takes a slot per goroutine with TryAcquireWorker and
// runs ranges that find no free slot on the calling goroutine.
//
// # Copy Bandwidth
//
// Compaction moves every live record. AcquireCopy waits until the limiter
// admits the requested bytes, splitting requests larger than the bucket.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
