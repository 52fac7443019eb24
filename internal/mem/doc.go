// Package mem provides alignment arithmetic and allocation helpers shared by
// the arena, chunk and pool layers.
//
// # Alignment
//
// All alignment helpers require a power-of-two alignment. CacheLineSize is the
// default alignment for arena regions and chunk storage, MinAlignment the floor
// applied to every component layout.
//
// # Aligned Allocation
//
// AllocAligned returns heap memory aligned to an arbitrary power of two. It is
// used as the fallback arena backing on platforms without anonymous mappings.
//
// # Work Partitioning
//
// Partition splits a number of items into deterministic, contiguous ranges for
// a fixed number of workers.
package mem
