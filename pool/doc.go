// Package pool stores records of one pointer-free type in arena-backed
// chunks and addresses them through stable, generation-checked handles.
//
// # Handles and Locations
//
// Allocate returns a Handle (logical index plus generation) and the record's
// current Location (chunk, slot). Handles stay valid until the record is
// removed, across compaction and chunk release. Locations change whenever
// records move; Compact and ReleaseEmptyChunks report every move so callers
// caching locations can patch them.
//
// # Placement
//
// A new record goes to the first of:
//
//  1. the current chunk, if it has room
//  2. a slot freed by an earlier Remove
//  3. an empty chunk kept for reuse (highest chunk index first)
//  4. a new chunk, subject to the chunk limit
//
// Freed logical indices are reused lowest first.
//
// # Concurrency
//
// Pool is single-owner. ForEachParallel may read and write distinct records
// from several goroutines, but no structural change (Allocate, Remove,
// Compact) may run at the same time.
package pool
