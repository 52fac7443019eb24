// Package bitset provides a fixed-size bitset used for chunk slot occupancy
// tracking. It wraps github.com/bits-and-blooms/bitset with bounds that never
// grow and int-based, -1-terminated search helpers.
//
// The bitset is not safe for concurrent mutation. Chunks are owned by a single
// goroutine at a time and rely on that for their slot bookkeeping.
package bitset
