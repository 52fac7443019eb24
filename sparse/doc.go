// Package sparse provides sparse/dense maps from small integer keys to
// densely packed values.
//
// Map translates an unbounded uint32 key space into a contiguous value slice
// with O(1) insert, remove (swap-with-last) and lookup. SlotMap adds a
// generation per key so that handles issued before a removal never resolve to
// a later occupant of the same key.
//
// Neither type is safe for concurrent use.
package sparse
