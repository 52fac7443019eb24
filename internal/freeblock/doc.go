// Package freeblock tracks free byte ranges of a fixed address space and
// serves best-fit allocations from them.
//
// Blocks are indexed twice: by (size, start) in a B-tree for O(log n) best-fit
// lookup, and by start and end offset in hash maps so that a newly inserted
// block is merged with its neighbours before it becomes visible to searches.
// Tracked blocks are therefore always pairwise disjoint and non-adjacent.
//
// Best fit is the smallest block whose size satisfies the request. Ties are
// broken by the lowest start offset.
//
// A Master is not safe for concurrent use.
package freeblock
