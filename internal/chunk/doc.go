// Package chunk implements fixed-capacity arrays of same-layout records
// carved out of an arena.
//
// A Chunk is type-erased: it knows only the record Layout and hands out slots
// as byte ranges. Occupancy is tracked by a bitmap in which a set bit marks a
// free slot below the high-water mark. Chunks hold an arena offset and must
// never outlive the arena they were allocated from.
package chunk
