package mem

// Partition returns the half-open range [start, end) of items assigned to
// worker id out of workers. Ranges are contiguous, do not overlap and cover
// exactly [0, items). The first items%workers workers receive one extra item.
//
// An invalid worker id or a non-positive worker count yields an empty range.
func Partition(items, id, workers int) (start, end int) {
	if workers <= 0 || items <= 0 || id < 0 || id >= workers {
		return 0, 0
	}

	base := items / workers
	rem := items % workers

	if id < rem {
		start = id * (base + 1)
		return start, start + base + 1
	}

	start = rem*(base+1) + (id-rem)*base
	return start, start + base
}
