// Package arena provides a fixed-capacity memory region carved up into
// aligned byte ranges addressed by arena-relative offsets.
//
// # Memory Model
//
// An Arena maps its whole region once from the OS (anonymous mmap on unix,
// an aligned heap block elsewhere) and never grows. The Go garbage collector
// does not scan the region, so it must only hold pointer-free data.
//
// Allocations bump a cursor. Freed ranges below the cursor are kept in a
// best-fit free-block index and reused by later allocations; a free that ends
// at the cursor moves the cursor back instead.
//
// # Concurrency Model
//
// Arena is single-owner and performs no locking. Shared is the lock-free
// variant: many goroutines may Allocate concurrently (CAS on the cursor), but
// freed memory is never reused and Reset/Close must not race with Allocate.
//
// # Usage
//
//	a, err := arena.New(64<<20, arena.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	off, err := a.Allocate(4096, 64)
//	buf := a.Bytes(off, 4096)
package arena
