// Package ecsmem provides arena-backed storage for entity component records.
//
// A Store maps one large region from the operating system and carves it into
// chunks of same-type records. Records never live on the Go heap, so they
// must not contain pointers; registration rejects such types.
//
// # Quick Start
//
//	store, _ := ecsmem.New(ecsmem.WithCapacity(64 << 20))
//	defer store.Close()
//
//	type Position struct{ X, Y, Z float32 }
//
//	positions, _ := ecsmem.NewPool[Position](store)
//	h, _, _ := positions.Allocate(Position{X: 1})
//	p, _ := positions.Get(h)
//	p.Y = 2
//
// # Handles
//
// Allocate returns a Handle: a logical index plus a generation. Removing a
// record bumps the generation, so handles kept across a Remove stop
// resolving instead of aliasing the next occupant. Handles survive Compact
// and ReleaseEmptyChunks; only Locations change, and both report every move.
//
// # Maintenance
//
// Pools never compact on their own. Call Maintain (or Compact and
// ReleaseEmptyChunks directly) from a point where no pointer obtained from
// Get is held.
//
// # Packages
//
//   - arena: the backing region, best-fit reuse of freed ranges, and a
//     lock-free bump allocator for shared use
//   - pool: generic component pools with compaction and parallel iteration
//   - sparse: sparse maps and generational slot maps
//   - component: record type descriptors and the type registry
package ecsmem
