// Package mmap provides anonymous memory mappings used as off-heap backing
// regions for arenas.
//
// # Overview
//
// A Mapping is obtained once, used for the lifetime of its owner and released
// exactly once with Close. Memory inside a mapping is never scanned by the Go
// garbage collector, so it must only hold pointer-free data.
//
//	m, err := mmap.MapAnon(64 << 20)
//	if err != nil { ... }
//	defer m.Close()
//
//	buf := m.Bytes()
//	m.Advise(mmap.AccessDontNeed) // hand pages back after a reset
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE and madvise(2) hints
//   - Other platforms: a page-aligned heap allocation; Advise is a no-op
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure no
// goroutine touches Bytes() after Close returns.
package mmap
