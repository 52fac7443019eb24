package mmap

import (
	"fmt"
	"sync/atomic"
)

// Mapping is an anonymous read-write memory region.
// It owns the underlying byte slice and is responsible for releasing it.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool
	// unmap is the platform-specific release function. Nil for heap-backed mappings.
	unmap func([]byte) error
}

// MapAnon creates a zero-filled, page-aligned anonymous mapping of size bytes.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, unmap, err := osMapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("mmap: map %d anonymous bytes: %w", size, err)
	}

	return &Mapping{
		data:  data[:size:size],
		size:  size,
		unmap: unmap,
	}, nil
}

// Close releases the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	data := m.data
	m.data = nil
	if m.unmap != nil && data != nil {
		return m.unmap(data)
	}
	return nil
}

// Bytes returns the mapped memory, or nil once the mapping is closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Closed reports whether Close has been called.
func (m *Mapping) Closed() bool {
	return m.closed.Load()
}

// Advise provides access hints for the byte range [off, off+n) of the mapping.
// The range is widened to page boundaries; pages only partially covered by the
// range are left alone for AccessDontNeed, since that hint discards contents.
func (m *Mapping) Advise(off, n int, pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if n <= 0 || off < 0 || off >= m.size {
		return nil
	}
	end := min(off+n, m.size)

	start := off &^ (PageSize - 1)
	stop := (end + PageSize - 1) &^ (PageSize - 1)
	if pattern == AccessDontNeed {
		start = (off + PageSize - 1) &^ (PageSize - 1)
		stop = end &^ (PageSize - 1)
		if end == m.size {
			stop = m.size
		}
	}
	stop = min(stop, m.size)
	if start >= stop {
		return nil
	}
	return osAdvise(m.data[start:stop], pattern)
}
