package sparse

import "iter"

// Map is a sparse set keyed by uint32 with densely packed values.
type Map[V any] struct {
	sparse  []uint32 // key -> dense index + 1; 0 marks a vacant key
	dense   []V
	indices []uint32 // dense index -> key
}

// NewMap creates a Map with room for capacity entries.
func NewMap[V any](capacity int) *Map[V] {
	capacity = max(capacity, 0)
	return &Map[V]{
		sparse:  make([]uint32, 0, capacity),
		dense:   make([]V, 0, capacity),
		indices: make([]uint32, 0, capacity),
	}
}

// Insert stores v under key. If the key was present its old value is
// returned with replaced set to true.
func (m *Map[V]) Insert(key uint32, v V) (old V, replaced bool) {
	if int(key) >= len(m.sparse) {
		m.sparse = grow(m.sparse, int(key)+1)
	}

	if d := m.sparse[key]; d != 0 {
		old = m.dense[d-1]
		m.dense[d-1] = v
		return old, true
	}

	m.dense = append(m.dense, v)
	m.indices = append(m.indices, key)
	m.sparse[key] = uint32(len(m.dense)) //nolint:gosec // dense length is bounded by the key space
	return old, false
}

// Remove deletes key and returns its value. The last dense entry moves into
// the freed position.
func (m *Map[V]) Remove(key uint32) (V, bool) {
	var zero V
	if int(key) >= len(m.sparse) || m.sparse[key] == 0 {
		return zero, false
	}

	d := m.sparse[key] - 1
	v := m.dense[d]
	last := uint32(len(m.dense) - 1) //nolint:gosec // non-empty

	if d != last {
		moved := m.indices[last]
		m.dense[d] = m.dense[last]
		m.indices[d] = moved
		m.sparse[moved] = d + 1
	}

	m.dense[last] = zero
	m.dense = m.dense[:last]
	m.indices = m.indices[:last]
	m.sparse[key] = 0
	return v, true
}

// Contains reports whether key is present.
func (m *Map[V]) Contains(key uint32) bool {
	return int(key) < len(m.sparse) && m.sparse[key] != 0
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key uint32) (V, bool) {
	if !m.Contains(key) {
		var zero V
		return zero, false
	}
	return m.dense[m.sparse[key]-1], true
}

// GetPtr returns a pointer to the value stored under key, or nil. The
// pointer is invalidated by the next Insert or Remove.
func (m *Map[V]) GetPtr(key uint32) *V {
	if !m.Contains(key) {
		return nil
	}
	return &m.dense[m.sparse[key]-1]
}

// Len returns the number of stored values.
func (m *Map[V]) Len() int { return len(m.dense) }

// SparseLen returns the size of the key table.
func (m *Map[V]) SparseLen() int { return len(m.sparse) }

// IsEmpty reports whether the map holds no values.
func (m *Map[V]) IsEmpty() bool { return len(m.dense) == 0 }

// Values returns the dense value slice. It must not be modified in length.
func (m *Map[V]) Values() []V { return m.dense }

// Indices returns the keys in dense order.
func (m *Map[V]) Indices() []uint32 { return m.indices }

// All iterates over key/value pairs in dense order.
func (m *Map[V]) All() iter.Seq2[uint32, V] {
	return func(yield func(uint32, V) bool) {
		for i, v := range m.dense {
			if !yield(m.indices[i], v) {
				return
			}
		}
	}
}

// Clear removes every value and keeps the allocated capacity.
func (m *Map[V]) Clear() {
	clear(m.sparse)
	clear(m.dense)
	m.dense = m.dense[:0]
	m.indices = m.indices[:0]
}

func grow[T any](s []T, n int) []T {
	if n <= cap(s) {
		return s[:n]
	}
	out := make([]T, n, max(n, 2*cap(s)))
	copy(out, s)
	return out
}
