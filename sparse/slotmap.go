package sparse

import (
	"fmt"
	"iter"
)

// Slot is a generation-tagged key.
type Slot struct {
	Index      uint32
	Generation uint32
}

func (s Slot) String() string {
	return fmt.Sprintf("%d@%d", s.Index, s.Generation)
}

type slotEntry struct {
	dense      uint32
	generation uint32
	occupied   bool
}

// SlotMap is a sparse map whose keys carry a generation. Each key remembers
// its generation across removals; a successful Remove bumps it, so handles
// issued before the removal are rejected afterwards.
type SlotMap[V any] struct {
	sparse  []slotEntry
	dense   []V
	indices []uint32
}

// NewSlotMap creates a SlotMap with room for capacity entries.
func NewSlotMap[V any](capacity int) *SlotMap[V] {
	capacity = max(capacity, 0)
	return &SlotMap[V]{
		sparse:  make([]slotEntry, 0, capacity),
		dense:   make([]V, 0, capacity),
		indices: make([]uint32, 0, capacity),
	}
}

// SlotFor returns the slot that currently addresses index: the live handle
// if the index is occupied, otherwise the handle the next Insert must use.
func (m *SlotMap[V]) SlotFor(index uint32) Slot {
	if int(index) >= len(m.sparse) {
		return Slot{Index: index}
	}
	return Slot{Index: index, Generation: m.sparse[index].generation}
}

// Insert stores v under slot. An occupied entry is overwritten and its old
// value returned with replaced set to true; a vacant entry is filled. ok is
// false when the slot's generation does not match the stored one.
func (m *SlotMap[V]) Insert(slot Slot, v V) (old V, replaced, ok bool) {
	if int(slot.Index) >= len(m.sparse) {
		m.sparse = grow(m.sparse, int(slot.Index)+1)
	}

	e := &m.sparse[slot.Index]
	if e.generation != slot.Generation {
		return old, false, false
	}

	if e.occupied {
		old = m.dense[e.dense]
		m.dense[e.dense] = v
		return old, true, true
	}

	e.dense = uint32(len(m.dense)) //nolint:gosec // dense length is bounded by the key space
	e.occupied = true
	m.dense = append(m.dense, v)
	m.indices = append(m.indices, slot.Index)
	return old, false, true
}

// Put stores v under index with whatever generation the index currently has
// and returns the live slot.
func (m *SlotMap[V]) Put(index uint32, v V) Slot {
	slot := m.SlotFor(index)
	m.Insert(slot, v)
	return slot
}

// Remove deletes the value addressed by slot and bumps the index's
// generation. Stale or vacant slots return false.
func (m *SlotMap[V]) Remove(slot Slot) (V, bool) {
	var zero V
	e, ok := m.entry(slot)
	if !ok {
		return zero, false
	}

	d := e.dense
	v := m.dense[d]
	last := uint32(len(m.dense) - 1) //nolint:gosec // non-empty

	if d != last {
		moved := m.indices[last]
		m.dense[d] = m.dense[last]
		m.indices[d] = moved
		m.sparse[moved].dense = d
	}

	m.dense[last] = zero
	m.dense = m.dense[:last]
	m.indices = m.indices[:last]

	e.occupied = false
	e.dense = 0
	e.generation++
	return v, true
}

// Contains reports whether slot addresses a live value.
func (m *SlotMap[V]) Contains(slot Slot) bool {
	_, ok := m.entry(slot)
	return ok
}

// ContainsIndex reports whether index is occupied under any generation.
func (m *SlotMap[V]) ContainsIndex(index uint32) bool {
	return int(index) < len(m.sparse) && m.sparse[index].occupied
}

// Get returns the value addressed by slot.
func (m *SlotMap[V]) Get(slot Slot) (V, bool) {
	e, ok := m.entry(slot)
	if !ok {
		var zero V
		return zero, false
	}
	return m.dense[e.dense], true
}

// GetPtr returns a pointer to the value addressed by slot, or nil. The
// pointer is invalidated by the next Insert or Remove.
func (m *SlotMap[V]) GetPtr(slot Slot) *V {
	e, ok := m.entry(slot)
	if !ok {
		return nil
	}
	return &m.dense[e.dense]
}

// DenseIndex returns the position of slot's value in Values.
func (m *SlotMap[V]) DenseIndex(slot Slot) (int, bool) {
	e, ok := m.entry(slot)
	if !ok {
		return 0, false
	}
	return int(e.dense), true
}

// Len returns the number of stored values.
func (m *SlotMap[V]) Len() int { return len(m.dense) }

// SparseLen returns the size of the key table.
func (m *SlotMap[V]) SparseLen() int { return len(m.sparse) }

// IsEmpty reports whether the map holds no values.
func (m *SlotMap[V]) IsEmpty() bool { return len(m.dense) == 0 }

// Values returns the dense value slice. It must not be modified in length.
func (m *SlotMap[V]) Values() []V { return m.dense }

// Indices returns the keys in dense order.
func (m *SlotMap[V]) Indices() []uint32 { return m.indices }

// All iterates over live slots and values in dense order.
func (m *SlotMap[V]) All() iter.Seq2[Slot, V] {
	return func(yield func(Slot, V) bool) {
		for i, v := range m.dense {
			idx := m.indices[i]
			if !yield(Slot{Index: idx, Generation: m.sparse[idx].generation}, v) {
				return
			}
		}
	}
}

// Clear removes every value. Generations of occupied indices are bumped so
// that outstanding slots become stale.
func (m *SlotMap[V]) Clear() {
	for _, idx := range m.indices {
		e := &m.sparse[idx]
		e.occupied = false
		e.dense = 0
		e.generation++
	}
	clear(m.dense)
	m.dense = m.dense[:0]
	m.indices = m.indices[:0]
}

func (m *SlotMap[V]) entry(slot Slot) (*slotEntry, bool) {
	if int(slot.Index) >= len(m.sparse) {
		return nil, false
	}
	e := &m.sparse[slot.Index]
	if !e.occupied || e.generation != slot.Generation {
		return nil, false
	}
	return e, true
}
