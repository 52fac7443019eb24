package component

import (
	"reflect"
	"sync"

	"github.com/hupe1980/ecsmem/sparse"
)

// Registry numbers record types in registration order. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]ID
	descs  *sparse.Map[Descriptor]
	next   ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]ID),
		descs:  sparse.NewMap[Descriptor](64),
	}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Register returns the descriptor for t, assigning the next ID on first use.
func (r *Registry) Register(t reflect.Type) (Descriptor, error) {
	if d, ok := r.LookupType(t); ok {
		return d, nil
	}
	if err := ValidatePointerFree(t); err != nil {
		return Descriptor{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byType[t]; ok {
		d, _ := r.descs.Get(uint32(id))
		return d, nil
	}

	d := Descriptor{
		ID:    r.next,
		Name:  t.String(),
		Type:  t,
		Size:  int(t.Size()),
		Align: t.Align(),
	}
	r.byType[t] = d.ID
	r.descs.Insert(uint32(d.ID), d)
	r.next++
	return d, nil
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id ID) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descs.Get(uint32(id))
}

// LookupType returns the descriptor registered for t.
func (r *Registry) LookupType(t reflect.Type) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[t]
	if !ok {
		return Descriptor{}, false
	}
	return r.descs.Get(uint32(id))
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descs.Len()
}

// Descriptors returns every registered descriptor ordered by ID.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, r.descs.Len())
	for id, d := range r.descs.All() {
		out[id] = d
	}
	return out
}

// Register registers T with r, or with Default when r is nil.
func Register[T any](r *Registry) (Descriptor, error) {
	if r == nil {
		r = Default
	}
	return r.Register(reflect.TypeFor[T]())
}

// MustRegister is like Register but panics on error.
func MustRegister[T any](r *Registry) Descriptor {
	d, err := Register[T](r)
	if err != nil {
		panic(err)
	}
	return d
}
