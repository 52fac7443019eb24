package component

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrPointerType is returned when a record type contains pointers.
var ErrPointerType = errors.New("component: type contains pointers")

// ID identifies a registered record type.
type ID uint32

// Size class thresholds and the chunk capacities chosen for them.
const (
	TinyThreshold   = 16
	SmallThreshold  = 64
	MediumThreshold = 256

	TinyComponentsPerChunk   = 2048
	SmallComponentsPerChunk  = 1024
	MediumComponentsPerChunk = 512
	LargeComponentsPerChunk  = 256
)

// Descriptor is the identity and layout of a registered record type.
type Descriptor struct {
	ID    ID
	Name  string
	Type  reflect.Type
	Size  int
	Align int
}

// ComponentsPerChunk returns the default chunk capacity for the descriptor's
// size class.
func (d Descriptor) ComponentsPerChunk() int {
	return ComponentsPerChunk(d.Size)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s#%d(size=%d, align=%d)", d.Name, d.ID, d.Size, d.Align)
}

// ComponentsPerChunk returns the default chunk capacity for records of size
// bytes. Smaller records get larger chunks.
func ComponentsPerChunk(size int) int {
	switch {
	case size < TinyThreshold:
		return TinyComponentsPerChunk
	case size <= SmallThreshold:
		return SmallComponentsPerChunk
	case size <= MediumThreshold:
		return MediumComponentsPerChunk
	default:
		return LargeComponentsPerChunk
	}
}

// ValidatePointerFree reports an ErrPointerType error if values of t hold
// any pointer.
func ValidatePointerFree(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("%w: nil type", ErrPointerType)
	}
	if path, kind, ok := findPointer(t, t.String()); ok {
		return fmt.Errorf("%w: %s is a %s", ErrPointerType, path, kind)
	}
	return nil
}

func findPointer(t reflect.Type, path string) (string, reflect.Kind, bool) {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return "", 0, false
	case reflect.Array:
		if t.Len() == 0 {
			return "", 0, false
		}
		return findPointer(t.Elem(), path+"[]")
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if p, k, ok := findPointer(f.Type, path+"."+f.Name); ok {
				return p, k, true
			}
		}
		return "", 0, false
	default:
		return path, t.Kind(), true
	}
}
