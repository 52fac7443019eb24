package arena

import "errors"

var (
	// ErrArenaFull is returned when neither the free list nor the bump
	// cursor can satisfy an allocation.
	ErrArenaFull = errors.New("arena: out of memory")
	// ErrInvalidAlignment is returned for alignments that are not a power of two.
	ErrInvalidAlignment = errors.New("arena: alignment must be a power of two")
	// ErrInvalidSize is returned for non-positive sizes.
	ErrInvalidSize = errors.New("arena: invalid size")
	// ErrInvalidRange is returned when freeing a range the arena never handed out.
	ErrInvalidRange = errors.New("arena: invalid range")
	// ErrClosed is returned when using an arena after Close.
	ErrClosed = errors.New("arena: closed")
)
