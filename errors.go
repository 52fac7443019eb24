package ecsmem

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ecsmem/arena"
	"github.com/hupe1980/ecsmem/component"
	"github.com/hupe1980/ecsmem/internal/resource"
	"github.com/hupe1980/ecsmem/pool"
)

var (
	// ErrNoCapacity is returned when the arena or a pool's chunk limit is exhausted.
	ErrNoCapacity = errors.New("no capacity")

	// ErrInvalidArgument is returned for invalid configuration, alignment or record types.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned when using a closed Store.
	ErrClosed = errors.New("store is closed")
)

// ErrCapacity indicates that a pool could not place a record.
// It matches ErrNoCapacity with errors.Is.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrCapacity struct {
	Component string
	cause     error
}

func (e *ErrCapacity) Error() string {
	return fmt.Sprintf("no capacity for %s: %v", e.Component, e.cause)
}

func (e *ErrCapacity) Unwrap() error { return e.cause }

// Is reports whether target is ErrNoCapacity.
func (e *ErrCapacity) Is(target error) bool { return target == ErrNoCapacity }

func translateError(name string, err error) error {
	if err == nil {
		return nil
	}

	// Capacity unification.
	if errors.Is(err, pool.ErrNoCapacity) ||
		errors.Is(err, pool.ErrPoolFull) ||
		errors.Is(err, arena.ErrArenaFull) ||
		errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return &ErrCapacity{Component: name, cause: err}
	}

	// Argument normalization.
	switch {
	case errors.Is(err, pool.ErrInvalidConfig),
		errors.Is(err, component.ErrPointerType),
		errors.Is(err, arena.ErrInvalidAlignment),
		errors.Is(err, arena.ErrInvalidSize),
		errors.Is(err, arena.ErrInvalidRange):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, arena.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
