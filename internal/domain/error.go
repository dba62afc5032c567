package domain

import (
	"errors"
	"fmt"
)

var (
	// Engine error taxonomy
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("entity not found")
	ErrInsufficientCapacity = errors.New("insufficient session capacity")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrContention           = errors.New("concurrent update conflict")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrRateLimited          = errors.New("too many requests")

	// Infra errors surfaced by repositories
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// InsufficientCapacityError carries the numbers a client needs to explain a
// rejected reservation or consumption.
type InsufficientCapacityError struct {
	Requested int64
	Available int64
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient session capacity: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientCapacityError) Unwrap() error { return ErrInsufficientCapacity }

// Invalid wraps ErrValidation with a field-level reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
