package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExecuted      = errors.New("order already executed")
	ErrAlreadyRejected      = errors.New("order already rejected")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrPersistence          = errors.New("persistence failure")
	ErrPartialApplication   = errors.New("order saved but position not updated")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// PartialApplicationError reports an order that was persisted while its
// position update failed. It matches both ErrPartialApplication and Cause.
type PartialApplicationError struct {
	OrderID    string
	Instrument string
	Cause      error
}

func (e *PartialApplicationError) Error() string {
	return fmt.Sprintf("order %s (%s) saved but position not updated: %v", e.OrderID, e.Instrument, e.Cause)
}

func (e *PartialApplicationError) Unwrap() []error {
	return []error{ErrPartialApplication, e.Cause}
}

// Persistence wraps a store error so callers can match ErrPersistence while
// keeping the driver error in the chain. ErrNotFound passes through untouched.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPersistence) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
