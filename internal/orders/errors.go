package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOtp is returned when the code presented for delivery does
	// not match the order's OTP. The order is left unchanged.
	ErrInvalidOtp = errors.New("invalid delivery code")
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("not allowed to perform this action")
	// ErrInsufficientStock is returned when a line item cannot be reserved.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConcurrentUpdate is returned when the order changed between read
	// and write.
	ErrConcurrentUpdate = errors.New("order was modified concurrently, reload and retry")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Kind string // "order", "user", "item"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// TransitionError reports a status move the transition table does not allow.
type TransitionError struct {
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

// PersistenceError wraps a store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
