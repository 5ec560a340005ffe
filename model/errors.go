package models

import (
	"errors"
	"fmt"
)

// Sentinel errors, compare with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrOutOfStock          = errors.New("out of stock")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrPersistence         = errors.New("persistence error")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
)

// OpError wraps a failed storage call. It matches ErrPersistence and unwraps
// to the driver error.
type OpError struct {
	Op   string // e.g. "store.CommitSale"
	Kind string // table or resource
	ID   string
	Err  error
}

func (e *OpError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s [%s %s]: %v", e.Op, e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == ErrPersistence }

// NewOpError returns nil when err is nil.
func NewOpError(op, kind string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Invalid builds an ErrInvalidInput with a message.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
