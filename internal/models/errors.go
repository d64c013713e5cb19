package models

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity out of range")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrStaleState        = errors.New("order status changed concurrently")
	ErrPersistence       = errors.New("persistence failure")

	ErrOrderNotFound     = errors.New("order not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSessionNotFound   = errors.New("session not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidCursor     = errors.New("invalid page cursor")
)

// PersistenceError wraps a failure at the save/load boundary. It matches
// both ErrPersistence and the underlying cause under errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + ErrPersistence.Error() + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
