package shop

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailTaken is returned when another user already has the email
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrTooManyAttempts is returned while an email is locked out after failed logins
	ErrTooManyAttempts = errors.New("too many failed login attempts")
	// ErrInvalidQuantity is returned for a line item quantity below zero
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrMissingField is returned when a required input is empty
	ErrMissingField = errors.New("missing required field")
)

// InsufficientStockError reports the first product that cannot cover an order
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
