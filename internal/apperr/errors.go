// Package apperr holds the error kinds shared by the checkout core and the
// HTTP layer. Callers match kinds with errors.Is and details with errors.As.
package apperr

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidStatus      = errors.New("invalid status value")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrEmptyCart          = errors.New("cannot checkout empty cart")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrConflict           = errors.New("concurrent modification")
	ErrCheckoutInProgress = errors.New("checkout with this idempotency key is in progress")
)

// Validation wraps ErrValidation with a client facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the missing resource name.
func NotFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// StockError describes a product that cannot supply the requested quantity.
// It always matches ErrProductUnavailable; it also matches
// ErrInsufficientStock when the product is purchasable but short on units.
type StockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
	Short     bool
}

func (e *StockError) Error() string {
	if e.Short {
		return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
			e.ProductID.Hex(), e.Available, e.Requested)
	}
	return fmt.Sprintf("product %s is not available", e.ProductID.Hex())
}

func (e *StockError) Is(target error) bool {
	switch target {
	case ErrProductUnavailable:
		return true
	case ErrInsufficientStock:
		return e.Short
	}
	return false
}

// Unavailable reports a product that is missing, unapproved or switched off.
func Unavailable(productID primitive.ObjectID, requested int) *StockError {
	return &StockError{ProductID: productID, Requested: requested}
}

// Insufficient reports a purchasable product with fewer units than requested.
func Insufficient(productID primitive.ObjectID, available, requested int) *StockError {
	return &StockError{ProductID: productID, Available: available, Requested: requested, Short: true}
}
