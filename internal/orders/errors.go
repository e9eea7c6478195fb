package orders

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound         = errors.New("product not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrEmptyOrder              = errors.New("order has no items")
	ErrMissingAddress          = errors.New("address is required")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidTransition       = errors.New("status transition not allowed")
	ErrForbidden               = errors.New("forbidden")
	ErrProjectionEntryNotFound = errors.New("projection entry not found")
)

// InsufficientStockError names the product that could not cover the requested quantity.
type InsufficientStockError struct {
	ProductID string `json:"productId"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d", e.ProductID, e.Required, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func ProductNotFound(productID string) error {
	return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
}

func OrderNotFound(orderID string) error {
	return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}
