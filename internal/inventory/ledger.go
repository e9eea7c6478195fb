// Package inventory owns product stock: the conditional decrement taken at checkout,
// its compensation, and the small catalog surface sellers need to list stock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var ErrInvalidProduct = errors.New("invalid product")

// Reservation is what a successful decrement reports back for the line-item snapshot.
type Reservation struct {
	ProductID      string
	SellerID       string
	Qty            int
	UnitPriceCents int
	Remaining      int
}

type Ledger interface {
	// CheckAndReserve decrements stock by qty in one atomic step or fails without change.
	CheckAndReserve(ctx context.Context, productID string, qty int) (Reservation, error)
	// ReserveAll reserves every line or none of them.
	ReserveAll(ctx context.Context, lines []orders.LineInput) ([]Reservation, error)
	Release(ctx context.Context, productID string, qty int) error
	SnapshotPrice(ctx context.Context, productID string) (int, error)
	Get(ctx context.Context, productID string) (orders.Product, error)
}

type Catalog interface {
	Ledger
	Create(ctx context.Context, p orders.Product) (orders.Product, error)
	// View returns the product and counts the view (popular sort).
	View(ctx context.Context, productID string) (orders.Product, error)
	List(ctx context.Context, popular bool) ([]orders.Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]orders.Product, error)
}

// Normalize validates a new product and fills defaults.
func Normalize(p orders.Product) (orders.Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	switch {
	case p.Title == "":
		return p, fmt.Errorf("%w: title is required", ErrInvalidProduct)
	case p.UploadedBy == "":
		return p, fmt.Errorf("%w: uploadedBy is required", ErrInvalidProduct)
	case p.PriceCents < 0 || p.DiscountPriceCents < 0:
		return p, fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	case p.DiscountPriceCents > p.PriceCents:
		return p, fmt.Errorf("%w: discount price cannot exceed price", ErrInvalidProduct)
	case p.Quantity < 0:
		return p, fmt.Errorf("%w: quantity cannot be negative", ErrInvalidProduct)
	}
	switch p.Availability {
	case "":
		p.Availability = orders.InStock
	case orders.InStock, orders.OutOfStock, orders.PreOrder:
	default:
		return p, fmt.Errorf("%w: unknown availability %q", ErrInvalidProduct, p.Availability)
	}
	p.ListedAvailability = p.Availability
	if p.Quantity == 0 && p.Availability == orders.InStock {
		p.Availability = orders.OutOfStock
	}
	return p, nil
}

func checkQty(qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: %d", orders.ErrInvalidQuantity, qty)
	}
	return nil
}
