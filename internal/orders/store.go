package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the Order Aggregate Store. It is the source of truth for status and totals.
type Store interface {
	Create(ctx context.Context, buyerID string, buyer BuyerMeta, address string, items []OrderLineItem) (Order, error)
	// UpdateStatus overwrites status unconditionally; transition rules live in the coordinator.
	UpdateStatus(ctx context.Context, orderID string, status Status) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
}

// NewOrder validates items and builds a pending order with its total fixed.
func NewOrder(buyerID string, buyer BuyerMeta, address string, items []OrderLineItem, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Qty < 1 {
			return Order{}, ErrInvalidQuantity
		}
	}
	lines := make([]OrderLineItem, len(items))
	copy(lines, items)
	return Order{
		ID:            uuid.NewString(),
		BuyerID:       buyerID,
		Buyer:         buyer,
		Items:         lines,
		TotalCents:    totalOf(lines),
		Address:       address,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
