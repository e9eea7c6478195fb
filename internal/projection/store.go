// Package projection keeps the seller-facing copy of orders embedded per product.
// Entries are derived from the order aggregate and can be rebuilt from it at any time.
package projection

import (
	"context"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type Store interface {
	// AppendEntry adds one pending entry for a single order line.
	AppendEntry(ctx context.Context, productID, orderID, buyerID string, qty, unitPriceCents int, buyer orders.BuyerMeta) (orders.ProductOrderEntry, error)
	// PropagateStatus sets status on every entry of orderID and returns how many matched.
	PropagateStatus(ctx context.Context, orderID string, status orders.Status) (int, error)
	FindEntry(ctx context.Context, productID, orderID string) (orders.ProductOrderEntry, error)
	ListByOrder(ctx context.Context, orderID string) ([]orders.ProductOrderEntry, error)
	ListByProducts(ctx context.Context, productIDs []string) (map[string][]orders.ProductOrderEntry, error)
}
