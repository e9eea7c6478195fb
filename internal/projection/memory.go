package projection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
)

// Memory stores entries per product in append order.
type Memory struct {
	mu        sync.RWMutex
	byProduct map[string][]orders.ProductOrderEntry
	// Exists, when set, rejects entries for unknown products like the foreign key does.
	Exists func(ctx context.Context, productID string) bool
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{byProduct: make(map[string][]orders.ProductOrderEntry)}
}

func (m *Memory) AppendEntry(ctx context.Context, productID, orderID, buyerID string, qty, unitPriceCents int, buyer orders.BuyerMeta) (orders.ProductOrderEntry, error) {
	if m.Exists != nil && !m.Exists(ctx, productID) {
		return orders.ProductOrderEntry{}, orders.ProductNotFound(productID)
	}
	e := orders.ProductOrderEntry{
		ID:             uuid.NewString(),
		ProductID:      productID,
		OrderID:        orderID,
		BuyerID:        buyerID,
		Buyer:          orders.BuyerMeta{Name: buyer.Name, Email: buyer.Email},
		Qty:            qty,
		UnitPriceCents: unitPriceCents,
		Status:         orders.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	m.mu.Lock()
	m.byProduct[productID] = append(m.byProduct[productID], e)
	m.mu.Unlock()
	return e, nil
}

func (m *Memory) PropagateStatus(ctx context.Context, orderID string, status orders.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entries := range m.byProduct {
		for i := range entries {
			if entries[i].OrderID == orderID {
				entries[i].Status = status
				n++
			}
		}
	}
	return n, nil
}

func (m *Memory) FindEntry(ctx context.Context, productID, orderID string) (orders.ProductOrderEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.byProduct[productID] {
		if e.OrderID == orderID {
			return e, nil
		}
	}
	return orders.ProductOrderEntry{}, fmt.Errorf("%w: product %s order %s", orders.ErrProjectionEntryNotFound, productID, orderID)
}

func (m *Memory) ListByOrder(ctx context.Context, orderID string) ([]orders.ProductOrderEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []orders.ProductOrderEntry{}
	for _, entries := range m.byProduct {
		for _, e := range entries {
			if e.OrderID == orderID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *Memory) ListByProducts(ctx context.Context, productIDs []string) (map[string][]orders.ProductOrderEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]orders.ProductOrderEntry, len(productIDs))
	for _, id := range productIDs {
		if entries := m.byProduct[id]; len(entries) > 0 {
			out[id] = append([]orders.ProductOrderEntry(nil), entries...)
		}
	}
	return out, nil
}
