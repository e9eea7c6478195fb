package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps orders in process. Used when no database is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Order
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]Order),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Create(ctx context.Context, buyerID string, buyer BuyerMeta, address string, items []OrderLineItem) (Order, error) {
	o, err := NewOrder(buyerID, buyer, address, items, m.now())
	if err != nil {
		return Order{}, err
	}
	m.mu.Lock()
	m.byID[o.ID] = o
	m.mu.Unlock()
	return clone(o), nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, orderID string, status Status) (Order, error) {
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byID[orderID]
	if !ok {
		return Order{}, OrderNotFound(orderID)
	}
	o.Status = status
	o.UpdatedAt = m.now()
	m.byID[orderID] = o
	return clone(o), nil
}

func (m *MemoryStore) Get(ctx context.Context, orderID string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.byID[orderID]
	if !ok {
		return Order{}, OrderNotFound(orderID)
	}
	return clone(o), nil
}

func (m *MemoryStore) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return m.filter(func(o Order) bool { return o.BuyerID == buyerID }), nil
}

func (m *MemoryStore) ListBySeller(ctx context.Context, sellerID string) ([]Order, error) {
	return m.filter(func(o Order) bool {
		for _, it := range o.Items {
			if it.SellerID == sellerID {
				return true
			}
		}
		return false
	}), nil
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]Order, error) {
	return m.filter(func(Order) bool { return true }), nil
}

func (m *MemoryStore) filter(keep func(Order) bool) []Order {
	m.mu.RLock()
	out := []Order{}
	for _, o := range m.byID {
		if keep(o) {
			out = append(out, clone(o))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clone(o Order) Order {
	items := make([]OrderLineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
