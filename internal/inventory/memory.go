package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
)

// Memory is the in-process ledger. Every mutation happens under one lock, which gives
// the same all-or-nothing guarantee as the conditional UPDATE in Repo.
type Memory struct {
	mu       sync.Mutex
	products map[string]orders.Product
}

var _ Catalog = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{products: make(map[string]orders.Product)}
}

func (m *Memory) CheckAndReserve(ctx context.Context, productID string, qty int) (Reservation, error) {
	if err := checkQty(qty); err != nil {
		return Reservation{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserveLocked(productID, qty)
}

func (m *Memory) ReserveAll(ctx context.Context, lines []orders.LineInput) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// validasi dulu seluruh item (akumulasi per produk), baru kurangi
	demand := make(map[string]int, len(lines))
	for _, l := range lines {
		if err := checkQty(l.Qty); err != nil {
			return nil, err
		}
		p, ok := m.products[l.ProductID]
		if !ok {
			return nil, orders.ProductNotFound(l.ProductID)
		}
		demand[l.ProductID] += l.Qty
		if p.Quantity < demand[l.ProductID] {
			return nil, &orders.InsufficientStockError{
				ProductID: l.ProductID,
				Required:  l.Qty,
				Available: p.Quantity - (demand[l.ProductID] - l.Qty),
			}
		}
	}

	out := make([]Reservation, 0, len(lines))
	for _, l := range lines {
		res, err := m.reserveLocked(l.ProductID, l.Qty)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (m *Memory) reserveLocked(productID string, qty int) (Reservation, error) {
	p, ok := m.products[productID]
	if !ok {
		return Reservation{}, orders.ProductNotFound(productID)
	}
	if p.Quantity < qty {
		return Reservation{}, &orders.InsufficientStockError{ProductID: productID, Required: qty, Available: p.Quantity}
	}
	p.Quantity -= qty
	if p.Quantity == 0 {
		p.Availability = orders.OutOfStock
	}
	p.UpdatedAt = time.Now().UTC()
	m.products[productID] = p
	return Reservation{
		ProductID:      productID,
		SellerID:       p.UploadedBy,
		Qty:            qty,
		UnitPriceCents: p.UnitPriceCents(),
		Remaining:      p.Quantity,
	}, nil
}

func (m *Memory) Release(ctx context.Context, productID string, qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return orders.ProductNotFound(productID)
	}
	p.Quantity += qty
	if p.Availability == orders.OutOfStock {
		p.Availability = p.RestockAvailability()
	}
	p.UpdatedAt = time.Now().UTC()
	m.products[productID] = p
	return nil
}

func (m *Memory) SnapshotPrice(ctx context.Context, productID string) (int, error) {
	p, err := m.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.UnitPriceCents(), nil
}

func (m *Memory) Get(ctx context.Context, productID string) (orders.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return orders.Product{}, orders.ProductNotFound(productID)
	}
	return p, nil
}

func (m *Memory) View(ctx context.Context, productID string) (orders.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return orders.Product{}, orders.ProductNotFound(productID)
	}
	p.Clicks++
	m.products[productID] = p
	return p, nil
}

func (m *Memory) Create(ctx context.Context, p orders.Product) (orders.Product, error) {
	p, err := Normalize(p)
	if err != nil {
		return orders.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	m.mu.Lock()
	m.products[p.ID] = p
	m.mu.Unlock()
	return p, nil
}

func (m *Memory) List(ctx context.Context, popular bool) ([]orders.Product, error) {
	out := m.filter(func(orders.Product) bool { return true })
	if popular {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Clicks > out[j].Clicks })
	}
	return out, nil
}

func (m *Memory) ListBySeller(ctx context.Context, sellerID string) ([]orders.Product, error) {
	return m.filter(func(p orders.Product) bool { return p.UploadedBy == sellerID }), nil
}

func (m *Memory) filter(keep func(orders.Product) bool) []orders.Product {
	m.mu.Lock()
	out := []orders.Product{}
	for _, p := range m.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
