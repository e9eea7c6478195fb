package lifecycle

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/identity"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func (c *Coordinator) OrdersForBuyer(ctx context.Context, buyerID string) ([]orders.Order, error) {
	return c.orders.ListByBuyer(ctx, buyerID)
}

func (c *Coordinator) OrdersForSeller(ctx context.Context, sellerID string) ([]orders.Order, error) {
	return c.orders.ListBySeller(ctx, sellerID)
}

func (c *Coordinator) AllOrders(ctx context.Context, actor identity.Identity) ([]orders.Order, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", orders.ErrForbidden)
	}
	return c.orders.ListAll(ctx)
}

// Order returns one order to its buyer, an admin, or a seller of one of its products.
func (c *Coordinator) Order(ctx context.Context, orderID string, actor identity.Identity) (orders.Order, error) {
	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.BuyerID == actor.ID || actor.IsAdmin() {
		return o, nil
	}
	ok, err := c.sellsIn(ctx, o, actor.ID)
	if err != nil {
		return orders.Order{}, err
	}
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: order %s", orders.ErrForbidden, orderID)
	}
	return o, nil
}

type ProductWithOrders struct {
	orders.Product
	Orders []orders.ProductOrderEntry `json:"orders"`
}

// SellerProducts lists the seller's products with their embedded order entries.
func (c *Coordinator) SellerProducts(ctx context.Context, sellerID string) ([]ProductWithOrders, error) {
	ps, err := c.inv.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	entries, err := c.proj.ListByProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ProductWithOrders, 0, len(ps))
	for _, p := range ps {
		e := entries[p.ID]
		if e == nil {
			e = []orders.ProductOrderEntry{}
		}
		out = append(out, ProductWithOrders{Product: p, Orders: e})
	}
	return out, nil
}

// OrderStatus is the status-only lookup behind polling clients.
func (c *Coordinator) OrderStatus(ctx context.Context, orderID string) (orders.Order, error) {
	return c.orders.Get(ctx, orderID)
}

// CreateProduct lists a new product for the acting seller.
func (c *Coordinator) CreateProduct(ctx context.Context, p orders.Product, seller identity.Identity) (orders.Product, error) {
	p.UploadedBy = seller.ID
	return c.inv.Create(ctx, p)
}

func (c *Coordinator) Products(ctx context.Context, popular bool) ([]orders.Product, error) {
	return c.inv.List(ctx, popular)
}

func (c *Coordinator) Product(ctx context.Context, productID string) (orders.Product, error) {
	return c.inv.View(ctx, productID)
}
