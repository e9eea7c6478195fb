// Package lifecycle coordinates checkout and status changes across the inventory ledger,
// the order aggregate, and the per-product order projection.
//
// The order aggregate is authoritative. Projection writes that fail are logged and left
// for the reconciler; they never fail the caller's request.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/identity"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/projection"
)

type Policy string

const (
	// PolicySellerScoped lets only a seller of one of the order's products (or an admin) change status.
	PolicySellerScoped Policy = "seller"
	// PolicyUnrestricted lets any authenticated caller change status.
	PolicyUnrestricted Policy = "open"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySellerScoped, PolicyUnrestricted:
		return p, nil
	case "":
		return PolicySellerScoped, nil
	default:
		return "", fmt.Errorf("unknown status policy %q", s)
	}
}

type Options struct {
	Policy             Policy
	EnforceTransitions bool
	// Rollback reserves all lines or none. When false, lines reserved before a
	// failing line keep their decrement.
	Rollback bool
}

type Coordinator struct {
	inv    inventory.Catalog
	orders orders.Store
	proj   projection.Store
	events orders.Events
	rec    *projection.Reconciler
	log    *slog.Logger
	opts   Options
}

func New(inv inventory.Catalog, store orders.Store, proj projection.Store, events orders.Events, log *slog.Logger, opts Options) *Coordinator {
	if events == nil {
		events = orders.NopEvents{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Policy == "" {
		opts.Policy = PolicySellerScoped
	}
	return &Coordinator{
		inv:    inv,
		orders: store,
		proj:   proj,
		events: events,
		rec:    &projection.Reconciler{Orders: store, Projection: proj, Log: log},
		log:    log,
		opts:   opts,
	}
}

// CreateOrder reserves stock for every line, records the order, then appends one
// projection entry per line item.
func (c *Coordinator) CreateOrder(ctx context.Context, buyerID, address string, lines []orders.LineInput, meta orders.BuyerMeta) (orders.Order, error) {
	if len(lines) == 0 {
		return orders.Order{}, orders.ErrEmptyOrder
	}
	if strings.TrimSpace(address) == "" {
		return orders.Order{}, orders.ErrMissingAddress
	}
	for i, l := range lines {
		if l.ProductID == "" {
			return orders.Order{}, fmt.Errorf("%w: line %d has no productId", orders.ErrProductNotFound, i)
		}
		if l.Qty < 1 {
			return orders.Order{}, fmt.Errorf("%w: product %s quantity %d", orders.ErrInvalidQuantity, l.ProductID, l.Qty)
		}
	}

	reserved, err := c.reserve(ctx, lines)
	if err != nil {
		return orders.Order{}, err
	}

	items := make([]orders.OrderLineItem, 0, len(reserved))
	for _, r := range reserved {
		items = append(items, orders.OrderLineItem{
			ProductID:      r.ProductID,
			SellerID:       r.SellerID,
			Qty:            r.Qty,
			UnitPriceCents: r.UnitPriceCents,
		})
	}

	o, err := c.orders.Create(ctx, buyerID, meta, address, items)
	if err != nil {
		if c.opts.Rollback {
			// request ctx bisa sudah habis (timeout/disconnect); kompensasi tetap harus jalan
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			c.release(rctx, reserved)
			cancel()
		}
		return orders.Order{}, fmt.Errorf("create order: %w", err)
	}

	for _, it := range o.Items {
		if _, err := c.proj.AppendEntry(ctx, it.ProductID, o.ID, o.BuyerID, it.Qty, it.UnitPriceCents, meta); err != nil {
			c.log.Warn("projection append failed", "order_id", o.ID, "product_id", it.ProductID, "err", err)
		}
	}

	c.events.OrderCreated(ctx, o)
	c.log.Info("order created", "order_id", o.ID, "buyer_id", buyerID, "items", len(o.Items), "total_cents", o.TotalCents)
	return o, nil
}

func (c *Coordinator) reserve(ctx context.Context, lines []orders.LineInput) ([]inventory.Reservation, error) {
	if c.opts.Rollback {
		return c.inv.ReserveAll(ctx, lines)
	}

	out := make([]inventory.Reservation, 0, len(lines))
	for i, l := range lines {
		r, err := c.inv.CheckAndReserve(ctx, l.ProductID, l.Qty)
		if err != nil {
			if i > 0 {
				c.log.Warn("reservation failed mid-order; earlier lines keep their decrement",
					"product_id", l.ProductID, "reserved_lines", i, "err", err)
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

const releaseTimeout = 5 * time.Second

func (c *Coordinator) release(ctx context.Context, reserved []inventory.Reservation) {
	for _, r := range reserved {
		if err := c.inv.Release(ctx, r.ProductID, r.Qty); err != nil {
			c.log.Error("stock release failed", "product_id", r.ProductID, "qty", r.Qty, "err", err)
		}
	}
}

type StatusChange struct {
	Order      orders.Order
	Previous   orders.Status
	Propagated int
}

// UpdateOrderStatus writes the new status to the order and fans it out to every
// projection entry carrying the order id.
func (c *Coordinator) UpdateOrderStatus(ctx context.Context, orderID, status string, actor identity.Identity) (StatusChange, error) {
	st, err := orders.ParseStatus(status)
	if err != nil {
		return StatusChange{}, err
	}
	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return StatusChange{}, err
	}
	if err := c.authorizeOrder(ctx, o, actor); err != nil {
		return StatusChange{}, err
	}
	return c.apply(ctx, o, st, actor)
}

// UpdateProductOrderStatus is the seller-facing variant addressed through one product's
// order entry. It still updates the order aggregate and every entry of that order.
func (c *Coordinator) UpdateProductOrderStatus(ctx context.Context, productID, orderID, status string, actor identity.Identity) (StatusChange, error) {
	st, err := orders.ParseStatus(status)
	if err != nil {
		return StatusChange{}, err
	}
	p, err := c.inv.Get(ctx, productID)
	if err != nil {
		return StatusChange{}, err
	}
	if _, err := c.proj.FindEntry(ctx, productID, orderID); err != nil {
		return StatusChange{}, err
	}
	if !c.privileged(actor) && p.UploadedBy != actor.ID {
		return StatusChange{}, fmt.Errorf("%w: product %s is not yours", orders.ErrForbidden, productID)
	}
	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return StatusChange{}, err
	}
	if !o.HasProduct(productID) {
		c.log.Warn("projection entry has no matching line item", "order_id", orderID, "product_id", productID)
	}
	return c.apply(ctx, o, st, actor)
}

func (c *Coordinator) apply(ctx context.Context, o orders.Order, st orders.Status, actor identity.Identity) (StatusChange, error) {
	if c.opts.EnforceTransitions && !orders.CanTransition(o.Status, st) {
		if o.Status.Terminal() {
			return StatusChange{}, fmt.Errorf("%w: order is already %s", orders.ErrInvalidTransition, o.Status)
		}
		return StatusChange{}, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, o.Status, st)
	}

	updated, err := c.orders.UpdateStatus(ctx, o.ID, st)
	if err != nil {
		return StatusChange{}, err
	}
	change := StatusChange{Order: updated, Previous: o.Status}

	n, err := c.proj.PropagateStatus(ctx, o.ID, st)
	switch {
	case err != nil:
		c.log.Warn("status propagation failed", "order_id", o.ID, "status", st, "err", err)
	case n < len(updated.Items):
		c.log.Warn(orders.ErrProjectionEntryNotFound.Error(), "order_id", o.ID, "status", st,
			"matched", n, "line_items", len(updated.Items))
	}
	change.Propagated = n

	c.events.OrderStatusChanged(ctx, updated, o.Status, actor.ID, n)
	c.log.Info("order status updated", "order_id", o.ID, "from", o.Status, "to", st, "actor", actor.ID, "propagated", n)
	return change, nil
}

func (c *Coordinator) privileged(actor identity.Identity) bool {
	return actor.IsAdmin() || c.opts.Policy == PolicyUnrestricted
}

func (c *Coordinator) authorizeOrder(ctx context.Context, o orders.Order, actor identity.Identity) error {
	if c.privileged(actor) {
		return nil
	}
	ok, err := c.sellsIn(ctx, o, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s has none of your products", orders.ErrForbidden, o.ID)
	}
	return nil
}

// sellsIn reports whether sellerID uploaded any product in the order. The line-item
// seller snapshot covers products that no longer exist.
func (c *Coordinator) sellsIn(ctx context.Context, o orders.Order, sellerID string) (bool, error) {
	checked := make(map[string]bool, len(o.Items))
	for _, it := range o.Items {
		if checked[it.ProductID] {
			continue
		}
		checked[it.ProductID] = true
		p, err := c.inv.Get(ctx, it.ProductID)
		switch {
		case errors.Is(err, orders.ErrProductNotFound):
			if it.SellerID == sellerID {
				return true, nil
			}
		case err != nil:
			return false, err
		case p.UploadedBy == sellerID:
			return true, nil
		}
	}
	return false, nil
}

// Reconcile rebuilds the projection of one order from the aggregate.
func (c *Coordinator) Reconcile(ctx context.Context, orderID string) (projection.ReconcileResult, error) {
	return c.rec.Reconcile(ctx, orderID)
}
