package projection

import (
	"context"
	"log/slog"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type ReconcileResult struct {
	Appended int `json:"appended"`
	Updated  int `json:"updated"`
}

// Reconciler rebuilds projection entries from the order aggregate. It only appends
// missing entries and re-applies the order's status; it never removes entries.
type Reconciler struct {
	Orders     orders.Store
	Projection Store
	Log        *slog.Logger
}

func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (ReconcileResult, error) {
	var res ReconcileResult

	o, err := r.Orders.Get(ctx, orderID)
	if err != nil {
		return res, err
	}
	existing, err := r.Projection.ListByOrder(ctx, orderID)
	if err != nil {
		return res, err
	}

	have := make(map[string]int, len(existing))
	for _, e := range existing {
		have[e.ProductID]++
	}

	// satu entry per line item; line ke-n untuk produk yg sama butuh entry ke-n
	seen := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		seen[it.ProductID]++
		if seen[it.ProductID] <= have[it.ProductID] {
			continue
		}
		if _, err := r.Projection.AppendEntry(ctx, it.ProductID, o.ID, o.BuyerID, it.Qty, it.UnitPriceCents, o.Buyer); err != nil {
			return res, err
		}
		res.Appended++
	}

	res.Updated, err = r.Projection.PropagateStatus(ctx, o.ID, o.Status)
	if err != nil {
		return res, err
	}
	if res.Appended > 0 {
		r.log().Warn("projection rebuilt", "order_id", o.ID, "appended", res.Appended, "updated", res.Updated)
	}
	return res, nil
}

func (r *Reconciler) log() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}
