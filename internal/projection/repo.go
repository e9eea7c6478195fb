package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const entryColumns = `id, product_id, order_id, buyer_id, buyer_name, buyer_email,
	qty, unit_price_cents, status, created_at`

func (r *Repo) AppendEntry(ctx context.Context, productID, orderID, buyerID string, qty, unitPriceCents int, buyer orders.BuyerMeta) (orders.ProductOrderEntry, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO product_orders(id, product_id, order_id, buyer_id, buyer_name, buyer_email, qty, unit_price_cents, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+entryColumns,
		uuid.NewString(), productID, orderID, buyerID, buyer.Name, buyer.Email, qty, unitPriceCents, orders.StatusPending)
	e, err := scanEntry(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
		return orders.ProductOrderEntry{}, orders.ProductNotFound(productID)
	}
	return e, err
}

func (r *Repo) PropagateStatus(ctx context.Context, orderID string, status orders.Status) (int, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE product_orders SET status = $2 WHERE order_id = $1`, orderID, status)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (r *Repo) FindEntry(ctx context.Context, productID, orderID string) (orders.ProductOrderEntry, error) {
	e, err := scanEntry(r.DB.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM product_orders
		WHERE product_id = $1 AND order_id = $2
		ORDER BY seq LIMIT 1`, productID, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.ProductOrderEntry{}, fmt.Errorf("%w: product %s order %s", orders.ErrProjectionEntryNotFound, productID, orderID)
	}
	return e, err
}

func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]orders.ProductOrderEntry, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+entryColumns+` FROM product_orders WHERE order_id = $1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListByProducts(ctx context.Context, productIDs []string) (map[string][]orders.ProductOrderEntry, error) {
	out := make(map[string][]orders.ProductOrderEntry, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT `+entryColumns+` FROM product_orders WHERE product_id = ANY($1) ORDER BY seq`, productIDs)
	if err != nil {
		return nil, err
	}
	entries, err := collect(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		out[e.ProductID] = append(out[e.ProductID], e)
	}
	return out, nil
}

func collect(rows pgx.Rows) ([]orders.ProductOrderEntry, error) {
	defer rows.Close()
	out := []orders.ProductOrderEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (orders.ProductOrderEntry, error) {
	var e orders.ProductOrderEntry
	err := row.Scan(&e.ID, &e.ProductID, &e.OrderID, &e.BuyerID, &e.Buyer.Name, &e.Buyer.Email,
		&e.Qty, &e.UnitPriceCents, &e.Status, &e.CreatedAt)
	return e, err
}
