package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Catalog = (*Repo)(nil)

// Kurangi stok hanya kalau cukup; satu statement supaya tidak ada celah read-then-write.
const reserveSQL = `
	UPDATE products
	SET quantity = quantity - $2,
	    availability = CASE WHEN quantity - $2 = 0 THEN 'OutOfStock' ELSE availability END,
	    updated_at = now()
	WHERE id = $1 AND quantity >= $2
	RETURNING uploaded_by, price_cents, discount_price_cents, quantity`

const productColumns = `id, title, price_cents, discount_price_cents, quantity, availability,
	listed_availability, uploaded_by, clicks, created_at, updated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repo) CheckAndReserve(ctx context.Context, productID string, qty int) (Reservation, error) {
	if err := checkQty(qty); err != nil {
		return Reservation{}, err
	}
	return reserve(ctx, r.DB, productID, qty)
}

// ReserveAll: kurangi stok semua item dalam satu transaksi.
// Jika ada kekurangan pada salah satu item, tidak ada perubahan yg di-commit (rollback).
func (r *Repo) ReserveAll(ctx context.Context, lines []orders.LineInput) ([]Reservation, error) {
	for _, l := range lines {
		if err := checkQty(l.Qty); err != nil {
			return nil, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// kunci baris selalu dalam urutan product id supaya dua checkout dengan urutan item
	// berbeda tidak saling tunggu (deadlock); hasil tetap mengikuti urutan caller
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return lines[idx[a]].ProductID < lines[idx[b]].ProductID })

	out := make([]Reservation, len(lines))
	for _, i := range idx {
		res, err := reserve(ctx, tx, lines[i].ProductID, lines[i].Qty)
		if err != nil {
			return nil, err // rollback via defer
		}
		out[i] = res
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func reserve(ctx context.Context, q querier, productID string, qty int) (Reservation, error) {
	res := Reservation{ProductID: productID, Qty: qty}
	var price, discount int
	err := q.QueryRow(ctx, reserveSQL, productID, qty).Scan(&res.SellerID, &price, &discount, &res.Remaining)
	if err == nil {
		res.UnitPriceCents = orders.Product{PriceCents: price, DiscountPriceCents: discount}.UnitPriceCents()
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, fmt.Errorf("reserve %s: %w", productID, err)
	}

	// tidak ada baris ter-update: produk tidak ada atau stok kurang
	var available int
	err = q.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, orders.ProductNotFound(productID)
	}
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{}, &orders.InsufficientStockError{ProductID: productID, Required: qty, Available: available}
}

func (r *Repo) Release(ctx context.Context, productID string, qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    availability = CASE
		        WHEN availability <> 'OutOfStock' THEN availability
		        WHEN listed_availability = 'PreOrder' THEN 'PreOrder'
		        ELSE 'InStock' END,
		    updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ProductNotFound(productID)
	}
	return nil
}

func (r *Repo) SnapshotPrice(ctx context.Context, productID string) (int, error) {
	p, err := r.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.UnitPriceCents(), nil
}

func (r *Repo) Get(ctx context.Context, productID string) (orders.Product, error) {
	return r.one(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
}

func (r *Repo) View(ctx context.Context, productID string) (orders.Product, error) {
	return r.one(ctx, `UPDATE products SET clicks = clicks + 1 WHERE id = $1 RETURNING `+productColumns, productID)
}

func (r *Repo) Create(ctx context.Context, p orders.Product) (orders.Product, error) {
	p, err := Normalize(p)
	if err != nil {
		return orders.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return r.one(ctx, `
		INSERT INTO products(id, title, price_cents, discount_price_cents, quantity, availability, listed_availability, uploaded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+productColumns,
		p.ID, p.Title, p.PriceCents, p.DiscountPriceCents, p.Quantity, p.Availability, p.ListedAvailability, p.UploadedBy)
}

func (r *Repo) List(ctx context.Context, popular bool) ([]orders.Product, error) {
	order := "created_at DESC"
	if popular {
		order = "clicks DESC, created_at DESC"
	}
	return r.many(ctx, `SELECT `+productColumns+` FROM products ORDER BY `+order)
}

func (r *Repo) ListBySeller(ctx context.Context, sellerID string) ([]orders.Product, error) {
	return r.many(ctx, `SELECT `+productColumns+` FROM products WHERE uploaded_by = $1 ORDER BY created_at DESC`, sellerID)
}

func (r *Repo) one(ctx context.Context, query string, args ...any) (orders.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ProductNotFound(fmt.Sprint(args[0]))
	}
	return p, err
}

func (r *Repo) many(ctx context.Context, query string, args ...any) ([]orders.Product, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Title, &p.PriceCents, &p.DiscountPriceCents, &p.Quantity, &p.Availability,
		&p.ListedAvailability, &p.UploadedBy, &p.Clicks, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
