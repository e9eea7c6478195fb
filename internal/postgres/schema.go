package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		price_cents INT NOT NULL CHECK (price_cents >= 0),
		discount_price_cents INT NOT NULL DEFAULT 0 CHECK (discount_price_cents >= 0),
		quantity INT NOT NULL CHECK (quantity >= 0),
		availability TEXT NOT NULL DEFAULT 'InStock' CHECK (availability IN ('InStock','OutOfStock','PreOrder')),
		listed_availability TEXT NOT NULL DEFAULT 'InStock' CHECK (listed_availability IN ('InStock','OutOfStock','PreOrder')),
		uploaded_by TEXT NOT NULL,
		clicks BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS listed_availability TEXT NOT NULL DEFAULT 'InStock'`,
	`CREATE INDEX IF NOT EXISTS idx_products_uploaded_by ON products (uploaded_by, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		buyer_name TEXT NOT NULL DEFAULT '',
		buyer_email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		delivery_type TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		total_cents INT NOT NULL CHECK (total_cents >= 0),
		status TEXT NOT NULL CHECK (status IN ('pending','confirmed','shipped','delivered','cancelled')),
		payment_status TEXT NOT NULL CHECK (payment_status IN ('pending','completed','failed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer_created ON orders (buyer_id, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		line_no INT NOT NULL,
		product_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		qty INT NOT NULL CHECK (qty > 0),
		price_cents INT NOT NULL CHECK (price_cents >= 0),
		PRIMARY KEY (order_id, line_no)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_seller ON order_items (seller_id)`,
	// order lines keep no FK to products; the seller snapshot outlives the product
	`CREATE TABLE IF NOT EXISTS product_orders (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL,
		product_id TEXT NOT NULL REFERENCES products(id),
		order_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		buyer_name TEXT NOT NULL DEFAULT '',
		buyer_email TEXT NOT NULL DEFAULT '',
		qty INT NOT NULL CHECK (qty > 0),
		unit_price_cents INT NOT NULL CHECK (unit_price_cents >= 0),
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_orders_order ON product_orders (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_product_orders_product ON product_orders (product_id, seq)`,
}

// EnsureSchema creates the tables the stores expect. Safe to run on every start.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema stmt %d: %w", i, err)
		}
	}
	return nil
}
