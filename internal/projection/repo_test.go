package projection

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPool(t *testing.T) *pgxpool.Pool {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	require.NoError(t, postgres.EnsureSchema(ctx, db))
	t.Cleanup(db.Close)
	return db
}

func TestRepo_AppendFindPropagate(t *testing.T) {
	db := getPool(t)
	ctx := context.Background()
	inv := &inventory.Repo{DB: db}
	r := &Repo{DB: db}

	p, err := inv.Create(ctx, orders.Product{ID: uuid.NewString(), Title: "t", PriceCents: 100, Quantity: 1, UploadedBy: "s"})
	require.NoError(t, err)
	orderID := uuid.NewString()

	first, err := r.AppendEntry(ctx, p.ID, orderID, "b1", 1, 100, orders.BuyerMeta{Name: "Ana"})
	require.NoError(t, err)
	_, err = r.AppendEntry(ctx, p.ID, orderID, "b1", 2, 100, orders.BuyerMeta{Name: "Ana"})
	require.NoError(t, err)

	got, err := r.FindEntry(ctx, p.ID, orderID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	n, err := r.PropagateStatus(ctx, orderID, orders.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	byProduct, err := r.ListByProducts(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, byProduct[p.ID], 2)
	assert.Equal(t, orders.StatusDelivered, byProduct[p.ID][1].Status)

	_, err = r.AppendEntry(ctx, uuid.NewString(), orderID, "b1", 1, 100, orders.BuyerMeta{})
	assert.True(t, errors.Is(err, orders.ErrProductNotFound))

	_, err = r.FindEntry(ctx, p.ID, uuid.NewString())
	assert.True(t, errors.Is(err, orders.ErrProjectionEntryNotFound))
}
