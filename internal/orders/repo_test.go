package orders

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepo_CreateGetUpdate(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer db.Close()
	require.NoError(t, postgres.EnsureSchema(ctx, db))

	r := &Repo{DB: db}
	buyerID, sellerID := uuid.NewString(), uuid.NewString()
	o, err := r.Create(ctx, buyerID, BuyerMeta{Name: "Ana", DeliveryType: "pickup"}, "Jl. Merdeka 1", []OrderLineItem{
		{ProductID: "p1", SellerID: sellerID, Qty: 2, UnitPriceCents: 1000},
		{ProductID: "p2", SellerID: "other", Qty: 1, UnitPriceCents: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, 2500, o.TotalCents)

	got, err := r.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "p1", got.Items[0].ProductID)
	assert.Equal(t, "pickup", got.Buyer.DeliveryType)
	assert.Equal(t, StatusPending, got.Status)

	up, err := r.UpdateStatus(ctx, o.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, up.Status)
	assert.Len(t, up.Items, 2)

	mine, err := r.ListByBuyer(ctx, buyerID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	sold, err := r.ListBySeller(ctx, sellerID)
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, o.ID, sold[0].ID)

	_, err = r.Get(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, ErrOrderNotFound))
	_, err = r.UpdateStatus(ctx, uuid.NewString(), StatusShipped)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}
