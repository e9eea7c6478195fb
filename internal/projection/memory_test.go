package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AppendFindPropagate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buyer := orders.BuyerMeta{Name: "Ana", Email: "ana@example.com", Phone: "0812"}

	e, err := m.AppendEntry(ctx, "p1", "o1", "b1", 2, 500, buyer)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, e.Status)
	assert.Equal(t, "Ana", e.Buyer.Name)
	assert.Empty(t, e.Buyer.Phone, "entries carry name and email only")

	_, err = m.AppendEntry(ctx, "p2", "o1", "b1", 1, 300, buyer)
	require.NoError(t, err)
	_, err = m.AppendEntry(ctx, "p1", "o2", "b2", 1, 500, buyer)
	require.NoError(t, err)

	n, err := m.PropagateStatus(ctx, "o1", orders.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := m.FindEntry(ctx, "p1", "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, got.Status)

	other, err := m.FindEntry(ctx, "p1", "o2")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, other.Status)

	_, err = m.FindEntry(ctx, "p2", "o2")
	assert.True(t, errors.Is(err, orders.ErrProjectionEntryNotFound))

	n, err = m.PropagateStatus(ctx, "unknown", orders.StatusShipped)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemory_FindEntryReturnsFirstOfDuplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	first, err := m.AppendEntry(ctx, "p1", "o1", "b1", 1, 100, orders.BuyerMeta{})
	require.NoError(t, err)
	_, err = m.AppendEntry(ctx, "p1", "o1", "b1", 4, 100, orders.BuyerMeta{})
	require.NoError(t, err)

	got, err := m.FindEntry(ctx, "p1", "o1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	n, err := m.PropagateStatus(ctx, "o1", orders.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemory_ExistsGuard(t *testing.T) {
	m := NewMemory()
	m.Exists = func(_ context.Context, id string) bool { return id == "p1" }

	_, err := m.AppendEntry(context.Background(), "p9", "o1", "b1", 1, 100, orders.BuyerMeta{})
	assert.True(t, errors.Is(err, orders.ErrProductNotFound))

	byProduct, err := m.ListByProducts(context.Background(), []string{"p1", "p9"})
	require.NoError(t, err)
	assert.Empty(t, byProduct)
}
