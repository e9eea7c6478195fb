package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/identity"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEvents struct {
	mu      sync.Mutex
	created []string
	changed []orders.Status
}

func (r *recordingEvents) OrderCreated(_ context.Context, o orders.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, o.ID)
}

func (r *recordingEvents) OrderStatusChanged(_ context.Context, o orders.Order, _ orders.Status, _ string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, o.Status)
}

type fixture struct {
	inv    *inventory.Memory
	store  *orders.MemoryStore
	proj   *projection.Memory
	events *recordingEvents
	coord  *Coordinator
}

var (
	buyer   = identity.Identity{ID: "buyer-1", Name: "Ana", Email: "ana@example.com", Role: identity.RoleBuyer}
	sellerA = identity.Identity{ID: "seller-a", Role: identity.RoleSeller}
	sellerB = identity.Identity{ID: "seller-b", Role: identity.RoleSeller}
	admin   = identity.Identity{ID: "root", Role: identity.RoleAdmin}
)

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		inv:    inventory.NewMemory(),
		store:  orders.NewMemoryStore(),
		proj:   projection.NewMemory(),
		events: &recordingEvents{},
	}
	f.proj.Exists = func(ctx context.Context, id string) bool {
		_, err := f.inv.Get(ctx, id)
		return err == nil
	}
	f.coord = New(f.inv, f.store, f.proj, f.events, nil, opts)

	for _, p := range []orders.Product{
		{ID: "p1", Title: "Kopi", PriceCents: 1000, Quantity: 10, UploadedBy: sellerA.ID},
		{ID: "p2", Title: "Teh", PriceCents: 500, DiscountPriceCents: 400, Quantity: 5, UploadedBy: sellerB.ID},
		{ID: "p3", Title: "Gula", PriceCents: 200, Quantity: 1, UploadedBy: sellerB.ID},
	} {
		_, err := f.inv.Create(context.Background(), p)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) qty(t *testing.T, id string) int {
	t.Helper()
	p, err := f.inv.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) place(t *testing.T, lines ...orders.LineInput) orders.Order {
	t.Helper()
	o, err := f.coord.CreateOrder(context.Background(), buyer.ID, "Jl. Sudirman 5", lines, orders.BuyerMeta{Name: buyer.Name, Email: buyer.Email})
	require.NoError(t, err)
	return o
}

func TestCreateOrder_TotalsAndProjection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Rollback: true})

	o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 2}, orders.LineInput{ProductID: "p2", Qty: 1})

	assert.Equal(t, 2*1000+400, o.TotalCents)
	assert.Equal(t, 8, f.qty(t, "p1"))
	assert.Equal(t, 4, f.qty(t, "p2"))

	for _, pid := range []string{"p1", "p2"} {
		byProduct, err := f.proj.ListByProducts(ctx, []string{pid})
		require.NoError(t, err)
		require.Len(t, byProduct[pid], 1, pid)
		assert.Equal(t, o.ID, byProduct[pid][0].OrderID)
		assert.Equal(t, buyer.ID, byProduct[pid][0].BuyerID)
	}
	assert.Equal(t, []string{o.ID}, f.events.created)

	got, err := f.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, orders.PaymentPending, got.PaymentStatus)
	assert.Equal(t, sellerA.ID, got.Items[0].SellerID)
}

func TestCreateOrder_RejectsBeforeTouchingStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Rollback: true})

	_, err := f.coord.CreateOrder(ctx, buyer.ID, "addr", nil, orders.BuyerMeta{})
	assert.True(t, errors.Is(err, orders.ErrEmptyOrder))

	_, err = f.coord.CreateOrder(ctx, buyer.ID, "  ", []orders.LineInput{{ProductID: "p1", Qty: 1}}, orders.BuyerMeta{})
	assert.True(t, errors.Is(err, orders.ErrMissingAddress))

	_, err = f.coord.CreateOrder(ctx, buyer.ID, "addr", []orders.LineInput{{ProductID: "p1", Qty: 1}, {Qty: 1}}, orders.BuyerMeta{})
	assert.True(t, errors.Is(err, orders.ErrProductNotFound))

	_, err = f.coord.CreateOrder(ctx, buyer.ID, "addr", []orders.LineInput{{ProductID: "p1", Qty: 0}}, orders.BuyerMeta{})
	assert.True(t, errors.Is(err, orders.ErrInvalidQuantity))

	assert.Equal(t, 10, f.qty(t, "p1"))
	all, err := f.store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.created)
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Rollback: true})

	_, err := f.coord.CreateOrder(ctx, buyer.ID, "addr",
		[]orders.LineInput{{ProductID: "p1", Qty: 2}, {ProductID: "p3", Qty: 5}}, orders.BuyerMeta{})
	var se *orders.InsufficientStockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "p3", se.ProductID)

	assert.Equal(t, 10, f.qty(t, "p1"))
	assert.Equal(t, 1, f.qty(t, "p3"))
	all, _ := f.store.ListAll(ctx)
	assert.Empty(t, all)
}

func TestCreateOrder_WithoutRollbackKeepsEarlierDecrements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Rollback: false})

	_, err := f.coord.CreateOrder(ctx, buyer.ID, "addr",
		[]orders.LineInput{{ProductID: "p1", Qty: 2}, {ProductID: "ghost", Qty: 1}}, orders.BuyerMeta{})
	assert.True(t, errors.Is(err, orders.ErrProductNotFound))

	assert.Equal(t, 8, f.qty(t, "p1"))
	all, _ := f.store.ListAll(ctx)
	assert.Empty(t, all, "no order is written")
}

// ctxLedger fails like a pgx-backed ledger does once its context is done.
type ctxLedger struct{ *inventory.Memory }

func (l ctxLedger) Release(ctx context.Context, productID string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Memory.Release(ctx, productID, qty)
}

// timeoutStore cancels the request and fails the write, the way a deadline hit mid-insert looks.
type timeoutStore struct {
	*orders.MemoryStore
	cancel context.CancelFunc
}

func (s timeoutStore) Create(context.Context, string, orders.BuyerMeta, string, []orders.OrderLineItem) (orders.Order, error) {
	s.cancel()
	return orders.Order{}, context.DeadlineExceeded
}

func TestCreateOrder_ReleasesStockAfterRequestContextEnds(t *testing.T) {
	f := newFixture(t, Options{Rollback: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := timeoutStore{MemoryStore: f.store, cancel: cancel}
	coord := New(ctxLedger{f.inv}, store, f.proj, f.events, nil, Options{Rollback: true})

	_, err := coord.CreateOrder(ctx, buyer.ID, "addr",
		[]orders.LineInput{{ProductID: "p1", Qty: 3}, {ProductID: "p2", Qty: 2}}, orders.BuyerMeta{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Error(t, ctx.Err())

	assert.Equal(t, 10, f.qty(t, "p1"))
	assert.Equal(t, 5, f.qty(t, "p2"))
	all, _ := f.store.ListAll(context.Background())
	assert.Empty(t, all)
	assert.Empty(t, f.events.created)
}

func TestCreateOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t, Options{Rollback: true})

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.CreateOrder(context.Background(), buyer.ID, "addr",
				[]orders.LineInput{{ProductID: "p2", Qty: 1}}, orders.BuyerMeta{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, orders.ErrInsufficientStock), "unexpected: %v", err)
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 0, f.qty(t, "p2"))
}

func TestUpdateOrderStatus_PropagatesToEveryEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Rollback: true})
	o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1}, orders.LineInput{ProductID: "p2", Qty: 2})

	ch, err := f.coord.UpdateOrderStatus(ctx, o.ID, "delivered", admin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, ch.Order.Status)
	assert.Equal(t, orders.StatusPending, ch.Previous)
	assert.Equal(t, len(o.Items), ch.Propagated)

	entries, err := f.proj.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, orders.StatusDelivered, e.Status)
	}
	assert.Equal(t, o.TotalCents, ch.Order.TotalCents)
	assert.Equal(t, []orders.Status{orders.StatusDelivered}, f.events.changed)
}

func TestUpdateOrderStatus_InvalidStatusMutatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Rollback: true})
	o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1})

	_, err := f.coord.UpdateOrderStatus(ctx, o.ID, "shipped-twice", admin)
	assert.True(t, errors.Is(err, orders.ErrInvalidStatus))

	got, err := f.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	e, err := f.proj.FindEntry(ctx, "p1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, e.Status)
	assert.Empty(t, f.events.changed)
}

func TestUpdateOrderStatus_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Rollback: true, EnforceTransitions: true})
	o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1})

	first, err := f.coord.UpdateOrderStatus(ctx, o.ID, "shipped", sellerA)
	require.NoError(t, err)
	second, err := f.coord.UpdateOrderStatus(ctx, o.ID, "shipped", sellerA)
	require.NoError(t, err)

	assert.Equal(t, first.Order.Status, second.Order.Status)
	assert.Equal(t, first.Order.Items, second.Order.Items)
	assert.Equal(t, first.Order.TotalCents, second.Order.TotalCents)
	e, err := f.proj.FindEntry(ctx, "p1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, e.Status)
}

func TestUpdateOrderStatus_UnknownOrder(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.coord.UpdateOrderStatus(context.Background(), "missing", "shipped", admin)
	assert.True(t, errors.Is(err, orders.ErrOrderNotFound))
}

func TestUpdateOrderStatus_Policies(t *testing.T) {
	ctx := context.Background()

	t.Run("seller scoped", func(t *testing.T) {
		f := newFixture(t, Options{Policy: PolicySellerScoped})
		o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1})

		_, err := f.coord.UpdateOrderStatus(ctx, o.ID, "confirmed", sellerB)
		assert.True(t, errors.Is(err, orders.ErrForbidden))
		_, err = f.coord.UpdateOrderStatus(ctx, o.ID, "confirmed", buyer)
		assert.True(t, errors.Is(err, orders.ErrForbidden))

		got, _ := f.store.Get(ctx, o.ID)
		assert.Equal(t, orders.StatusPending, got.Status)

		_, err = f.coord.UpdateOrderStatus(ctx, o.ID, "confirmed", sellerA)
		assert.NoError(t, err)
		_, err = f.coord.UpdateOrderStatus(ctx, o.ID, "shipped", admin)
		assert.NoError(t, err)
	})

	t.Run("open", func(t *testing.T) {
		f := newFixture(t, Options{Policy: PolicyUnrestricted})
		o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1})

		ch, err := f.coord.UpdateOrderStatus(ctx, o.ID, "cancelled", buyer)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusCancelled, ch.Order.Status)
	})
}

func TestUpdateOrderStatus_BackwardsAllowedUnlessEnforced(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, Options{})
	o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1})
	_, err := f.coord.UpdateOrderStatus(ctx, o.ID, "delivered", admin)
	require.NoError(t, err)
	ch, err := f.coord.UpdateOrderStatus(ctx, o.ID, "pending", admin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, ch.Order.Status)

	strict := newFixture(t, Options{EnforceTransitions: true})
	o = strict.place(t, orders.LineInput{ProductID: "p1", Qty: 1})
	_, err = strict.coord.UpdateOrderStatus(ctx, o.ID, "delivered", admin)
	require.NoError(t, err)
	_, err = strict.coord.UpdateOrderStatus(ctx, o.ID, "pending", admin)
	assert.True(t, errors.Is(err, orders.ErrInvalidTransition))
	got, _ := strict.store.Get(ctx, o.ID)
	assert.Equal(t, orders.StatusDelivered, got.Status)
}

func TestUpdateOrderStatus_MissingProjectionEntryStillUpdatesOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	o, err := f.store.Create(ctx, buyer.ID, orders.BuyerMeta{}, "addr",
		[]orders.OrderLineItem{{ProductID: "p1", SellerID: sellerA.ID, Qty: 1, UnitPriceCents: 1000}})
	require.NoError(t, err)

	ch, err := f.coord.UpdateOrderStatus(ctx, o.ID, "shipped", admin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, ch.Order.Status)
	assert.Zero(t, ch.Propagated)

	res, err := f.coord.Reconcile(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, projection.ReconcileResult{Appended: 1, Updated: 1}, res)
	e, err := f.proj.FindEntry(ctx, "p1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, e.Status)
}

func TestUpdateProductOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1}, orders.LineInput{ProductID: "p2", Qty: 1})

	_, err := f.coord.UpdateProductOrderStatus(ctx, "ghost", o.ID, "shipped", sellerA)
	assert.True(t, errors.Is(err, orders.ErrProductNotFound))

	_, err = f.coord.UpdateProductOrderStatus(ctx, "p3", o.ID, "shipped", sellerB)
	assert.True(t, errors.Is(err, orders.ErrProjectionEntryNotFound))

	_, err = f.coord.UpdateProductOrderStatus(ctx, "p1", o.ID, "shipped", sellerB)
	assert.True(t, errors.Is(err, orders.ErrForbidden))

	_, err = f.coord.UpdateProductOrderStatus(ctx, "p1", o.ID, "nope", sellerA)
	assert.True(t, errors.Is(err, orders.ErrInvalidStatus))

	ch, err := f.coord.UpdateProductOrderStatus(ctx, "p1", o.ID, "Shipped", sellerA)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, ch.Order.Status)
	assert.Equal(t, 2, ch.Propagated)

	e, err := f.proj.FindEntry(ctx, "p2", o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, e.Status, "other sellers' entries follow the order")
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	o := f.place(t, orders.LineInput{ProductID: "p1", Qty: 1})
	f.place(t, orders.LineInput{ProductID: "p2", Qty: 1})

	mine, err := f.coord.OrdersForBuyer(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	sold, err := f.coord.OrdersForSeller(ctx, sellerA.ID)
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, o.ID, sold[0].ID)

	_, err = f.coord.AllOrders(ctx, sellerA)
	assert.True(t, errors.Is(err, orders.ErrForbidden))
	all, err := f.coord.AllOrders(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.coord.Order(ctx, o.ID, buyer)
	assert.NoError(t, err)
	_, err = f.coord.Order(ctx, o.ID, sellerA)
	assert.NoError(t, err)
	_, err = f.coord.Order(ctx, o.ID, sellerB)
	assert.True(t, errors.Is(err, orders.ErrForbidden))

	ps, err := f.coord.SellerProducts(ctx, sellerB.ID)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	withOrders := map[string]int{}
	for _, p := range ps {
		withOrders[p.ID] = len(p.Orders)
	}
	assert.Equal(t, map[string]int{"p2": 1, "p3": 0}, withOrders)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySellerScoped, p)

	p, err = ParsePolicy("OPEN")
	require.NoError(t, err)
	assert.Equal(t, PolicyUnrestricted, p)

	_, err = ParsePolicy("anyone")
	assert.Error(t, err)
}
