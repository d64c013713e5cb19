package shop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/safar/tackle-shop/internal/events"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/safar/tackle-shop/internal/store/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

type fixture struct {
	svc      *Service
	store    *memstore.Store
	bus      *events.Bus
	received []events.Event
	customer *models.User
	staff    Actor
	productA *models.Product
	productB *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{store: memstore.New(), bus: events.NewBus()}
	f.customer = f.store.AddUser(models.User{Email: "ana@example.com", Role: models.RoleCustomer})
	staff := f.store.AddUser(models.User{Email: "bo@example.com", Role: models.RoleStaff, StoreID: 1})
	f.staff = Actor{UserID: staff.ID, Role: models.RoleStaff}
	f.productA = f.store.AddProduct(models.Product{
		SKU: "REEL-1", Name: "Baitcasting Reel", Price: decimal.NewFromInt(299),
		StockQuantity: 10, Category: "reels", StoreID: 1, SupplierID: 10,
	})
	f.productB = f.store.AddProduct(models.Product{
		SKU: "LURE-1", Name: "Soft Lure", Price: decimal.NewFromInt(15),
		StockQuantity: 10, Category: "lures", StoreID: 1, SupplierID: 20,
	})

	var mu sync.Mutex
	f.bus.Subscribe(func(_ context.Context, e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		f.received = append(f.received, e)
	})

	f.svc = f.newService(f.store, f.store)
	return f
}

func (f *fixture) newService(carts CartStore, orders OrderStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(f.store, carts, orders, f.bus, logger)
}

func (f *fixture) names() []string {
	out := make([]string, len(f.received))
	for i, e := range f.received {
		out[i] = e.Name()
	}
	return out
}

// failingCarts loads from the underlying store but refuses to save.
type failingCarts struct {
	*memstore.Store
}

func (failingCarts) SaveCart(context.Context, int64, []models.CartLine) error {
	return errDiskFull
}

// failingOrders refuses to store new orders.
type failingOrders struct {
	*memstore.Store
}

func (failingOrders) SaveOrder(context.Context, *models.Order) error {
	return errDiskFull
}

// rendezvousOrders holds every LoadOrder until n callers have read, so
// concurrent transitions all start from the same status.
type rendezvousOrders struct {
	*memstore.Store
	wg sync.WaitGroup
}

func newRendezvous(s *memstore.Store, n int) *rendezvousOrders {
	r := &rendezvousOrders{Store: s}
	r.wg.Add(n)
	return r
}

func (r *rendezvousOrders) LoadOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	o, err := r.Store.LoadOrder(ctx, orderNumber)
	r.wg.Done()
	r.wg.Wait()
	return o, err
}

func TestAddItemAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 1)
	require.NoError(t, err)

	snap, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 2)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 3, snap.Lines[0].Quantity)
	assert.Equal(t, "897.00", models.FormatMoney(snap.Total))

	stored, err := f.svc.Cart(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Lines, stored.Lines)
	assert.True(t, snap.Total.Equal(stored.Total))

	assert.Equal(t, []string{"cart.changed", "cart.changed"}, f.names())
	assert.Equal(t, events.CartChanged{CustomerID: f.customer.ID, ItemCount: 3}, f.received[1])
}

func TestAddItemErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, 4242, 1)
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 0)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = f.svc.SetItemQuantity(ctx, f.customer.ID, f.productA.ID, 2)
	assert.ErrorIs(t, err, models.ErrLineNotFound)

	assert.Empty(t, f.received)
}

func TestRemoveAbsentLineIsQuiet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 1)
	require.NoError(t, err)
	f.received = nil

	snap, err := f.svc.RemoveItem(ctx, f.customer.ID, f.productB.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1)
	assert.Empty(t, f.received)

	snap, err = f.svc.RemoveItem(ctx, f.customer.ID, f.productA.ID)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.Equal(t, []string{"cart.changed"}, f.names())

	_, err = f.svc.ClearCart(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, f.received, 1, "clearing an empty cart publishes nothing")
}

func TestCartSaveFailureKeepsPreviousLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 1)
	require.NoError(t, err)
	f.received = nil

	broken := f.newService(failingCarts{f.store}, f.store)
	snap, err := broken.AddItem(ctx, f.customer.ID, f.productB.ID, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)

	require.Len(t, snap.Lines, 1)
	assert.Equal(t, f.productA.ID, snap.Lines[0].ProductID)
	assert.Empty(t, f.received)

	stored, err := f.svc.Cart(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Lines, stored.Lines)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.customer.ID, f.productB.ID, 2)
	require.NoError(t, err)
	f.received = nil

	o, err := f.svc.Checkout(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.Equal(t, "329.00", models.FormatMoney(o.TotalAmount))
	assert.Len(t, o.Items, 2)

	snap, err := f.svc.Cart(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.True(t, snap.Empty())

	assert.Equal(t, []string{"order.placed", "cart.changed"}, f.names())

	reel, err := f.store.Lookup(ctx, f.productA.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, reel.StockQuantity)

	// later catalog changes never reach a placed order
	require.NoError(t, f.store.SetPrice(f.productA.ID, decimal.NewFromInt(399)))
	stored, err := f.svc.Order(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "329.00", models.FormatMoney(stored.TotalAmount))
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), f.customer.ID)
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Empty(t, f.received)
}

func TestCheckoutFailureLeavesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 1)
	require.NoError(t, err)
	f.received = nil

	broken := f.newService(f.store, failingOrders{f.store})
	_, err = broken.Checkout(ctx, f.customer.ID)
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.Empty(t, f.received)

	snap, err := f.svc.Cart(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 11)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, f.customer.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.NotErrorIs(t, err, models.ErrPersistence)
}

func placeOrder(t *testing.T, f *fixture) *models.Order {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.productA.ID, 1)
	require.NoError(t, err)
	o, err := f.svc.Checkout(ctx, f.customer.ID)
	require.NoError(t, err)
	f.received = nil
	return o
}

func TestTransitionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := placeOrder(t, f)

	_, err := f.svc.TransitionOrder(ctx, o.OrderNumber, models.OrderStatusCompleted, f.staff)
	assert.ErrorIs(t, err, models.ErrIllegalTransition)

	_, err = f.svc.TransitionOrder(ctx, o.OrderNumber, models.OrderStatusCancelled,
		Actor{UserID: f.customer.ID, Role: models.RoleCustomer})
	assert.ErrorIs(t, err, models.ErrIllegalTransition)
	assert.Empty(t, f.received)

	updated, err := f.svc.TransitionOrder(ctx, o.OrderNumber, models.OrderStatusProcessing, f.staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)

	updated, err = f.svc.TransitionOrder(ctx, o.OrderNumber, models.OrderStatusCompleted, f.staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)

	_, err = f.svc.TransitionOrder(ctx, o.OrderNumber, models.OrderStatusCancelled, f.staff)
	assert.ErrorIs(t, err, models.ErrIllegalTransition)

	require.Len(t, f.received, 2)
	changed, ok := f.received[0].(events.OrderStatusChanged)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusPending, changed.From)
	assert.Equal(t, models.OrderStatusProcessing, changed.To)
	assert.Equal(t, f.staff.UserID, changed.ActorID)

	_, err = f.svc.TransitionOrder(ctx, "ORDER0", models.OrderStatusProcessing, f.staff)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	f := newFixture(t)
	o := placeOrder(t, f)

	svc := f.newService(f.store, newRendezvous(f.store, 2))
	targets := []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusCancelled}
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to models.OrderStatus) {
			defer wg.Done()
			_, errs[i] = svc.TransitionOrder(context.Background(), o.OrderNumber, to, f.staff)
		}(i, to)
	}
	wg.Wait()

	var won, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, models.ErrStaleState):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, stale)

	stored, err := f.svc.Order(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.Len(t, f.received, 1)
}

func TestOrdersScopedByQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeOrder(t, f)

	page, err := f.svc.Orders(ctx, models.OrderQuery{CustomerID: f.customer.ID})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)

	page, err = f.svc.Orders(ctx, models.OrderQuery{SupplierID: 20})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
}

func TestAsPersistence(t *testing.T) {
	err := asPersistence("load", models.ErrOrderNotFound)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
	assert.NotErrorIs(t, err, models.ErrPersistence)

	err = asPersistence("load", errDiskFull)
	var pe *models.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)
	assert.ErrorIs(t, err, errDiskFull)
}
