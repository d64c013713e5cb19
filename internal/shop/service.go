// Package shop ties the cart aggregate, the order factory and the status
// machine to persistence and to the event bus.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safar/tackle-shop/internal/cart"
	"github.com/safar/tackle-shop/internal/catalog"
	"github.com/safar/tackle-shop/internal/events"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/safar/tackle-shop/internal/order"
)

type CartStore interface {
	// LoadCart returns no lines and no error for a customer without a cart.
	LoadCart(ctx context.Context, customerID int64) ([]models.CartLine, error)
	SaveCart(ctx context.Context, customerID int64, lines []models.CartLine) error
}

type OrderStore interface {
	// SaveOrder persists a new order, assigns its ID, decrements stock and
	// empties the customer's saved cart as one unit of work.
	SaveOrder(ctx context.Context, o *models.Order) error
	LoadOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	LoadOrders(ctx context.Context, q models.OrderQuery) (*models.OrderPage, error)
	// UpdateOrderStatus writes to only if the stored status is still from,
	// returning models.ErrStaleState otherwise.
	UpdateOrderStatus(ctx context.Context, orderNumber string, from, to models.OrderStatus) (*models.Order, error)
}

// Actor is whoever triggers an operation.
type Actor struct {
	UserID int64
	Role   models.Role
}

type Service struct {
	catalog catalog.Index
	carts   CartStore
	orders  OrderStore
	factory *order.Factory
	bus     *events.Bus
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(index catalog.Index, carts CartStore, orders OrderStore, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog: index,
		carts:   carts,
		orders:  orders,
		factory: order.NewFactory(),
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) Catalog() catalog.Index {
	return s.catalog
}

func (s *Service) Cart(ctx context.Context, customerID int64) (cart.Snapshot, error) {
	c, err := s.loadCart(ctx, customerID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

func (s *Service) AddItem(ctx context.Context, customerID, productID int64, quantity int) (cart.Snapshot, error) {
	return s.mutateCart(ctx, customerID, func(c *cart.Cart) error {
		return c.Add(ctx, s.catalog, productID, quantity)
	})
}

func (s *Service) SetItemQuantity(ctx context.Context, customerID, productID int64, quantity int) (cart.Snapshot, error) {
	return s.mutateCart(ctx, customerID, func(c *cart.Cart) error {
		return c.SetQuantity(productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, customerID, productID int64) (cart.Snapshot, error) {
	return s.mutateCart(ctx, customerID, func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, customerID int64) (cart.Snapshot, error) {
	return s.mutateCart(ctx, customerID, func(c *cart.Cart) error {
		if !c.Snapshot().Empty() {
			c.Clear()
		}
		return nil
	})
}

// mutateCart applies fn to the customer's cart and saves the result. The
// save and the CartChanged event only happen when fn actually changed the
// cart; a failed save restores the previous lines.
func (s *Service) mutateCart(ctx context.Context, customerID int64, fn func(*cart.Cart) error) (cart.Snapshot, error) {
	c, err := s.loadCart(ctx, customerID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	changed := false
	c.OnChange(func(*cart.Cart) { changed = true })

	before := c.Snapshot()
	if err := fn(c); err != nil {
		return before, err
	}
	if !changed {
		return before, nil
	}

	after := c.Snapshot()
	if err := s.carts.SaveCart(ctx, customerID, after.Lines); err != nil {
		c.Restore(before)
		s.logger.WarnContext(ctx, "cart save failed, restored previous lines",
			"customer_id", customerID, "error", err)
		return before, asPersistence("save cart", err)
	}

	s.bus.Publish(ctx, events.CartChanged{CustomerID: customerID, ItemCount: after.ItemCount()})
	return after, nil
}

func (s *Service) loadCart(ctx context.Context, customerID int64) (*cart.Cart, error) {
	lines, err := s.carts.LoadCart(ctx, customerID)
	if err != nil {
		return nil, asPersistence("load cart", err)
	}
	return cart.FromLines(customerID, lines), nil
}

// Checkout turns the customer's cart into a pending order. The cart is
// emptied only once the order is stored.
func (s *Service) Checkout(ctx context.Context, customerID int64) (*models.Order, error) {
	c, err := s.loadCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	o, err := s.factory.CreateOrder(c.Snapshot())
	if err != nil {
		return nil, err
	}

	if err := s.orders.SaveOrder(ctx, o); err != nil {
		s.logger.WarnContext(ctx, "checkout failed", "customer_id", customerID, "error", err)
		return nil, asPersistence("save order", err)
	}
	c.Clear()

	s.logger.InfoContext(ctx, "order placed",
		"order_number", o.OrderNumber,
		"customer_id", customerID,
		"total", models.FormatMoney(o.TotalAmount),
		"lines", len(o.Items))

	s.bus.Publish(ctx, events.OrderPlaced{Order: o.Clone()})
	s.bus.Publish(ctx, events.CartChanged{CustomerID: customerID, ItemCount: 0})
	return o, nil
}

func (s *Service) Order(ctx context.Context, orderNumber string) (*models.Order, error) {
	o, err := s.orders.LoadOrder(ctx, orderNumber)
	if err != nil {
		return nil, asPersistence("load order", err)
	}
	return o, nil
}

func (s *Service) Orders(ctx context.Context, q models.OrderQuery) (*models.OrderPage, error) {
	page, err := s.orders.LoadOrders(ctx, q)
	if err != nil {
		return nil, asPersistence("load orders", err)
	}
	return page, nil
}

// TransitionOrder moves an order to a new status on behalf of actor. The
// legality check runs against the status read here, and the write is a
// compare-and-swap on that same status.
func (s *Service) TransitionOrder(ctx context.Context, orderNumber string, to models.OrderStatus, actor Actor) (*models.Order, error) {
	current, err := s.orders.LoadOrder(ctx, orderNumber)
	if err != nil {
		return nil, asPersistence("load order", err)
	}

	at := s.now()
	if _, err := order.Transition(current, to, actor.Role, at); err != nil {
		return nil, err
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, orderNumber, current.Status, to)
	if err != nil {
		if errors.Is(err, models.ErrStaleState) {
			s.logger.InfoContext(ctx, "status transition lost race",
				"order_number", orderNumber, "from", current.Status, "to", to, "actor_id", actor.UserID)
		}
		return nil, asPersistence("update order status", err)
	}

	s.logger.InfoContext(ctx, "order status changed",
		"order_number", orderNumber, "from", current.Status, "to", to,
		"role", actor.Role, "actor_id", actor.UserID)

	s.bus.Publish(ctx, events.OrderStatusChanged{
		OrderNumber: orderNumber,
		From:        current.Status,
		To:          to,
		Role:        actor.Role,
		ActorID:     actor.UserID,
		At:          at.UTC(),
	})
	return updated, nil
}

var domainErrors = []error{
	models.ErrPersistence,
	models.ErrProductNotFound,
	models.ErrOrderNotFound,
	models.ErrUserNotFound,
	models.ErrStaleState,
	models.ErrInsufficientStock,
	models.ErrInvalidCursor,
	context.Canceled,
	context.DeadlineExceeded,
}

// asPersistence passes domain errors through and reports anything else as a
// persistence failure.
func asPersistence(op string, err error) error {
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return &models.PersistenceError{Op: op, Err: err}
}
