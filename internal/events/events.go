// Package events is the in-process notification boundary. Subscribers run
// synchronously on the publishing goroutine, in subscription order.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/safar/tackle-shop/internal/models"
)

type Event interface {
	Name() string
}

type CartChanged struct {
	CustomerID int64
	ItemCount  int
}

type OrderPlaced struct {
	Order *models.Order
}

type OrderStatusChanged struct {
	OrderNumber string
	From        models.OrderStatus
	To          models.OrderStatus
	Role        models.Role
	ActorID     int64
	At          time.Time
}

func (CartChanged) Name() string        { return "cart.changed" }
func (OrderPlaced) Name() string        { return "order.placed" }
func (OrderStatusChanged) Name() string { return "order.status_changed" }

type Handler func(ctx context.Context, e Event)

type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
}

// BadgeCounter keeps the latest cart item count per customer, for the
// cart badge endpoint.
type BadgeCounter struct {
	mu     sync.RWMutex
	counts map[int64]int
}

func NewBadgeCounter() *BadgeCounter {
	return &BadgeCounter{counts: make(map[int64]int)}
}

func (c *BadgeCounter) Handle(_ context.Context, e Event) {
	changed, ok := e.(CartChanged)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[changed.CustomerID] = changed.ItemCount
}

// Count returns the last published count; ok is false if none was seen.
func (c *BadgeCounter) Count(customerID int64) (n int, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok = c.counts[customerID]
	return n, ok
}
