// Package order turns cart snapshots into orders and governs how an order's
// status may change afterwards.
package order

import (
	"fmt"
	"sync"
	"time"

	"github.com/safar/tackle-shop/internal/cart"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/shopspring/decimal"
)

// NumberGenerator issues ORDER<millis> numbers. Two calls in the same
// millisecond get consecutive values, so numbers never repeat in a process.
type NumberGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *NumberGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("ORDER%d", ms)
}

type Factory struct {
	numbers *NumberGenerator
	now     func() time.Time
}

func NewFactory() *Factory {
	return &Factory{
		numbers: &NumberGenerator{},
		now:     time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (f *Factory) WithClock(now func() time.Time) *Factory {
	f.now = now
	return f
}

// CreateOrder freezes snap into a pending order. The total is computed here
// from the frozen lines and is never recomputed.
func (f *Factory) CreateOrder(snap cart.Snapshot) (*models.Order, error) {
	if snap.Empty() {
		return nil, fmt.Errorf("create order for customer %d: %w", snap.CustomerID, models.ErrEmptyCart)
	}

	now := f.now().UTC()
	items := make([]models.OrderItem, 0, len(snap.Lines))
	total := decimal.Zero

	for _, l := range snap.Lines {
		if l.Quantity < 1 {
			return nil, fmt.Errorf("create order: product %d: %w", l.ProductID, models.ErrInvalidQuantity)
		}
		subtotal := l.Subtotal()
		items = append(items, models.OrderItem{
			ProductID:  l.ProductID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			Subtotal:   subtotal,
			StoreID:    l.StoreID,
			SupplierID: l.SupplierID,
		})
		total = total.Add(subtotal)
	}

	return &models.Order{
		OrderNumber: f.numbers.Next(now),
		CustomerID:  snap.CustomerID,
		Status:      models.OrderStatusPending,
		TotalAmount: total,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}, nil
}
