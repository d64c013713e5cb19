// Package cart holds the per-customer cart aggregate. A Cart is owned by a
// single client session and is not safe for concurrent use.
package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/safar/tackle-shop/internal/catalog"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a line may hold. It matches the
// INTEGER column carts and orders are stored in.
const MaxQuantity = math.MaxInt32

// Observer is called synchronously after every successful mutation.
type Observer func(c *Cart)

type Cart struct {
	customerID int64
	lines      []models.CartLine
	observers  []Observer
}

// Snapshot is a read-only copy of a cart's lines, in insertion order.
type Snapshot struct {
	CustomerID int64             `json:"customer_id"`
	Lines      []models.CartLine `json:"lines"`
	Total      decimal.Decimal   `json:"total"`
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// ItemCount is the sum of line quantities, as shown on a cart badge.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

func New(customerID int64) *Cart {
	return &Cart{customerID: customerID}
}

// FromLines rebuilds a cart from persisted lines. Duplicate product ids are
// merged into the first occurrence.
func FromLines(customerID int64, lines []models.CartLine) *Cart {
	c := New(customerID)
	for _, l := range lines {
		if i := c.index(l.ProductID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

func (c *Cart) CustomerID() int64 {
	return c.customerID
}

func (c *Cart) OnChange(o Observer) {
	c.observers = append(c.observers, o)
}

// Add puts quantity units of productID in the cart. An existing line keeps
// its price snapshot and only accumulates quantity.
func (c *Cart) Add(ctx context.Context, index catalog.Index, productID int64, quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return fmt.Errorf("add product %d: %w", productID, models.ErrInvalidQuantity)
	}

	if i := c.index(productID); i >= 0 {
		if c.lines[i].Quantity > MaxQuantity-quantity {
			return fmt.Errorf("add product %d: %w", productID, models.ErrInvalidQuantity)
		}
		c.lines[i].Quantity += quantity
		c.notify()
		return nil
	}

	product, err := index.Lookup(ctx, productID)
	if err != nil {
		return fmt.Errorf("add product %d: %w", productID, err)
	}

	c.lines = append(c.lines, models.CartLine{
		ProductID:  product.ID,
		Name:       product.Name,
		Quantity:   quantity,
		UnitPrice:  product.Price,
		StoreID:    product.StoreID,
		SupplierID: product.SupplierID,
	})
	c.notify()
	return nil
}

// SetQuantity replaces the quantity of an existing line. Zero is rejected;
// use Remove to drop a line.
func (c *Cart) SetQuantity(productID int64, quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return fmt.Errorf("set quantity of product %d: %w", productID, models.ErrInvalidQuantity)
	}

	i := c.index(productID)
	if i < 0 {
		return fmt.Errorf("set quantity of product %d: %w", productID, models.ErrLineNotFound)
	}

	c.lines[i].Quantity = quantity
	c.notify()
	return nil
}

// Remove drops the line for productID. Removing an absent line is a no-op
// and does not notify observers.
func (c *Cart) Remove(productID int64) {
	i := c.index(productID)
	if i < 0 {
		return
	}

	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.notify()
}

func (c *Cart) Clear() {
	c.lines = nil
	c.notify()
}

func (c *Cart) Snapshot() Snapshot {
	lines := make([]models.CartLine, len(c.lines))
	copy(lines, c.lines)

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}

	return Snapshot{
		CustomerID: c.customerID,
		Lines:      lines,
		Total:      total,
	}
}

// Restore resets the lines to a previous snapshot. It is the rollback path
// after a failed save and does not notify observers.
func (c *Cart) Restore(s Snapshot) {
	c.lines = make([]models.CartLine, len(s.Lines))
	copy(c.lines, s.Lines)
}

func (c *Cart) index(productID int64) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) notify() {
	for _, o := range c.observers {
		o(c)
	}
}
