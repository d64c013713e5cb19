package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

// User is any identity that can open a session. StoreID is set for staff,
// SupplierID for suppliers; both are zero otherwise.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	StoreID    int64     `json:"store_id,omitempty"`
	SupplierID int64     `json:"supplier_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	StoreID       int64           `json:"store_id"`
	SupplierID    int64           `json:"supplier_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// CartLine is one product selection in a cart. UnitPrice is captured on the
// first add and is not refreshed from the catalog afterwards.
type CartLine struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	StoreID    int64           `json:"store_id"`
	SupplierID int64           `json:"supplier_id"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order is append-only history. Everything except Status (and the Version
// that tracks it) is fixed when the order is created.
type Order struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  int64           `json:"customer_id"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// OrderItem is the frozen copy of a cart line taken at checkout.
type OrderItem struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	StoreID    int64           `json:"store_id"`
	SupplierID int64           `json:"supplier_id"`
}

// Clone returns a deep copy so callers cannot reach into another holder's items.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

// FormatMoney renders an amount the way every surface shows it: two fraction digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
