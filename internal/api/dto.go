package api

import (
	"time"

	"github.com/safar/tackle-shop/internal/cart"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/safar/tackle-shop/internal/order"
)

type LoginRequest struct {
	UserID int64 `json:"user_id"`
}

type SessionResponse struct {
	Token     string      `json:"token"`
	UserID    int64       `json:"user_id"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type AddItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type StatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type ProductResponse struct {
	ID          int64  `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Category    string `json:"category"`
	StoreID     int64  `json:"store_id"`
	SupplierID  int64  `json:"supplier_id"`
}

type CartLineResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type CartResponse struct {
	Lines     []CartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Total     string             `json:"total"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type OrderItemResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

// OrderResponse carries the canonical status for every role. Customers
// additionally get the two-state label; fulfillment roles get the moves
// they may make next.
type OrderResponse struct {
	OrderNumber  string               `json:"order_number"`
	CustomerID   int64                `json:"customer_id"`
	Status       models.OrderStatus   `json:"status"`
	Label        string               `json:"label,omitempty"`
	NextStatuses []models.OrderStatus `json:"next_statuses,omitempty"`
	Total        string               `json:"total"`
	Items        []OrderItemResponse  `json:"items"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type OrderPageResponse struct {
	Orders     []OrderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapProduct(p models.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       models.FormatMoney(p.Price),
		Stock:       p.StockQuantity,
		Category:    p.Category,
		StoreID:     p.StoreID,
		SupplierID:  p.SupplierID,
	}
}

func mapCart(s cart.Snapshot) CartResponse {
	lines := make([]CartLineResponse, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = CartLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: models.FormatMoney(l.UnitPrice),
			Subtotal:  models.FormatMoney(l.Subtotal()),
		}
	}
	return CartResponse{
		Lines:     lines,
		ItemCount: s.ItemCount(),
		Total:     models.FormatMoney(s.Total),
	}
}

func mapOrder(o *models.Order, role models.Role) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: models.FormatMoney(it.UnitPrice),
			Subtotal:  models.FormatMoney(it.Subtotal),
		}
	}

	resp := OrderResponse{
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		Total:       models.FormatMoney(o.TotalAmount),
		Items:       items,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if role == models.RoleCustomer {
		resp.Label = order.CustomerLabel(o.Status)
	} else {
		resp.NextStatuses = order.NextStatuses(o.Status, role)
	}
	return resp
}
