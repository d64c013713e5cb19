// Package memstore is an in-memory implementation of the catalog, cart,
// order and user ports. It follows the Postgres store's semantics (stock
// decrement on save, restock on cancel, compare-and-swap status updates)
// and is used for local runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/safar/tackle-shop/internal/catalog"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/safar/tackle-shop/internal/store"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu       sync.RWMutex
	products map[int64]*models.Product
	users    map[int64]*models.User
	carts    map[int64][]models.CartLine
	orders   map[string]*models.Order

	nextProductID int64
	nextUserID    int64
	nextOrderID   int64
	now           func() time.Time
}

func New() *Store {
	return &Store{
		products: make(map[int64]*models.Product),
		users:    make(map[int64]*models.User),
		carts:    make(map[int64][]models.CartLine),
		orders:   make(map[string]*models.Order),
		now:      time.Now,
	}
}

func (s *Store) AddProduct(p models.Product) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	p.ID = s.nextProductID
	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt
	p.Version = 1
	s.products[p.ID] = &p

	cp := p
	return &cp
}

// SetPrice changes a product's catalog price. Existing cart lines and
// orders keep the price they captured.
func (s *Store) SetPrice(productID int64, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return models.ErrProductNotFound
	}
	p.Price = price
	p.Version++
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) AddUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = s.now().UTC()
	u.UpdatedAt = u.CreatedAt
	u.Version = 1
	s.users[u.ID] = &u

	cp := u
	return &cp
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) Lookup(_ context.Context, productID int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) List(_ context.Context, filter catalog.Filter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Product
	for _, p := range s.products {
		if filter.Match(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LoadCart(_ context.Context, customerID int64) ([]models.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.CartLine(nil), s.carts[customerID]...), nil
}

func (s *Store) SaveCart(_ context.Context, customerID int64, lines []models.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(lines) == 0 {
		delete(s.carts, customerID)
		return nil
	}
	s.carts[customerID] = append([]models.CartLine(nil), lines...)
	return nil
}

func (s *Store) SaveOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[o.CustomerID]; !ok {
		return models.ErrUserNotFound
	}
	if _, ok := s.orders[o.OrderNumber]; ok {
		return fmt.Errorf("order %s already exists", o.OrderNumber)
	}

	need := make(map[int64]int)
	for _, item := range o.Items {
		need[item.ProductID] += item.Quantity
	}
	for id, qty := range need {
		p, ok := s.products[id]
		if !ok {
			return fmt.Errorf("product %d: %w", id, models.ErrProductNotFound)
		}
		if p.StockQuantity < qty {
			return fmt.Errorf("product %d: %w", id, models.ErrInsufficientStock)
		}
	}
	for id, qty := range need {
		s.products[id].StockQuantity -= qty
	}

	s.nextOrderID++
	o.ID = s.nextOrderID
	s.orders[o.OrderNumber] = o.Clone()
	delete(s.carts, o.CustomerID)
	return nil
}

func (s *Store) LoadOrder(_ context.Context, orderNumber string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderNumber]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *Store) LoadOrders(_ context.Context, q models.OrderQuery) (*models.OrderPage, error) {
	cursor, err := store.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var orders []models.Order
	for _, o := range s.orders {
		if matchQuery(o, q) && (cursor == nil || cursor.Before(o.CreatedAt, o.ID)) {
			orders = append(orders, *o.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	if q.Limit > 0 && len(orders) > q.Limit+1 {
		orders = orders[:q.Limit+1]
	}
	return store.Paginate(orders, q.Limit), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderNumber string, from, to models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderNumber]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, models.ErrStaleState
	}

	o.Status = to
	o.Version++
	o.UpdatedAt = s.now().UTC()

	if to == models.OrderStatusCancelled {
		for _, item := range o.Items {
			if p, ok := s.products[item.ProductID]; ok {
				p.StockQuantity += item.Quantity
			}
		}
	}

	return o.Clone(), nil
}

func matchQuery(o *models.Order, q models.OrderQuery) bool {
	if q.CustomerID != 0 && o.CustomerID != q.CustomerID {
		return false
	}
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	return (q.StoreID == 0 || hasItem(o, func(i models.OrderItem) bool { return i.StoreID == q.StoreID })) &&
		(q.SupplierID == 0 || hasItem(o, func(i models.OrderItem) bool { return i.SupplierID == q.SupplierID }))
}

func hasItem(o *models.Order, pred func(models.OrderItem) bool) bool {
	for _, item := range o.Items {
		if pred(item) {
			return true
		}
	}
	return false
}
