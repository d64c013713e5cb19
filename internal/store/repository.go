package store

import (
	"context"
	"database/sql"

	"github.com/safar/tackle-shop/internal/catalog"
	"github.com/safar/tackle-shop/internal/models"
)

// Repository exposes the package functions over one *sql.DB as the
// catalog, cart, order and user ports the service layer depends on.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Lookup(ctx context.Context, productID int64) (*models.Product, error) {
	return GetProduct(ctx, r.db, productID)
}

func (r *Repository) List(ctx context.Context, filter catalog.Filter) ([]models.Product, error) {
	return ListProducts(ctx, r.db, filter)
}

func (r *Repository) LoadCart(ctx context.Context, customerID int64) ([]models.CartLine, error) {
	return LoadCart(ctx, r.db, customerID)
}

func (r *Repository) SaveCart(ctx context.Context, customerID int64, lines []models.CartLine) error {
	return SaveCart(ctx, r.db, customerID, lines)
}

func (r *Repository) SaveOrder(ctx context.Context, o *models.Order) error {
	return SaveOrder(ctx, r.db, o)
}

func (r *Repository) LoadOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	return GetOrder(ctx, r.db, orderNumber)
}

func (r *Repository) LoadOrders(ctx context.Context, q models.OrderQuery) (*models.OrderPage, error) {
	return ListOrders(ctx, r.db, q)
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, orderNumber string, from, to models.OrderStatus) (*models.Order, error) {
	return UpdateOrderStatus(ctx, r.db, orderNumber, from, to)
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return GetUser(ctx, r.db, id)
}
