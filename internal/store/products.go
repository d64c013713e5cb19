package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/tackle-shop/internal/catalog"
	"github.com/safar/tackle-shop/internal/database"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, description, price, stock_quantity, category, store_id, supplier_id, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.Category,
		&product.StoreID,
		&product.SupplierID,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
}

func CreateProduct(ctx context.Context, db *sql.DB, p models.Product) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, price, stock_quantity, category, store_id, supplier_id, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	err := scanProduct(db.QueryRowContext(ctx, query,
		p.SKU, p.Name, p.Description, p.Price, p.StockQuantity, p.Category, p.StoreID, p.SupplierID), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	err := scanProduct(db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// ListProducts applies a catalog filter in SQL. Category entries are
// flattened into one set; the text query is matched case-insensitively
// against name or description.
func ListProducts(ctx context.Context, db *sql.DB, filter catalog.Filter) ([]models.Product, error) {
	var (
		conds []string
		args  []any
	)

	if cats := filter.CategorySet(); len(filter.Categories) > 0 {
		args = append(args, pq.Array(cats))
		conds = append(conds, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	if filter.StoreID != 0 {
		args = append(args, filter.StoreID)
		conds = append(conds, fmt.Sprintf("store_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// UpdatePriceOptimistic changes a product's price if its version still matches.
func UpdatePriceOptimistic(ctx context.Context, db *sql.DB, productID int64, price decimal.Decimal, version int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET price = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		price, productID, version)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrStaleState
	}

	return nil
}

func DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock_quantity >= $1`,
		quantity, productID)
	if err != nil {
		if database.IsCheckViolation(err) {
			return models.ErrInsufficientStock
		}
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		if !exists {
			return models.ErrProductNotFound
		}
		return models.ErrInsufficientStock
	}

	return nil
}

func IncrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
