package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/tackle-shop/internal/database"
	"github.com/safar/tackle-shop/internal/models"
)

// LoadCart returns the customer's saved lines in the order they were added.
func LoadCart(ctx context.Context, db *sql.DB, customerID int64) ([]models.CartLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT product_id, name, quantity, unit_price, store_id, supplier_id
		FROM cart_items
		WHERE customer_id = $1
		ORDER BY position`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		err := rows.Scan(
			&line.ProductID,
			&line.Name,
			&line.Quantity,
			&line.UnitPrice,
			&line.StoreID,
			&line.SupplierID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// SaveCart replaces the customer's saved lines.
func SaveCart(ctx context.Context, db *sql.DB, customerID int64, lines []models.CartLine) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := deleteCart(ctx, tx, customerID); err != nil {
			return err
		}

		for i, line := range lines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO cart_items (customer_id, product_id, position, name, quantity, unit_price, store_id, supplier_id, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
				customerID, line.ProductID, i, line.Name, line.Quantity, line.UnitPrice, line.StoreID, line.SupplierID)
			if err != nil {
				return fmt.Errorf("insert cart line %d: %w", line.ProductID, err)
			}
		}

		return nil
	})
}

func deleteCart(ctx context.Context, tx *sql.Tx, customerID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, customerID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
