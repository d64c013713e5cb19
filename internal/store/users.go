package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/tackle-shop/internal/models"
)

func CreateUser(ctx context.Context, db *sql.DB, u models.User) (*models.User, error) {
	if !u.Role.Valid() {
		return nil, fmt.Errorf("create user: unknown role %q", u.Role)
	}

	user := &models.User{}

	query := `
		INSERT INTO users (email, name, role, store_id, supplier_id, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), 1)
		RETURNING id, email, name, role, store_id, supplier_id, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, u.Email, u.Name, string(u.Role), u.StoreID, u.SupplierID).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.StoreID,
		&user.SupplierID,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, role, store_id, supplier_id, created_at, updated_at, version
		FROM users
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.StoreID,
		&user.SupplierID,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
