package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/tackle-shop/internal/database"
	"github.com/safar/tackle-shop/internal/models"
)

const orderColumns = `id, customer_id, order_number, status, total_amount, created_at, updated_at, version`

func scanOrder(row rowScanner, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

// SaveOrder stores a freshly created order and its items, takes the
// ordered quantities out of stock and empties the customer's saved cart,
// all in one serializable transaction. order.ID is set on success.
func SaveOrder(ctx context.Context, db *sql.DB, order *models.Order) error {
	var orderID int64

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			order.CustomerID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check customer exists: %w", err)
		}
		if !exists {
			return models.ErrUserNotFound
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (customer_id, order_number, status, total_amount, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			order.CustomerID, order.OrderNumber, string(order.Status), order.TotalAmount,
			order.CreatedAt, order.UpdatedAt, order.Version).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i, item := range order.Items {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, position, product_id, name, quantity, unit_price, subtotal, store_id, supplier_id)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				orderID, i, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Subtotal, item.StoreID, item.SupplierID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			if err := DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
		}

		return deleteCart(ctx, tx, order.CustomerID)
	})
	if err != nil {
		return err
	}

	order.ID = orderID
	return nil
}

func GetOrder(ctx context.Context, db *sql.DB, orderNumber string) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	err := scanOrder(db.QueryRowContext(ctx, query, orderNumber), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadOrderItems(ctx, db, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

// ListOrders returns one page of orders, newest first, for the role view
// selected by q.
func ListOrders(ctx context.Context, db *sql.DB, q models.OrderQuery) (*models.OrderPage, error) {
	cursor, err := DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []any
	)

	if q.CustomerID != 0 {
		args = append(args, q.CustomerID)
		conds = append(conds, fmt.Sprintf("o.customer_id = $%d", len(args)))
	}
	if q.StoreID != 0 {
		args = append(args, q.StoreID)
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.store_id = $%d)", len(args)))
	}
	if q.SupplierID != 0 {
		args = append(args, q.SupplierID)
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.supplier_id = $%d)", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conds = append(conds, fmt.Sprintf("(o.created_at, o.id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT o.id, o.customer_id, o.order_number, o.status, o.total_amount, o.created_at, o.updated_at, o.version
		FROM orders o`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY o.created_at DESC, o.id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit+1)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	page := Paginate(orders, q.Limit)

	ids := make([]int64, len(page.Orders))
	for i, o := range page.Orders {
		ids[i] = o.ID
	}
	items, err := loadOrderItems(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range page.Orders {
		page.Orders[i].Items = items[page.Orders[i].ID]
	}

	return page, nil
}

// Paginate trims a limit+1 result set to a page and sets the next cursor.
func Paginate(orders []models.Order, limit int) *models.OrderPage {
	hasMore := limit > 0 && len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	if orders == nil {
		orders = []models.Order{}
	}

	return &models.OrderPage{
		Orders:     orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}

func loadOrderItems(ctx context.Context, db *sql.DB, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	out := make(map[int64][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT order_id, product_id, name, quantity, unit_price, subtotal, store_id, supplier_id
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var item models.OrderItem
		err := rows.Scan(
			&orderID,
			&item.ProductID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.StoreID,
			&item.SupplierID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// UpdateOrderStatus moves an order from one status to another as a
// compare-and-swap: if the stored status is no longer from, nothing is
// written and models.ErrStaleState is returned. Cancelling an order puts
// its quantities back in stock.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderNumber string, from, to models.OrderStatus) (*models.Order, error) {
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var orderID int64
		err := tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, version = version + 1, updated_at = NOW()
			 WHERE order_number = $2 AND status = $3
			 RETURNING id`,
			string(to), orderNumber, string(from)).Scan(&orderID)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`,
				orderNumber).Scan(&exists); err != nil {
				return fmt.Errorf("check order exists: %w", err)
			}
			if !exists {
				return models.ErrOrderNotFound
			}
			return models.ErrStaleState
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if to != models.OrderStatusCancelled {
			return nil
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY position`,
			orderID)
		if err != nil {
			return fmt.Errorf("get order items: %w", err)
		}

		type restock struct {
			productID int64
			quantity  int
		}
		var pending []restock
		for rows.Next() {
			var r restock
			if err := rows.Scan(&r.productID, &r.quantity); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item: %w", err)
			}
			pending = append(pending, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("rows error: %w", err)
		}
		rows.Close()

		for _, r := range pending {
			if err := IncrementStock(ctx, tx, r.productID, r.quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetOrder(ctx, db, orderNumber)
}
