package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OrderRow is a denormalized read model row, one per order.
type OrderRow struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	TotalPrice   float64   `json:"total_price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Queries is the read side of the order service. Reads never touch the
// event store; they hit the read model only.
type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// GetOrder returns one read model row, or ErrNotFound.
func (q *Queries) GetOrder(ctx context.Context, orderID string) (*OrderRow, error) {
	var row OrderRow
	err := q.db.QueryRowContext(ctx, `
		SELECT id, customer_name, product_id, product_name, quantity, total_price, status, created_at, updated_at
		FROM orders_read_model
		WHERE id = $1`,
		orderID,
	).Scan(
		&row.ID, &row.CustomerName, &row.ProductID, &row.ProductName,
		&row.Quantity, &row.TotalPrice, &row.Status, &row.CreatedAt, &row.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &row, nil
}

// ListOrders returns all orders, newest first.
func (q *Queries) ListOrders(ctx context.Context) ([]OrderRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, customer_name, product_id, product_name, quantity, total_price, status, created_at, updated_at
		FROM orders_read_model
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]OrderRow, 0)
	for rows.Next() {
		var row OrderRow
		if err := rows.Scan(
			&row.ID, &row.CustomerName, &row.ProductID, &row.ProductName,
			&row.Quantity, &row.TotalPrice, &row.Status, &row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, row)
	}
	return orders, rows.Err()
}
