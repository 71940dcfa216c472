package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProductRow is the inventory read model row for one product.
type ProductRow struct {
	ID          string    `json:"id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Reserved    int       `json:"reserved"`
	Available   int       `json:"available"`
	Price       float64   `json:"price"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Queries is the read side of the inventory service.
type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// GetProduct returns one product row, or ErrProductNotFound.
func (q *Queries) GetProduct(ctx context.Context, productID string) (*ProductRow, error) {
	var row ProductRow
	err := q.db.QueryRowContext(ctx, `
		SELECT id, product_name, quantity, reserved, quantity - reserved AS available, price, updated_at
		FROM inventory_read_model
		WHERE id = $1`,
		productID,
	).Scan(&row.ID, &row.ProductName, &row.Quantity, &row.Reserved, &row.Available, &row.Price, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	return &row, nil
}

// ListProducts returns all products ordered by name.
func (q *Queries) ListProducts(ctx context.Context) ([]ProductRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, product_name, quantity, reserved, quantity - reserved AS available, price, updated_at
		FROM inventory_read_model
		ORDER BY product_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]ProductRow, 0)
	for rows.Next() {
		var row ProductRow
		if err := rows.Scan(
			&row.ID, &row.ProductName, &row.Quantity, &row.Reserved,
			&row.Available, &row.Price, &row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, row)
	}
	return products, rows.Err()
}
