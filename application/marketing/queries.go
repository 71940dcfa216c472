package marketing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a marketing query targets a missing row.
var ErrNotFound = errors.New("not found")

// CustomerSummary aggregates one customer's ordering history.
type CustomerSummary struct {
	CustomerName    string     `json:"customer_name"`
	TotalOrders     int        `json:"total_orders"`
	ConfirmedOrders int        `json:"confirmed_orders"`
	CancelledOrders int        `json:"cancelled_orders"`
	TotalRevenue    float64    `json:"total_revenue"`
	AvgOrderValue   float64    `json:"avg_order_value"`
	FirstOrderAt    *time.Time `json:"first_order_at"`
	LastOrderAt     *time.Time `json:"last_order_at"`
}

// ProductPopularity aggregates demand for one product.
type ProductPopularity struct {
	ProductID           string  `json:"product_id"`
	ProductName         string  `json:"product_name"`
	TotalUnitsOrdered   int     `json:"total_units_ordered"`
	ConfirmedUnits      int     `json:"confirmed_units"`
	TotalOrderCount     int     `json:"total_order_count"`
	ConfirmedOrderCount int     `json:"confirmed_order_count"`
	TotalRevenue        float64 `json:"total_revenue"`
	UniqueCustomers     int     `json:"unique_customers"`
}

// DailySales is one calendar day of order volume.
type DailySales struct {
	SaleDate        string  `json:"sale_date"`
	TotalOrders     int     `json:"total_orders"`
	ConfirmedOrders int     `json:"confirmed_orders"`
	CancelledOrders int     `json:"cancelled_orders"`
	TotalRevenue    float64 `json:"total_revenue"`
	AvgOrderValue   float64 `json:"avg_order_value"`
}

// Overview is the dashboard aggregate the gateway serves to the UI.
type Overview struct {
	Summary struct {
		TotalRevenue      float64 `json:"total_revenue"`
		TotalCustomers    int     `json:"total_customers"`
		TotalProductTypes int     `json:"total_product_types"`
	} `json:"summary"`
	TopCustomers     []CustomerSummary   `json:"top_customers"`
	TopProducts      []ProductPopularity `json:"top_products"`
	RecentDailySales []DailySales        `json:"recent_daily_sales"`
}

// Queries serves the marketing read model.
type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// ListCustomerSummaries returns all customers, biggest spenders first.
func (q *Queries) ListCustomerSummaries(ctx context.Context) ([]CustomerSummary, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT customer_name, total_orders, confirmed_orders, cancelled_orders,
		       total_revenue, avg_order_value, first_order_at, last_order_at
		FROM customer_summary
		ORDER BY total_revenue DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list customer summaries: %w", err)
	}
	defer rows.Close()

	customers := make([]CustomerSummary, 0)
	for rows.Next() {
		var c CustomerSummary
		if err := rows.Scan(
			&c.CustomerName, &c.TotalOrders, &c.ConfirmedOrders, &c.CancelledOrders,
			&c.TotalRevenue, &c.AvgOrderValue, &c.FirstOrderAt, &c.LastOrderAt,
		); err != nil {
			return nil, fmt.Errorf("scan customer summary: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// GetCustomerSummary returns one customer's summary, or ErrNotFound.
func (q *Queries) GetCustomerSummary(ctx context.Context, customerName string) (*CustomerSummary, error) {
	var c CustomerSummary
	err := q.db.QueryRowContext(ctx, `
		SELECT customer_name, total_orders, confirmed_orders, cancelled_orders,
		       total_revenue, avg_order_value, first_order_at, last_order_at
		FROM customer_summary
		WHERE customer_name = $1`,
		customerName,
	).Scan(
		&c.CustomerName, &c.TotalOrders, &c.ConfirmedOrders, &c.CancelledOrders,
		&c.TotalRevenue, &c.AvgOrderValue, &c.FirstOrderAt, &c.LastOrderAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, customerName)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer summary: %w", err)
	}
	return &c, nil
}

// ListProductPopularity returns all products, highest revenue first.
func (q *Queries) ListProductPopularity(ctx context.Context) ([]ProductPopularity, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT product_id, product_name, total_units_ordered, confirmed_units,
		       total_order_count, confirmed_order_count, total_revenue, unique_customers
		FROM product_popularity
		ORDER BY total_revenue DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list product popularity: %w", err)
	}
	defer rows.Close()

	products := make([]ProductPopularity, 0)
	for rows.Next() {
		var p ProductPopularity
		if err := rows.Scan(
			&p.ProductID, &p.ProductName, &p.TotalUnitsOrdered, &p.ConfirmedUnits,
			&p.TotalOrderCount, &p.ConfirmedOrderCount, &p.TotalRevenue, &p.UniqueCustomers,
		); err != nil {
			return nil, fmt.Errorf("scan product popularity: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListDailySales returns the last 30 days, newest first.
func (q *Queries) ListDailySales(ctx context.Context) ([]DailySales, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT to_char(sale_date, 'YYYY-MM-DD'), total_orders, confirmed_orders,
		       cancelled_orders, total_revenue, avg_order_value
		FROM daily_sales_summary
		ORDER BY sale_date DESC
		LIMIT 30`,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily sales: %w", err)
	}
	defer rows.Close()

	days := make([]DailySales, 0)
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(
			&d.SaleDate, &d.TotalOrders, &d.ConfirmedOrders,
			&d.CancelledOrders, &d.TotalRevenue, &d.AvgOrderValue,
		); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// GetOverview assembles the dashboard aggregate: totals plus the top five
// customers and products and the last seven daily rows.
func (q *Queries) GetOverview(ctx context.Context) (*Overview, error) {
	customers, err := q.ListCustomerSummaries(ctx)
	if err != nil {
		return nil, err
	}
	products, err := q.ListProductPopularity(ctx)
	if err != nil {
		return nil, err
	}
	daily, err := q.ListDailySales(ctx)
	if err != nil {
		return nil, err
	}

	var o Overview
	for _, c := range customers {
		o.Summary.TotalRevenue += c.TotalRevenue
	}
	o.Summary.TotalCustomers = len(customers)
	o.Summary.TotalProductTypes = len(products)
	o.TopCustomers = head(customers, 5)
	o.TopProducts = head(products, 5)
	o.RecentDailySales = head(daily, 7)
	return &o, nil
}

func head[T any](items []T, n int) []T {
	if len(items) < n {
		n = len(items)
	}
	return items[:n]
}
