// Package marketing is the read-only analytics side of the pipeline.
//
// The projector subscribes to order_events and folds each event into a set
// of denormalized marketing tables it owns exclusively. Every handler runs
// in a fresh transaction that commits as a unit. A confirm or cancel whose
// create was never seen is dropped silently; the projector does not buffer
// out-of-order messages.
package marketing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"order_saga/domain/order"
)

// Projector consumes order events and maintains the marketing read model.
type Projector struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewProjector(db *sql.DB, logger *zap.Logger) *Projector {
	return &Projector{db: db, logger: logger}
}

// HandleMessage processes one raw bus message. Unknown event types are
// ignored; a payload that fails to parse is reported so the subscriber can
// log and drop it.
func (p *Projector) HandleMessage(ctx context.Context, payload []byte) error {
	var env struct {
		EventType string          `json:"event_type"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("malformed event: %w", err)
	}

	switch env.EventType {
	case order.EventTypeCreated:
		var evt order.Created
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return fmt.Errorf("malformed %s payload: %w", env.EventType, err)
		}
		return p.projectOrderCreated(ctx, evt)

	case order.EventTypeConfirmed:
		var evt order.Confirmed
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return fmt.Errorf("malformed %s payload: %w", env.EventType, err)
		}
		return p.projectOrderConfirmed(ctx, evt)

	case order.EventTypeCancelled:
		var evt order.Cancelled
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return fmt.Errorf("malformed %s payload: %w", env.EventType, err)
		}
		return p.projectOrderCancelled(ctx, evt)

	default:
		// Not a marketing concern; skip without error.
		return nil
	}
}

// projectOrderCreated inserts the snapshot (idempotent on order_id) and
// bumps the customer, product, unique-customer and daily aggregates. The
// aggregate bumps are not idempotent; the bus contract is at-most-once.
func (p *Projector) projectOrderCreated(ctx context.Context, evt order.Created) error {
	ts := evt.Timestamp.UTC()
	orderDate := utcDate(evt.Timestamp)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO marketing_order_snapshot
			(order_id, customer_name, product_id, product_name,
			 quantity, total_price, status, order_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, $8, $8)
		ON CONFLICT (order_id) DO NOTHING`,
		evt.OrderID, evt.CustomerName, evt.ProductID, evt.ProductName,
		evt.Quantity, evt.TotalPrice, orderDate, ts,
	)
	if err != nil {
		return fmt.Errorf("insert order snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO customer_summary
			(customer_name, total_orders, total_revenue, avg_order_value,
			 first_order_at, last_order_at, updated_at)
		VALUES ($1, 1, $2, $2, $3, $3, $3)
		ON CONFLICT (customer_name) DO UPDATE SET
			total_orders = customer_summary.total_orders + 1,
			total_revenue = customer_summary.total_revenue + $2,
			avg_order_value = (customer_summary.total_revenue + $2)
				/ (customer_summary.total_orders + 1),
			last_order_at = $3,
			updated_at = $3`,
		evt.CustomerName, evt.TotalPrice, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert customer summary: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO product_popularity
			(product_id, product_name, total_units_ordered, total_order_count,
			 total_revenue, unique_customers, updated_at)
		VALUES ($1, $2, $3, 1, $4, 0, $5)
		ON CONFLICT (product_id) DO UPDATE SET
			total_units_ordered = product_popularity.total_units_ordered + $3,
			total_order_count = product_popularity.total_order_count + 1,
			total_revenue = product_popularity.total_revenue + $4,
			updated_at = $5`,
		evt.ProductID, evt.ProductName, evt.Quantity, evt.TotalPrice, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert product popularity: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO product_customer_map (product_id, customer_name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		evt.ProductID, evt.CustomerName,
	)
	if err != nil {
		return fmt.Errorf("insert product customer map: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE product_popularity
		SET unique_customers = (
			SELECT COUNT(*) FROM product_customer_map WHERE product_id = $1
		)
		WHERE product_id = $1`,
		evt.ProductID,
	)
	if err != nil {
		return fmt.Errorf("recompute unique customers: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_sales_summary
			(sale_date, total_orders, total_revenue, avg_order_value, updated_at)
		VALUES ($1, 1, $2, $2, $3)
		ON CONFLICT (sale_date) DO UPDATE SET
			total_orders = daily_sales_summary.total_orders + 1,
			total_revenue = daily_sales_summary.total_revenue + $2,
			avg_order_value = (daily_sales_summary.total_revenue + $2)
				/ (daily_sales_summary.total_orders + 1),
			updated_at = $3`,
		orderDate, evt.TotalPrice, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert daily sales: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit OrderCreated projection: %w", err)
	}

	p.logger.Info("projected event",
		zap.String("event_type", order.EventTypeCreated),
		zap.String("order_id", evt.OrderID))
	return nil
}

func (p *Projector) projectOrderConfirmed(ctx context.Context, evt order.Confirmed) error {
	return p.projectStatusChange(ctx, evt.OrderID, evt.Timestamp, order.StatusConfirmed)
}

func (p *Projector) projectOrderCancelled(ctx context.Context, evt order.Cancelled) error {
	return p.projectStatusChange(ctx, evt.OrderID, evt.Timestamp, order.StatusCancelled)
}

// projectStatusChange looks the order up in the snapshot and bumps the
// confirmed/cancelled counters. An unknown order_id means the event arrived
// out of order or the create was lost: no tables are touched.
func (p *Projector) projectStatusChange(ctx context.Context, orderID string, timestamp time.Time, status order.Status) error {
	ts := timestamp.UTC()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		customerName string
		productID    string
		quantity     int
		orderDate    string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT customer_name, product_id, quantity, to_char(order_date, 'YYYY-MM-DD')
		FROM marketing_order_snapshot
		WHERE order_id = $1`,
		orderID,
	).Scan(&customerName, &productID, &quantity, &orderDate)
	if err == sql.ErrNoRows {
		p.logger.Warn("status event for unknown order, dropping",
			zap.String("order_id", orderID),
			zap.String("status", string(status)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE marketing_order_snapshot
		SET status = $1, updated_at = $2
		WHERE order_id = $3`,
		status, ts, orderID,
	)
	if err != nil {
		return fmt.Errorf("update order snapshot: %w", err)
	}

	switch status {
	case order.StatusConfirmed:
		_, err = tx.ExecContext(ctx, `
			UPDATE customer_summary
			SET confirmed_orders = confirmed_orders + 1, updated_at = $1
			WHERE customer_name = $2`,
			ts, customerName,
		)
		if err != nil {
			return fmt.Errorf("bump customer confirmed: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE product_popularity
			SET confirmed_units = confirmed_units + $1,
				confirmed_order_count = confirmed_order_count + 1,
				updated_at = $2
			WHERE product_id = $3`,
			quantity, ts, productID,
		)
		if err != nil {
			return fmt.Errorf("bump product confirmed: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE daily_sales_summary
			SET confirmed_orders = confirmed_orders + 1, updated_at = $1
			WHERE sale_date = $2`,
			ts, orderDate,
		)
		if err != nil {
			return fmt.Errorf("bump daily confirmed: %w", err)
		}

	case order.StatusCancelled:
		_, err = tx.ExecContext(ctx, `
			UPDATE customer_summary
			SET cancelled_orders = cancelled_orders + 1, updated_at = $1
			WHERE customer_name = $2`,
			ts, customerName,
		)
		if err != nil {
			return fmt.Errorf("bump customer cancelled: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE daily_sales_summary
			SET cancelled_orders = cancelled_orders + 1, updated_at = $1
			WHERE sale_date = $2`,
			ts, orderDate,
		)
		if err != nil {
			return fmt.Errorf("bump daily cancelled: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status projection: %w", err)
	}

	p.logger.Info("projected event",
		zap.String("order_id", orderID),
		zap.String("status", string(status)))
	return nil
}

// utcDate buckets a timestamp into its UTC calendar date.
func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
