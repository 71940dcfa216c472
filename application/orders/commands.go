// Package orders is the write and read side of the order authority.
//
// Commands append an event and update the denormalized read model in a
// single transaction, then publish the event to the order_events channel
// after commit. The publish is a classic dual-write: a crash between commit
// and publish loses the message, which downstream consumers tolerate.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"order_saga/domain/order"
	"order_saga/infrastructure/eventstore"
	"order_saga/infrastructure/messaging"
)

// ErrNotFound is returned when a command or query targets an order with no
// event stream.
var ErrNotFound = errors.New("order not found")

// Publisher is the slice of the message bus the command side needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// Commands handles the write side of the order service.
type Commands struct {
	db     *sql.DB
	store  *eventstore.Store
	bus    Publisher
	logger *zap.Logger
}

func NewCommands(db *sql.DB, store *eventstore.Store, bus Publisher, logger *zap.Logger) *Commands {
	return &Commands{db: db, store: store, bus: bus, logger: logger}
}

// CreateOrderInput carries the fields of the CreateOrder command.
type CreateOrderInput struct {
	OrderID      string
	CustomerName string
	ProductID    string
	ProductName  string
	Quantity     int
	TotalPrice   float64
}

// CreateOrder appends OrderCreated at version 1 and inserts the read model
// row in PENDING. Creating the same order twice surfaces as a concurrency
// conflict on version 1.
func (c *Commands) CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error) {
	now := time.Now().UTC()
	evt := order.Created{
		OrderID:      in.OrderID,
		CustomerName: in.CustomerName,
		ProductID:    in.ProductID,
		ProductName:  in.ProductName,
		Quantity:     in.Quantity,
		TotalPrice:   in.TotalPrice,
		Timestamp:    now,
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	version, err := c.store.Append(ctx, tx, in.OrderID, order.AggregateType, evt.EventType(), evt, 0)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders_read_model
			(id, customer_name, product_id, product_name, quantity, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		in.OrderID, in.CustomerName, in.ProductID, in.ProductName,
		in.Quantity, in.TotalPrice, order.StatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order read model: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create order: %w", err)
	}

	c.publish(ctx, evt)
	c.logger.Info("order created",
		zap.String("order_id", in.OrderID),
		zap.Int("version", version))

	agg := order.New()
	agg.When(evt)
	agg.Version = version
	return agg, nil
}

// ConfirmOrder appends OrderConfirmed at the aggregate's current version and
// flips the read model to CONFIRMED. Idempotency is not provided here; the
// orchestrator guarantees single-shot invocation.
func (c *Commands) ConfirmOrder(ctx context.Context, orderID string) (*order.Order, error) {
	agg, err := c.loadAggregate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	evt := order.Confirmed{OrderID: orderID, Timestamp: now}

	version, err := c.applyStatusChange(ctx, agg, evt, order.StatusConfirmed, now)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, evt)
	c.logger.Info("order confirmed", zap.String("order_id", orderID))

	agg.When(evt)
	agg.Version = version
	return agg, nil
}

// CancelOrder is the saga's compensating transaction: it appends
// OrderCancelled and flips the read model to CANCELLED.
func (c *Commands) CancelOrder(ctx context.Context, orderID, reason string) (*order.Order, error) {
	agg, err := c.loadAggregate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	evt := order.Cancelled{OrderID: orderID, Reason: reason, Timestamp: now}

	version, err := c.applyStatusChange(ctx, agg, evt, order.StatusCancelled, now)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, evt)
	c.logger.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("reason", reason))

	agg.When(evt)
	agg.Version = version
	return agg, nil
}

// applyStatusChange appends evt at the aggregate's version and updates the
// read model status in the same transaction.
func (c *Commands) applyStatusChange(
	ctx context.Context,
	agg *order.Order,
	evt order.Event,
	status order.Status,
	now time.Time,
) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	version, err := c.store.Append(ctx, tx, agg.ID, order.AggregateType, evt.EventType(), evt, agg.Version)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders_read_model
		SET status = $1, updated_at = $2
		WHERE id = $3`,
		status, now, agg.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("update order read model: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit order status change: %w", err)
	}

	return version, nil
}

func (c *Commands) loadAggregate(ctx context.Context, orderID string) (*order.Order, error) {
	records, err := c.store.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	return replay(records)
}

// replay rebuilds an Order aggregate from its stored events.
func replay(records []eventstore.Event) (*order.Order, error) {
	agg := order.New()
	for _, rec := range records {
		evt, err := order.DeserializeEvent(rec.EventType, rec.EventData)
		if err != nil {
			return nil, fmt.Errorf("deserialize event v%d: %w", rec.Version, err)
		}
		if err := agg.When(evt); err != nil {
			return nil, fmt.Errorf("apply event v%d: %w", rec.Version, err)
		}
		agg.Version = rec.Version
	}
	return agg, nil
}

// publish sends the event to order_events after commit. A publish failure is
// logged and swallowed: the event is durable in the store, only the
// notification is lost.
func (c *Commands) publish(ctx context.Context, evt order.Event) {
	env := messaging.Envelope{EventType: evt.EventType(), Data: evt}
	if err := c.bus.Publish(ctx, messaging.ChannelOrderEvents, env); err != nil {
		c.logger.Error("failed to publish order event",
			zap.String("event_type", evt.EventType()),
			zap.Error(err))
	}
}
