// Package inventory is the write and read side of the inventory authority.
//
// Reservations are checked against the read model, but the serialization
// point is the event append: two concurrent reservers load the same version
// and exactly one wins the insert. The loser gets a concurrency conflict and
// does not retry; the saga treats it as a failed step.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"order_saga/domain/inventory"
	"order_saga/infrastructure/eventstore"
	"order_saga/infrastructure/messaging"
)

// ErrProductNotFound is returned when the product has no read model row.
// No event is recorded for this case.
var ErrProductNotFound = errors.New("Product not found")

// InsufficientStockError is the business rejection of a reservation.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock: requested=%d, available=%d", e.Requested, e.Available)
}

// Publisher is the slice of the message bus the command side needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// Commands handles the write side of the inventory service.
type Commands struct {
	db     *sql.DB
	store  *eventstore.Store
	bus    Publisher
	logger *zap.Logger
}

func NewCommands(db *sql.DB, store *eventstore.Store, bus Publisher, logger *zap.Logger) *Commands {
	return &Commands{db: db, store: store, bus: bus, logger: logger}
}

// Reserve holds quantity units of a product against an order.
//
// On insufficient stock it records InventoryReservationFailed (no counter
// change) and returns an InsufficientStockError carrying the reason shown to
// the saga.
func (c *Commands) Reserve(ctx context.Context, productID, orderID string, quantity int) error {
	var onHand, reserved int
	err := c.db.QueryRowContext(ctx, `
		SELECT quantity, reserved FROM inventory_read_model WHERE id = $1`,
		productID,
	).Scan(&onHand, &reserved)
	if err == sql.ErrNoRows {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("read inventory for %s: %w", productID, err)
	}

	available := onHand - reserved
	now := time.Now().UTC()

	version, err := c.store.CurrentVersion(ctx, productID)
	if err != nil {
		return err
	}

	if quantity > available {
		evt := inventory.ReservationFailed{
			ProductID:         productID,
			OrderID:           orderID,
			QuantityRequested: quantity,
			QuantityAvailable: available,
			Timestamp:         now,
		}
		if err := c.appendOnly(ctx, productID, evt, version); err != nil {
			return err
		}
		c.publish(ctx, evt)
		c.logger.Warn("reservation rejected",
			zap.String("product_id", productID),
			zap.String("order_id", orderID),
			zap.Int("requested", quantity),
			zap.Int("available", available))
		return &InsufficientStockError{Requested: quantity, Available: available}
	}

	evt := inventory.Reserved{
		ProductID: productID,
		OrderID:   orderID,
		Quantity:  quantity,
		Timestamp: now,
	}
	if err := c.appendAndAdjust(ctx, productID, evt, version, quantity, now); err != nil {
		return err
	}

	c.publish(ctx, evt)
	c.logger.Info("inventory reserved",
		zap.String("product_id", productID),
		zap.String("order_id", orderID),
		zap.Int("quantity", quantity))
	return nil
}

// Release hands a reservation back. No validation that a matching
// reservation exists; compensations trust the caller.
func (c *Commands) Release(ctx context.Context, productID, orderID string, quantity int) error {
	now := time.Now().UTC()

	version, err := c.store.CurrentVersion(ctx, productID)
	if err != nil {
		return err
	}

	evt := inventory.Released{
		ProductID: productID,
		OrderID:   orderID,
		Quantity:  quantity,
		Timestamp: now,
	}
	if err := c.appendAndAdjust(ctx, productID, evt, version, -quantity, now); err != nil {
		return err
	}

	c.publish(ctx, evt)
	c.logger.Info("inventory released",
		zap.String("product_id", productID),
		zap.String("order_id", orderID),
		zap.Int("quantity", quantity))
	return nil
}

// appendOnly commits a single event with no read model change.
func (c *Commands) appendOnly(ctx context.Context, productID string, evt inventory.Event, expectedVersion int) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := c.store.Append(ctx, tx, productID, inventory.AggregateType, evt.EventType(), evt, expectedVersion); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inventory event: %w", err)
	}
	return nil
}

// appendAndAdjust commits the event together with a reserved-counter delta.
func (c *Commands) appendAndAdjust(
	ctx context.Context,
	productID string,
	evt inventory.Event,
	expectedVersion, delta int,
	now time.Time,
) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := c.store.Append(ctx, tx, productID, inventory.AggregateType, evt.EventType(), evt, expectedVersion); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_read_model
		SET reserved = reserved + $1, updated_at = $2
		WHERE id = $3`,
		delta, now, productID,
	)
	if err != nil {
		return fmt.Errorf("update inventory read model: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inventory change: %w", err)
	}
	return nil
}

func (c *Commands) publish(ctx context.Context, evt inventory.Event) {
	env := messaging.Envelope{EventType: evt.EventType(), Data: evt}
	if err := c.bus.Publish(ctx, messaging.ChannelInventoryEvents, env); err != nil {
		c.logger.Error("failed to publish inventory event",
			zap.String("event_type", evt.EventType()),
			zap.Error(err))
	}
}
