package order

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type discriminators as stored in the event_store and carried on the
// bus envelope.
const (
	EventTypeCreated   = "OrderCreated"
	EventTypeConfirmed = "OrderConfirmed"
	EventTypeCancelled = "OrderCancelled"
)

// AggregateType is the event_store discriminator for order streams.
const AggregateType = "Order"

// Event is the closed set of order domain events.
type Event interface {
	EventType() string
}

// Created records that a customer placed an order. First event of every
// order stream; the order starts in PENDING.
type Created struct {
	OrderID      string    `json:"order_id"`
	CustomerName string    `json:"customer_name"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	TotalPrice   float64   `json:"total_price"`
	Timestamp    time.Time `json:"timestamp"`
}

func (Created) EventType() string { return EventTypeCreated }

// Confirmed records that the inventory reservation succeeded.
type Confirmed struct {
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (Confirmed) EventType() string { return EventTypeConfirmed }

// Cancelled records the saga's compensating transaction.
type Cancelled struct {
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (Cancelled) EventType() string { return EventTypeCancelled }

// DeserializeEvent converts a stored payload back into its typed event.
func DeserializeEvent(eventType string, data []byte) (Event, error) {
	switch eventType {
	case EventTypeCreated:
		var e Created
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil

	case EventTypeConfirmed:
		var e Confirmed
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil

	case EventTypeCancelled:
		var e Cancelled
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown order event type: %s", eventType)
	}
}
