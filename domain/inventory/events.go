package inventory

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventTypeReserved          = "InventoryReserved"
	EventTypeReservationFailed = "InventoryReservationFailed"
	EventTypeReleased          = "InventoryReleased"
)

// AggregateType is the event_store discriminator for inventory streams.
// Streams are keyed by product_id.
const AggregateType = "Inventory"

// Event is the closed set of inventory domain events.
type Event interface {
	EventType() string
}

// Reserved records stock held against an open order.
type Reserved struct {
	ProductID string    `json:"product_id"`
	OrderID   string    `json:"order_id"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

func (Reserved) EventType() string { return EventTypeReserved }

// ReservationFailed records a rejected reservation. It changes no stock
// counters; it exists for the audit trail.
type ReservationFailed struct {
	ProductID         string    `json:"product_id"`
	OrderID           string    `json:"order_id"`
	QuantityRequested int       `json:"quantity_requested"`
	QuantityAvailable int       `json:"quantity_available"`
	Timestamp         time.Time `json:"timestamp"`
}

func (ReservationFailed) EventType() string { return EventTypeReservationFailed }

// Released records a reservation handed back, the compensating move for a
// cancelled order.
type Released struct {
	ProductID string    `json:"product_id"`
	OrderID   string    `json:"order_id"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

func (Released) EventType() string { return EventTypeReleased }

// DeserializeEvent converts a stored payload back into its typed event.
func DeserializeEvent(eventType string, data []byte) (Event, error) {
	switch eventType {
	case EventTypeReserved:
		var e Reserved
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil

	case EventTypeReservationFailed:
		var e ReservationFailed
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil

	case EventTypeReleased:
		var e Released
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown inventory event type: %s", eventType)
	}
}
