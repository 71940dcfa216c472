// Package order holds the Order aggregate and its events.
//
// The aggregate is never stored directly: current state is rebuilt by
// replaying the event stream in version order.
package order

import (
	"fmt"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Order is the order aggregate.
//
// Lifecycle: Created puts the order in PENDING; it transitions exactly once
// to CONFIRMED or CANCELLED and is terminal thereafter. Commands, not the
// aggregate, guard against issuing events past a terminal state.
type Order struct {
	ID           string
	CustomerName string
	ProductID    string
	ProductName  string
	Quantity     int
	TotalPrice   float64
	Status       Status
	Version      int
}

// New returns an empty aggregate ready for replay.
func New() *Order {
	return &Order{}
}

// When applies one event to the aggregate state.
func (o *Order) When(event Event) error {
	switch e := event.(type) {
	case Created:
		o.ID = e.OrderID
		o.CustomerName = e.CustomerName
		o.ProductID = e.ProductID
		o.ProductName = e.ProductName
		o.Quantity = e.Quantity
		o.TotalPrice = e.TotalPrice
		o.Status = StatusPending

	case Confirmed:
		o.Status = StatusConfirmed

	case Cancelled:
		o.Status = StatusCancelled

	default:
		return fmt.Errorf("unknown order event type: %T", event)
	}

	return nil
}
