// Package inventory holds the Inventory aggregate and its events, one
// aggregate per product.
package inventory

import (
	"fmt"
)

// Inventory tracks on-hand and reserved stock for one product.
//
// Invariant: 0 <= Reserved <= Quantity at all observed times. Reservations
// are serialized by the event store's optimistic version check, so two
// concurrent reservers for the same product cannot both win.
type Inventory struct {
	ProductID string
	Quantity  int
	Reserved  int
	Version   int
}

// New returns an empty aggregate ready for replay.
func New() *Inventory {
	return &Inventory{}
}

// Available is the stock not yet held against open orders.
func (inv *Inventory) Available() int {
	return inv.Quantity - inv.Reserved
}

// When applies one event to the aggregate state.
func (inv *Inventory) When(event Event) error {
	switch e := event.(type) {
	case Reserved:
		inv.ProductID = e.ProductID
		inv.Reserved += e.Quantity

	case Released:
		inv.ProductID = e.ProductID
		inv.Reserved -= e.Quantity

	case ReservationFailed:
		// Audit-only event: no stock movement.
		inv.ProductID = e.ProductID

	default:
		return fmt.Errorf("unknown inventory event type: %T", event)
	}

	return nil
}
