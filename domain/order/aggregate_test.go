package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvent struct{}

func (fakeEvent) EventType() string { return "Bogus" }

func TestOrderLifecycle(t *testing.T) {
	agg := New()

	err := agg.When(Created{
		OrderID:      "order-1",
		CustomerName: "alice",
		ProductID:    "product-1",
		ProductName:  "4K Monitor",
		Quantity:     2,
		TotalPrice:   900,
		Timestamp:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", agg.ID)
	assert.Equal(t, StatusPending, agg.Status)
	assert.Equal(t, 2, agg.Quantity)
	assert.Equal(t, 900.0, agg.TotalPrice)

	require.NoError(t, agg.When(Confirmed{OrderID: "order-1", Timestamp: time.Now().UTC()}))
	assert.Equal(t, StatusConfirmed, agg.Status)
}

func TestOrderCancellation(t *testing.T) {
	agg := New()
	require.NoError(t, agg.When(Created{OrderID: "order-1", CustomerName: "bob", Quantity: 1}))
	require.NoError(t, agg.When(Cancelled{OrderID: "order-1", Reason: "Inventory reservation failed"}))
	assert.Equal(t, StatusCancelled, agg.Status)
}

func TestOrderRejectsUnknownEvent(t *testing.T) {
	agg := New()
	err := agg.When(fakeEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown order event type")
}

func TestDeserializeEvent(t *testing.T) {
	evt, err := DeserializeEvent(EventTypeCreated, []byte(`{
		"order_id": "order-1",
		"customer_name": "alice",
		"product_id": "product-1",
		"product_name": "4K Monitor",
		"quantity": 2,
		"total_price": 900
	}`))
	require.NoError(t, err)

	created, ok := evt.(Created)
	require.True(t, ok)
	assert.Equal(t, "order-1", created.OrderID)
	assert.Equal(t, 2, created.Quantity)

	evt, err = DeserializeEvent(EventTypeCancelled, []byte(`{"order_id": "order-1", "reason": "Product not found"}`))
	require.NoError(t, err)
	cancelled, ok := evt.(Cancelled)
	require.True(t, ok)
	assert.Equal(t, "Product not found", cancelled.Reason)

	_, err = DeserializeEvent("NoSuchEvent", []byte(`{}`))
	require.Error(t, err)
}
