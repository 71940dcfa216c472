package orders

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_saga/domain/order"
	"order_saga/infrastructure/eventstore"
)

func storedEvent(t *testing.T, version int, evt order.Event) eventstore.Event {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return eventstore.Event{
		AggregateID:   "order-1",
		AggregateType: order.AggregateType,
		EventType:     evt.EventType(),
		EventData:     data,
		Version:       version,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestReplayRebuildsAggregate(t *testing.T) {
	records := []eventstore.Event{
		storedEvent(t, 1, order.Created{
			OrderID:      "order-1",
			CustomerName: "alice",
			ProductID:    "product-1",
			ProductName:  "4K Monitor",
			Quantity:     2,
			TotalPrice:   900,
		}),
		storedEvent(t, 2, order.Confirmed{OrderID: "order-1"}),
	}

	agg, err := replay(records)
	require.NoError(t, err)
	assert.Equal(t, "order-1", agg.ID)
	assert.Equal(t, order.StatusConfirmed, agg.Status)
	assert.Equal(t, 2, agg.Version)
	assert.Equal(t, 900.0, agg.TotalPrice)
}

func TestReplayCancelledOrder(t *testing.T) {
	records := []eventstore.Event{
		storedEvent(t, 1, order.Created{OrderID: "order-1", CustomerName: "bob", Quantity: 1}),
		storedEvent(t, 2, order.Cancelled{OrderID: "order-1", Reason: "Inventory reservation failed"}),
	}

	agg, err := replay(records)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, agg.Status)
	assert.Equal(t, 2, agg.Version)
}

func TestReplayRejectsUnknownEventType(t *testing.T) {
	records := []eventstore.Event{{
		AggregateID: "order-1",
		EventType:   "NoSuchEvent",
		EventData:   json.RawMessage(`{}`),
		Version:     1,
	}}

	_, err := replay(records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deserialize event v1")
}
