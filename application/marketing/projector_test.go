package marketing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	p := NewProjector(nil, zap.NewNop())

	err := p.HandleMessage(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed event")
}

func TestHandleMessageRejectsMalformedEventData(t *testing.T) {
	p := NewProjector(nil, zap.NewNop())

	err := p.HandleMessage(context.Background(), []byte(`{
		"event_type": "OrderCreated",
		"data": {"quantity": "not a number"}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OrderCreated")
}

func TestHandleMessageIgnoresUnknownEventType(t *testing.T) {
	// Inventory events share the bus wiring in some deployments; anything the
	// projector does not know is skipped without touching the database.
	p := NewProjector(nil, zap.NewNop())

	err := p.HandleMessage(context.Background(), []byte(`{
		"event_type": "InventoryReserved",
		"data": {"product_id": "product-1", "quantity": 2}
	}`))
	assert.NoError(t, err)
}

func TestUTCDate(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-03-15", utcDate(ts))

	assert.Equal(t, "2026-03-14", utcDate(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)))
}
