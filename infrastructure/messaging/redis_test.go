package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireFormat(t *testing.T) {
	env := Envelope{
		EventType: "OrderCreated",
		Data:      map[string]any{"order_id": "order-1"},
	}

	payload, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded struct {
		EventType string          `json:"event_type"`
		Data      json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "OrderCreated", decoded.EventType)
	assert.JSONEq(t, `{"order_id": "order-1"}`, string(decoded.Data))
}

func TestIsReceiveTimeout(t *testing.T) {
	timeout := &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}
	assert.True(t, isReceiveTimeout(timeout))
	assert.True(t, isReceiveTimeout(fmt.Errorf("receive: %w", timeout)))

	assert.False(t, isReceiveTimeout(errors.New("connection reset")))
	assert.False(t, isReceiveTimeout(nil))
}
