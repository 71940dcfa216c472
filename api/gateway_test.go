package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGatewayPlaceOrderComputesTotal(t *testing.T) {
	inventory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/queries/products/product-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "product-1", "product_name": "4K Monitor", "price": 450, "quantity": 10}`))
	}))
	defer inventory.Close()

	var sagaReq map[string]any
	saga := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sagaReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "saga_log": []}`))
	}))
	defer saga.Close()

	g := NewGateway("", inventory.URL, saga.URL, "", zap.NewNop())
	mux := http.NewServeMux()
	g.Register(mux)

	rec := doRequest(t, mux, http.MethodPost, "/api/orders",
		`{"customer_name": "alice", "product_id": "product-1", "quantity": 2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["order_id"])

	// Price comes from the read model, never from the client.
	assert.Equal(t, float64(900), sagaReq["total_price"])
	assert.Equal(t, "4K Monitor", sagaReq["product_name"])
	assert.Equal(t, body["order_id"], sagaReq["order_id"])
}

func TestGatewayPlaceOrderUnknownProduct(t *testing.T) {
	inventory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Product not found"}`))
	}))
	defer inventory.Close()

	g := NewGateway("", inventory.URL, "http://saga.invalid", "", zap.NewNop())
	mux := http.NewServeMux()
	g.Register(mux)

	rec := doRequest(t, mux, http.MethodPost, "/api/orders",
		`{"customer_name": "alice", "product_id": "product-404", "quantity": 1}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeBody(t, rec)["detail"])
}

func TestGatewayPlaceOrderValidation(t *testing.T) {
	g := NewGateway("", "", "", "", zap.NewNop())
	mux := http.NewServeMux()
	g.Register(mux)

	rec := doRequest(t, mux, http.MethodPost, "/api/orders", `{"customer_name": "alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(http.NewServeMux())

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSortByCreatedAt(t *testing.T) {
	events := []map[string]any{
		{"event_type": "InventoryReserved", "created_at": "2026-03-14T10:00:02Z"},
		{"event_type": "OrderCreated", "created_at": "2026-03-14T10:00:01Z"},
		{"event_type": "OrderConfirmed", "created_at": "2026-03-14T10:00:03Z"},
	}

	sortByCreatedAt(events)

	assert.Equal(t, "OrderCreated", events[0]["event_type"])
	assert.Equal(t, "InventoryReserved", events[1]["event_type"])
	assert.Equal(t, "OrderConfirmed", events[2]["event_type"])
}
