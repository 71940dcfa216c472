package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order_saga/application/orders"
	"order_saga/domain/order"
	"order_saga/infrastructure/eventstore"
)

type stubOrderCommands struct {
	createErr  error
	confirmErr error
	cancelErr  error

	lastCreate orders.CreateOrderInput
	lastCancel string
}

func (s *stubOrderCommands) CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*order.Order, error) {
	s.lastCreate = in
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &order.Order{ID: in.OrderID, Status: order.StatusPending, Version: 1}, nil
}

func (s *stubOrderCommands) ConfirmOrder(ctx context.Context, orderID string) (*order.Order, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return &order.Order{ID: orderID, Status: order.StatusConfirmed, Version: 2}, nil
}

func (s *stubOrderCommands) CancelOrder(ctx context.Context, orderID, reason string) (*order.Order, error) {
	s.lastCancel = reason
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &order.Order{ID: orderID, Status: order.StatusCancelled, Version: 2}, nil
}

type stubOrderQueries struct {
	row    *orders.OrderRow
	getErr error
}

func (s *stubOrderQueries) GetOrder(ctx context.Context, orderID string) (*orders.OrderRow, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.row, nil
}

func (s *stubOrderQueries) ListOrders(ctx context.Context) ([]orders.OrderRow, error) {
	if s.row == nil {
		return []orders.OrderRow{}, nil
	}
	return []orders.OrderRow{*s.row}, nil
}

type stubEventReader struct {
	events []eventstore.Event
}

func (s *stubEventReader) Load(ctx context.Context, aggregateID string) ([]eventstore.Event, error) {
	return s.events, nil
}

func (s *stubEventReader) LoadAll(ctx context.Context) ([]eventstore.Event, error) {
	return s.events, nil
}

func orderMux(commands *stubOrderCommands, queries *stubOrderQueries) *http.ServeMux {
	mux := http.NewServeMux()
	NewOrderHandler(commands, queries, &stubEventReader{events: []eventstore.Event{}}, zap.NewNop()).Register(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateOrder(t *testing.T) {
	commands := &stubOrderCommands{}
	mux := orderMux(commands, &stubOrderQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/orders", `{
		"order_id": "order-1",
		"customer_name": "alice",
		"product_id": "product-1",
		"product_name": "4K Monitor",
		"quantity": 2,
		"total_price": 900
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "order-1", body["order_id"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, float64(1), body["version"])
	assert.Equal(t, 2, commands.lastCreate.Quantity)
}

func TestCreateOrderValidation(t *testing.T) {
	mux := orderMux(&stubOrderCommands{}, &stubOrderQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/orders", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, mux, http.MethodPost, "/commands/orders", `{"order_id": "order-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, mux, http.MethodPost, "/commands/orders", `{
		"order_id": "order-1", "customer_name": "alice", "product_id": "product-1", "quantity": 0
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmOrderConflict(t *testing.T) {
	commands := &stubOrderCommands{
		confirmErr: fmt.Errorf("append OrderConfirmed at version 2: %w", eventstore.ErrConcurrencyConflict),
	}
	mux := orderMux(commands, &stubOrderQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/orders/order-1/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelOrderPassesReason(t *testing.T) {
	commands := &stubOrderCommands{}
	mux := orderMux(commands, &stubOrderQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/orders/order-1/cancel",
		`{"reason": "Inventory reservation failed"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Inventory reservation failed", commands.lastCancel)
	assert.Equal(t, "CANCELLED", decodeBody(t, rec)["status"])
}

func TestGetOrderNotFound(t *testing.T) {
	queries := &stubOrderQueries{getErr: fmt.Errorf("%w: order-404", orders.ErrNotFound)}
	mux := orderMux(&stubOrderCommands{}, queries)

	rec := doRequest(t, mux, http.MethodGet, "/queries/orders/order-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", decodeBody(t, rec)["detail"])
}

func TestConfirmMissingOrder(t *testing.T) {
	commands := &stubOrderCommands{confirmErr: orders.ErrNotFound}
	mux := orderMux(commands, &stubOrderQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/orders/order-404/confirm", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
