package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order_saga/application/saga"
)

type stubExecutor struct {
	result saga.Result
	lastIn saga.PlaceOrderInput
}

func (s *stubExecutor) Execute(ctx context.Context, in saga.PlaceOrderInput) saga.Result {
	s.lastIn = in
	return s.result
}

func sagaMux(executor *stubExecutor) *http.ServeMux {
	mux := http.NewServeMux()
	NewSagaHandler(executor, zap.NewNop()).Register(mux)
	return mux
}

func TestPlaceOrderAlwaysAnswers200(t *testing.T) {
	executor := &stubExecutor{result: saga.Result{
		Success: false,
		SagaLog: []saga.Step{
			{Step: 1, Action: saga.ActionCreateOrder, Status: saga.StatusCompleted},
			{Step: 2, Action: saga.ActionReserveInventory, Status: saga.StatusFailed},
			{Step: 3, Action: saga.ActionCancelOrder, Status: saga.StatusCompleted},
		},
	}}
	mux := sagaMux(executor)

	rec := doRequest(t, mux, http.MethodPost, "/saga/place-order", `{
		"order_id": "order-1",
		"customer_name": "alice",
		"product_id": "product-1",
		"product_name": "4K Monitor",
		"quantity": 2,
		"total_price": 900
	}`)

	// Even a compensated saga is a handled outcome, not an HTTP error.
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Len(t, body["saga_log"], 3)
	assert.Equal(t, "order-1", executor.lastIn.OrderID)
}

func TestPlaceOrderValidation(t *testing.T) {
	mux := sagaMux(&stubExecutor{})

	rec := doRequest(t, mux, http.MethodPost, "/saga/place-order", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, mux, http.MethodPost, "/saga/place-order", `{"customer_name": "alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
