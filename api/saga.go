package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"order_saga/application/saga"
)

// SagaExecutor runs one order placement saga.
type SagaExecutor interface {
	Execute(ctx context.Context, in saga.PlaceOrderInput) saga.Result
}

// SagaHandler exposes the orchestrator over HTTP. The endpoint always
// answers 200; failure is conveyed in the result's success flag.
type SagaHandler struct {
	orchestrator SagaExecutor
	logger       *zap.Logger
}

func NewSagaHandler(orchestrator SagaExecutor, logger *zap.Logger) *SagaHandler {
	return &SagaHandler{orchestrator: orchestrator, logger: logger}
}

// Register wires the handler into the mux.
func (h *SagaHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /saga/place-order", h.placeOrder)
	mux.HandleFunc("GET /health", Health("saga-service"))
}

func (h *SagaHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in saga.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.OrderID == "" || in.ProductID == "" {
		writeError(w, http.StatusBadRequest, "order_id and product_id are required")
		return
	}

	result := h.orchestrator.Execute(r.Context(), in)
	h.logger.Info("saga executed",
		zap.String("order_id", in.OrderID),
		zap.Bool("success", result.Success))

	writeJSON(w, http.StatusOK, result)
}
