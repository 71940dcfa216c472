package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"order_saga/application/orders"
	"order_saga/domain/order"
	"order_saga/infrastructure/eventstore"
)

// OrderCommands is the write surface the order handler drives.
type OrderCommands interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*order.Order, error)
	ConfirmOrder(ctx context.Context, orderID string) (*order.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (*order.Order, error)
}

// OrderQueries is the read surface.
type OrderQueries interface {
	GetOrder(ctx context.Context, orderID string) (*orders.OrderRow, error)
	ListOrders(ctx context.Context) ([]orders.OrderRow, error)
}

// EventReader exposes the event store for the inspection endpoints.
type EventReader interface {
	Load(ctx context.Context, aggregateID string) ([]eventstore.Event, error)
	LoadAll(ctx context.Context) ([]eventstore.Event, error)
}

// OrderHandler serves the order service's command and query endpoints.
type OrderHandler struct {
	commands OrderCommands
	queries  OrderQueries
	events   EventReader
	logger   *zap.Logger
}

func NewOrderHandler(commands OrderCommands, queries OrderQueries, events EventReader, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{commands: commands, queries: queries, events: events, logger: logger}
}

// Register wires the handler into the mux.
func (h *OrderHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /commands/orders", h.createOrder)
	mux.HandleFunc("POST /commands/orders/{order_id}/confirm", h.confirmOrder)
	mux.HandleFunc("POST /commands/orders/{order_id}/cancel", h.cancelOrder)
	mux.HandleFunc("GET /queries/orders", h.listOrders)
	mux.HandleFunc("GET /queries/orders/{order_id}", h.getOrder)
	mux.HandleFunc("GET /events", h.listAllEvents)
	mux.HandleFunc("GET /events/{aggregate_id}", h.listAggregateEvents)
	mux.HandleFunc("GET /health", Health("order-service"))
}

type createOrderRequest struct {
	OrderID      string  `json:"order_id"`
	CustomerName string  `json:"customer_name"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Quantity     int     `json:"quantity"`
	TotalPrice   float64 `json:"total_price"`
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.CustomerName == "" || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "order_id, customer_name and product_id are required")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	agg, err := h.commands.CreateOrder(r.Context(), orders.CreateOrderInput{
		OrderID:      req.OrderID,
		CustomerName: req.CustomerName,
		ProductID:    req.ProductID,
		ProductName:  req.ProductName,
		Quantity:     req.Quantity,
		TotalPrice:   req.TotalPrice,
	})
	if err != nil {
		h.commandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": agg.ID,
		"status":   agg.Status,
		"version":  agg.Version,
	})
}

func (h *OrderHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	agg, err := h.commands.ConfirmOrder(r.Context(), r.PathValue("order_id"))
	if err != nil {
		h.commandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": agg.ID,
		"status":   agg.Status,
	})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agg, err := h.commands.CancelOrder(r.Context(), r.PathValue("order_id"), req.Reason)
	if err != nil {
		h.commandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": agg.ID,
		"status":   agg.Status,
	})
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	rows, err := h.queries.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("list orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	row, err := h.queries.GetOrder(r.Context(), r.PathValue("order_id"))
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		h.logger.Error("get order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *OrderHandler) listAllEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.LoadAll(r.Context())
	if err != nil {
		h.logger.Error("load all events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *OrderHandler) listAggregateEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Load(r.Context(), r.PathValue("aggregate_id"))
	if err != nil {
		h.logger.Error("load events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// commandError maps command failures onto status codes: missing aggregate is
// 404, a lost optimistic-lock race is 409, the rest is 500.
func (h *OrderHandler) commandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("order command failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
