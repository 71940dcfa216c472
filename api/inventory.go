package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"order_saga/application/inventory"
	"order_saga/infrastructure/eventstore"
)

// InventoryCommands is the write surface the inventory handler drives.
type InventoryCommands interface {
	Reserve(ctx context.Context, productID, orderID string, quantity int) error
	Release(ctx context.Context, productID, orderID string, quantity int) error
}

// InventoryQueries is the read surface.
type InventoryQueries interface {
	GetProduct(ctx context.Context, productID string) (*inventory.ProductRow, error)
	ListProducts(ctx context.Context) ([]inventory.ProductRow, error)
}

// InventoryHandler serves the inventory service's command and query
// endpoints.
type InventoryHandler struct {
	commands InventoryCommands
	queries  InventoryQueries
	events   EventReader
	logger   *zap.Logger
}

func NewInventoryHandler(commands InventoryCommands, queries InventoryQueries, events EventReader, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{commands: commands, queries: queries, events: events, logger: logger}
}

// Register wires the handler into the mux.
func (h *InventoryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /commands/inventory/{product_id}/reserve", h.reserve)
	mux.HandleFunc("POST /commands/inventory/{product_id}/release", h.release)
	mux.HandleFunc("GET /queries/products", h.listProducts)
	mux.HandleFunc("GET /queries/products/{product_id}", h.getProduct)
	mux.HandleFunc("GET /events", h.listAllEvents)
	mux.HandleFunc("GET /events/{aggregate_id}", h.listAggregateEvents)
	mux.HandleFunc("GET /health", Health("inventory-service"))
}

type reservationRequest struct {
	OrderID  string `json:"order_id"`
	Quantity int    `json:"quantity"`
}

func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	err := h.commands.Reserve(r.Context(), r.PathValue("product_id"), req.OrderID, req.Quantity)
	if err != nil {
		var insufficient *inventory.InsufficientStockError
		switch {
		// Business rejections answer 409 with the reason the saga records.
		case errors.As(err, &insufficient):
			writeError(w, http.StatusConflict, insufficient.Error())
		case errors.Is(err, inventory.ErrProductNotFound):
			writeError(w, http.StatusConflict, inventory.ErrProductNotFound.Error())
		case errors.Is(err, eventstore.ErrConcurrencyConflict):
			h.logger.Warn("reservation lost version race", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			h.logger.Error("reserve failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.commands.Release(r.Context(), r.PathValue("product_id"), req.OrderID, req.Quantity)
	if err != nil {
		h.logger.Error("release failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *InventoryHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.queries.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *InventoryHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	row, err := h.queries.GetProduct(r.Context(), r.PathValue("product_id"))
	if errors.Is(err, inventory.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.logger.Error("get product failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *InventoryHandler) listAllEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.LoadAll(r.Context())
	if err != nil {
		h.logger.Error("load all events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *InventoryHandler) listAggregateEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Load(r.Context(), r.PathValue("aggregate_id"))
	if err != nil {
		h.logger.Error("load events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
