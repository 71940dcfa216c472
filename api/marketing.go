package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"order_saga/application/marketing"
)

// MarketingQueries is the read surface of the marketing service. The
// service has no command endpoints; it is the query side of CQRS only.
type MarketingQueries interface {
	ListCustomerSummaries(ctx context.Context) ([]marketing.CustomerSummary, error)
	GetCustomerSummary(ctx context.Context, customerName string) (*marketing.CustomerSummary, error)
	ListProductPopularity(ctx context.Context) ([]marketing.ProductPopularity, error)
	ListDailySales(ctx context.Context) ([]marketing.DailySales, error)
	GetOverview(ctx context.Context) (*marketing.Overview, error)
}

// MarketingHandler serves the marketing read model.
type MarketingHandler struct {
	queries MarketingQueries
	logger  *zap.Logger
}

func NewMarketingHandler(queries MarketingQueries, logger *zap.Logger) *MarketingHandler {
	return &MarketingHandler{queries: queries, logger: logger}
}

// Register wires the handler into the mux.
func (h *MarketingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /queries/marketing/customers", h.listCustomers)
	mux.HandleFunc("GET /queries/marketing/customers/{customer_name}", h.getCustomer)
	mux.HandleFunc("GET /queries/marketing/products", h.listProducts)
	mux.HandleFunc("GET /queries/marketing/daily", h.listDaily)
	mux.HandleFunc("GET /queries/marketing/overview", h.overview)
	mux.HandleFunc("GET /health", Health("marketing-service"))
}

func (h *MarketingHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.queries.ListCustomerSummaries(r.Context())
	if err != nil {
		h.queryError(w, "list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *MarketingHandler) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.queries.GetCustomerSummary(r.Context(), r.PathValue("customer_name"))
	if errors.Is(err, marketing.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Customer not found")
		return
	}
	if err != nil {
		h.queryError(w, "get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *MarketingHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queries.ListProductPopularity(r.Context())
	if err != nil {
		h.queryError(w, "list product popularity", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *MarketingHandler) listDaily(w http.ResponseWriter, r *http.Request) {
	days, err := h.queries.ListDailySales(r.Context())
	if err != nil {
		h.queryError(w, "list daily sales", err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *MarketingHandler) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.queries.GetOverview(r.Context())
	if err != nil {
		h.queryError(w, "overview", err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *MarketingHandler) queryError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("marketing query failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "marketing query failed")
}
