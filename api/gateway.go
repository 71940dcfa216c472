package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	pkguuid "order_saga/pkg/uuid"
)

// Gateway is the thin request-aggregation layer the UI talks to. It fans
// requests out to the other services and hides the saga from the frontend.
// It owns no state and no event stream.
type Gateway struct {
	orderURL     string
	inventoryURL string
	sagaURL      string
	marketingURL string
	client       *http.Client
	logger       *zap.Logger
}

const gatewayTimeout = 10 * time.Second

func NewGateway(orderURL, inventoryURL, sagaURL, marketingURL string, logger *zap.Logger) *Gateway {
	return &Gateway{
		orderURL:     orderURL,
		inventoryURL: inventoryURL,
		sagaURL:      sagaURL,
		marketingURL: marketingURL,
		client:       &http.Client{Timeout: gatewayTimeout},
		logger:       logger,
	}
}

// Register wires the gateway routes into the mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", g.proxy(func() string { return g.inventoryURL + "/queries/products" }))
	mux.HandleFunc("GET /api/products/{product_id}", g.getProduct)
	mux.HandleFunc("POST /api/orders", g.placeOrder)
	mux.HandleFunc("GET /api/orders", g.proxy(func() string { return g.orderURL + "/queries/orders" }))
	mux.HandleFunc("GET /api/orders/{order_id}", g.getOrder)
	mux.HandleFunc("GET /api/dashboard", g.dashboard)
	mux.HandleFunc("GET /api/events", g.allEvents)
	mux.HandleFunc("GET /api/marketing/overview", g.proxy(func() string { return g.marketingURL + "/queries/marketing/overview" }))
	mux.HandleFunc("GET /api/marketing/customers", g.proxy(func() string { return g.marketingURL + "/queries/marketing/customers" }))
	mux.HandleFunc("GET /api/marketing/products", g.proxy(func() string { return g.marketingURL + "/queries/marketing/products" }))
	mux.HandleFunc("GET /api/marketing/daily", g.proxy(func() string { return g.marketingURL + "/queries/marketing/daily" }))
	mux.HandleFunc("GET /health", Health("gateway"))
}

// CORS allows the frontend dev server to call the gateway from another
// origin. Applied to the whole gateway mux.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type placeOrderRequest struct {
	CustomerName string `json:"customer_name"`
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
}

// placeOrder looks the product up, computes the total and delegates to the
// saga orchestrator. The frontend never learns the saga exists.
func (g *Gateway) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerName == "" || req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "customer_name, product_id and a positive quantity are required")
		return
	}

	var product struct {
		ProductName string  `json:"product_name"`
		Price       float64 `json:"price"`
	}
	status, err := g.getJSON(r, g.inventoryURL+"/queries/products/"+req.ProductID, &product)
	if err != nil {
		g.upstreamError(w, "inventory", err)
		return
	}
	if status == http.StatusNotFound {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if status != http.StatusOK {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("inventory service returned %d", status))
		return
	}

	orderID := pkguuid.New()
	sagaReq := map[string]any{
		"order_id":      orderID,
		"customer_name": req.CustomerName,
		"product_id":    req.ProductID,
		"product_name":  product.ProductName,
		"quantity":      req.Quantity,
		"total_price":   product.Price * float64(req.Quantity),
	}

	var result struct {
		Success bool            `json:"success"`
		SagaLog json.RawMessage `json:"saga_log"`
	}
	status, err = g.postJSON(r, g.sagaURL+"/saga/place-order", sagaReq, &result)
	if err != nil {
		g.upstreamError(w, "saga", err)
		return
	}
	if status != http.StatusOK {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("saga service returned %d", status))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": orderID,
		"success":  result.Success,
		"saga_log": result.SagaLog,
	})
}

func (g *Gateway) getProduct(w http.ResponseWriter, r *http.Request) {
	g.forward(w, r, g.inventoryURL+"/queries/products/"+r.PathValue("product_id"))
}

func (g *Gateway) getOrder(w http.ResponseWriter, r *http.Request) {
	g.forward(w, r, g.orderURL+"/queries/orders/"+r.PathValue("order_id"))
}

// dashboard aggregates products and orders in one response so the frontend
// needs a single round trip.
func (g *Gateway) dashboard(w http.ResponseWriter, r *http.Request) {
	var (
		wg       sync.WaitGroup
		products json.RawMessage
		orders   json.RawMessage
		prodErr  error
		ordErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, prodErr = g.getJSON(r, g.inventoryURL+"/queries/products", &products)
	}()
	go func() {
		defer wg.Done()
		_, ordErr = g.getJSON(r, g.orderURL+"/queries/orders", &orders)
	}()
	wg.Wait()

	if prodErr != nil {
		g.upstreamError(w, "inventory", prodErr)
		return
	}
	if ordErr != nil {
		g.upstreamError(w, "order", ordErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"orders":   orders,
	})
}

// allEvents merges the event streams of both authorities, tagged with the
// owning service and sorted by creation time.
func (g *Gateway) allEvents(w http.ResponseWriter, r *http.Request) {
	fetch := func(url, service string) ([]map[string]any, error) {
		var events []map[string]any
		if _, err := g.getJSON(r, url, &events); err != nil {
			return nil, err
		}
		for _, e := range events {
			e["service"] = service
		}
		return events, nil
	}

	orderEvents, err := fetch(g.orderURL+"/events", "order-service")
	if err != nil {
		g.upstreamError(w, "order", err)
		return
	}
	invEvents, err := fetch(g.inventoryURL+"/events", "inventory-service")
	if err != nil {
		g.upstreamError(w, "inventory", err)
		return
	}

	all := append(orderEvents, invEvents...)
	sortByCreatedAt(all)
	writeJSON(w, http.StatusOK, all)
}

func sortByCreatedAt(events []map[string]any) {
	key := func(e map[string]any) string {
		s, _ := e["created_at"].(string)
		return s
	}
	sort.SliceStable(events, func(i, j int) bool {
		return key(events[i]) < key(events[j])
	})
}

// proxy forwards a GET to a fixed upstream URL.
func (g *Gateway) proxy(url func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.forward(w, r, url())
	}
}

// forward relays an upstream response, body and status, to the client.
func (g *Gateway) forward(w http.ResponseWriter, r *http.Request, url string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.upstreamError(w, url, err)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (g *Gateway) getJSON(r *http.Request, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	return g.doJSON(req, out)
}

func (g *Gateway) postJSON(r *http.Request, url string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.doJSON(req, out)
}

func (g *Gateway) doJSON(req *http.Request, out any) (int, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode upstream response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (g *Gateway) upstreamError(w http.ResponseWriter, upstream string, err error) {
	g.logger.Error("upstream request failed",
		zap.String("upstream", upstream),
		zap.Error(err))
	writeError(w, http.StatusBadGateway, "upstream service unavailable")
}
