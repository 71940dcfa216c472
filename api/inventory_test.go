package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order_saga/application/inventory"
)

type stubInventoryCommands struct {
	reserveErr error
	releaseErr error

	reserveCnt int
	releaseCnt int
	lastQty    int
}

func (s *stubInventoryCommands) Reserve(ctx context.Context, productID, orderID string, quantity int) error {
	s.reserveCnt++
	s.lastQty = quantity
	return s.reserveErr
}

func (s *stubInventoryCommands) Release(ctx context.Context, productID, orderID string, quantity int) error {
	s.releaseCnt++
	s.lastQty = quantity
	return s.releaseErr
}

type stubInventoryQueries struct {
	row    *inventory.ProductRow
	getErr error
}

func (s *stubInventoryQueries) GetProduct(ctx context.Context, productID string) (*inventory.ProductRow, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.row, nil
}

func (s *stubInventoryQueries) ListProducts(ctx context.Context) ([]inventory.ProductRow, error) {
	if s.row == nil {
		return []inventory.ProductRow{}, nil
	}
	return []inventory.ProductRow{*s.row}, nil
}

func inventoryMux(commands *stubInventoryCommands, queries *stubInventoryQueries) *http.ServeMux {
	mux := http.NewServeMux()
	NewInventoryHandler(commands, queries, &stubEventReader{}, zap.NewNop()).Register(mux)
	return mux
}

func TestReserve(t *testing.T) {
	commands := &stubInventoryCommands{}
	mux := inventoryMux(commands, &stubInventoryQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/inventory/product-1/reserve",
		`{"order_id": "order-1", "quantity": 3}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	assert.Equal(t, 1, commands.reserveCnt)
	assert.Equal(t, 3, commands.lastQty)
}

func TestReserveInsufficientStock(t *testing.T) {
	commands := &stubInventoryCommands{
		reserveErr: &inventory.InsufficientStockError{Requested: 5, Available: 2},
	}
	mux := inventoryMux(commands, &stubInventoryQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/inventory/product-1/reserve",
		`{"order_id": "order-1", "quantity": 5}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Insufficient stock: requested=5, available=2", decodeBody(t, rec)["detail"])
}

func TestReserveUnknownProduct(t *testing.T) {
	commands := &stubInventoryCommands{reserveErr: inventory.ErrProductNotFound}
	mux := inventoryMux(commands, &stubInventoryQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/inventory/product-404/reserve",
		`{"order_id": "order-1", "quantity": 1}`)

	// An unknown product is a business rejection like insufficient stock, not
	// a 404: the saga compensates without a ReleaseInventory.
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Product not found", decodeBody(t, rec)["detail"])
}

func TestReserveValidation(t *testing.T) {
	commands := &stubInventoryCommands{}
	mux := inventoryMux(commands, &stubInventoryQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/inventory/product-1/reserve",
		`{"order_id": "order-1", "quantity": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, commands.reserveCnt)
}

func TestRelease(t *testing.T) {
	commands := &stubInventoryCommands{}
	mux := inventoryMux(commands, &stubInventoryQueries{})

	rec := doRequest(t, mux, http.MethodPost, "/commands/inventory/product-1/release",
		`{"order_id": "order-1", "quantity": 2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	assert.Equal(t, 1, commands.releaseCnt)
}

func TestGetProduct(t *testing.T) {
	queries := &stubInventoryQueries{row: &inventory.ProductRow{
		ID:          "product-1",
		ProductName: "4K Monitor",
		Quantity:    10,
		Reserved:    4,
		Available:   6,
		Price:       450,
		UpdatedAt:   time.Now().UTC(),
	}}
	mux := inventoryMux(&stubInventoryCommands{}, queries)

	rec := doRequest(t, mux, http.MethodGet, "/queries/products/product-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(6), body["available"])
}

func TestGetProductNotFound(t *testing.T) {
	queries := &stubInventoryQueries{getErr: inventory.ErrProductNotFound}
	mux := inventoryMux(&stubInventoryCommands{}, queries)

	rec := doRequest(t, mux, http.MethodGet, "/queries/products/product-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
