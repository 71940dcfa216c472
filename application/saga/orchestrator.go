// Package saga drives the order placement workflow across the order and
// inventory authorities.
//
// Orchestrated saga: the orchestrator issues each forward step over HTTP and
// runs the compensating CancelOrder when the reservation step fails. It is
// stateless between calls; progress lives only in the in-memory saga log,
// which is always returned to the caller.
package saga

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"order_saga/infrastructure/messaging"
)

// Step statuses.
const (
	StatusExecuting = "EXECUTING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Step actions as they appear in the saga log.
const (
	ActionCreateOrder      = "CreateOrder"
	ActionReserveInventory = "ReserveInventory"
	ActionConfirmOrder     = "ConfirmOrder"
	ActionCancelOrder      = "CancelOrder (COMPENSATING)"
)

// Terminal saga events, exactly one published per execution.
const (
	EventSagaCompleted   = "SagaCompleted"
	EventSagaCompensated = "SagaCompensated"
	EventSagaFailed      = "SagaFailed"
)

// Each forward step is a single attempt with this timeout; a timeout is a
// failed step and the saga compensates.
const clientTimeout = 30 * time.Second

// Step is one entry of the saga log.
type Step struct {
	Step      int       `json:"step"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Result is what every execution returns, success or not.
type Result struct {
	Success bool   `json:"success"`
	SagaLog []Step `json:"saga_log"`
}

// PlaceOrderInput carries the order the saga should place.
type PlaceOrderInput struct {
	OrderID      string  `json:"order_id"`
	CustomerName string  `json:"customer_name"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Quantity     int     `json:"quantity"`
	TotalPrice   float64 `json:"total_price"`
}

// Publisher is the slice of the message bus the orchestrator needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// Orchestrator sequences CreateOrder -> ReserveInventory -> ConfirmOrder.
type Orchestrator struct {
	orderURL     string
	inventoryURL string
	client       *http.Client
	bus          Publisher
	logger       *zap.Logger
}

func NewOrchestrator(orderURL, inventoryURL string, bus Publisher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		orderURL:     orderURL,
		inventoryURL: inventoryURL,
		client:       &http.Client{Timeout: clientTimeout},
		bus:          bus,
		logger:       logger,
	}
}

// sagaEvent is the saga_events channel payload: order_id and the full log
// ride at the top level, unlike regular event envelopes.
type sagaEvent struct {
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
	SagaLog   []Step `json:"saga_log"`
}

// Execute runs the saga once and returns the log regardless of outcome.
func (o *Orchestrator) Execute(ctx context.Context, in PlaceOrderInput) Result {
	log := make([]Step, 0, 3)

	// Step 1: create the order. Nothing has happened yet, so a failure here
	// needs no compensation.
	log = append(log, Step{Step: 1, Action: ActionCreateOrder, Status: StatusExecuting, Timestamp: time.Now().UTC()})
	if err := o.postJSON(ctx, o.orderURL+"/commands/orders", in); err != nil {
		log[len(log)-1].Status = StatusFailed
		log[len(log)-1].Error = err.Error()
		o.publishTerminal(ctx, EventSagaFailed, in.OrderID, log)
		o.logger.Warn("saga failed at CreateOrder",
			zap.String("order_id", in.OrderID),
			zap.Error(err))
		return Result{Success: false, SagaLog: log}
	}
	log[len(log)-1].Status = StatusCompleted

	// Step 2: reserve inventory. A 4xx is a business rejection (insufficient
	// stock); anything else is a transport failure. Both paths compensate,
	// only the recorded reason differs.
	log = append(log, Step{Step: 2, Action: ActionReserveInventory, Status: StatusExecuting, Timestamp: time.Now().UTC()})
	reserveURL := fmt.Sprintf("%s/commands/inventory/%s/reserve", o.inventoryURL, in.ProductID)
	err := o.postJSON(ctx, reserveURL, map[string]any{
		"order_id": in.OrderID,
		"quantity": in.Quantity,
	})
	if err != nil {
		log[len(log)-1].Status = StatusFailed
		log[len(log)-1].Error = err.Error()

		reason := fmt.Sprintf("Inventory service error: %v", err)
		if isBusinessReject(err) {
			reason = "Inventory reservation failed"
		}

		log = o.compensate(ctx, log, in.OrderID, reason)
		o.publishTerminal(ctx, EventSagaCompensated, in.OrderID, log)
		o.logger.Warn("saga compensated",
			zap.String("order_id", in.OrderID),
			zap.String("reason", reason))
		return Result{Success: false, SagaLog: log}
	}
	log[len(log)-1].Status = StatusCompleted

	// Step 3: confirm the order. A failure here leaves the order PENDING
	// with inventory reserved; the saga still reports success. Behavior
	// preserved from the source system pending a product decision.
	log = append(log, Step{Step: 3, Action: ActionConfirmOrder, Status: StatusExecuting, Timestamp: time.Now().UTC()})
	confirmURL := fmt.Sprintf("%s/commands/orders/%s/confirm", o.orderURL, in.OrderID)
	if err := o.postJSON(ctx, confirmURL, nil); err != nil {
		log[len(log)-1].Status = StatusFailed
		log[len(log)-1].Error = err.Error()
		o.logger.Error("confirm failed after reservation",
			zap.String("order_id", in.OrderID),
			zap.Error(err))
	} else {
		log[len(log)-1].Status = StatusCompleted
	}

	o.publishTerminal(ctx, EventSagaCompleted, in.OrderID, log)
	o.logger.Info("saga completed", zap.String("order_id", in.OrderID))
	return Result{Success: true, SagaLog: log}
}

// compensate runs the compensating CancelOrder and records it as step 3.
// The forward reservation either failed or is ambiguous, so no
// ReleaseInventory is issued here.
func (o *Orchestrator) compensate(ctx context.Context, log []Step, orderID, reason string) []Step {
	log = append(log, Step{Step: 3, Action: ActionCancelOrder, Status: StatusExecuting, Timestamp: time.Now().UTC()})

	cancelURL := fmt.Sprintf("%s/commands/orders/%s/cancel", o.orderURL, orderID)
	if err := o.postJSON(ctx, cancelURL, map[string]string{"reason": reason}); err != nil {
		log[len(log)-1].Status = StatusFailed
		o.logger.Error("compensation failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return log
	}

	log[len(log)-1].Status = StatusCompleted
	return log
}

func (o *Orchestrator) publishTerminal(ctx context.Context, eventType, orderID string, log []Step) {
	evt := sagaEvent{EventType: eventType, OrderID: orderID, SagaLog: log}
	if err := o.bus.Publish(ctx, messaging.ChannelSagaEvents, evt); err != nil {
		o.logger.Error("failed to publish saga event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// httpError is a non-2xx response from a downstream service.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	if e.body != "" {
		return e.body
	}
	return fmt.Sprintf("unexpected status %d", e.status)
}

// isBusinessReject reports whether err is a 4xx response, the downstream
// service saying no as opposed to being unreachable.
func isBusinessReject(err error) bool {
	he, ok := err.(*httpError)
	return ok && he.status >= 400 && he.status < 500
}

// postJSON posts a JSON body and returns nil on 2xx, *httpError on any other
// status, or the transport error.
func (o *Orchestrator) postJSON(ctx context.Context, url string, body any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		buf = bytes.NewReader(data)
	} else {
		buf = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &httpError{status: resp.StatusCode, body: string(bytes.TrimSpace(data))}
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
