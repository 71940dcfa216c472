// The gateway: the frontend-facing aggregation layer. No database, no bus,
// no event stream of its own.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"order_saga/api"
	"order_saga/pkg/config"
	"order_saga/pkg/logger"
)

func main() {
	cfg := config.Load(":8000")
	log := logger.New("gateway", cfg.LogLevel)
	defer log.Sync()

	gateway := api.NewGateway(
		cfg.OrderServiceURL,
		cfg.InventoryServiceURL,
		cfg.SagaServiceURL,
		cfg.MarketingServiceURL,
		log,
	)

	mux := http.NewServeMux()
	gateway.Register(mux)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: api.CORS(mux)}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	log.Info("gateway stopped")
}
