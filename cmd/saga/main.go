// The saga orchestrator service: receives place-order requests from the
// gateway and drives the order and inventory authorities.
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
	"order_saga/application/saga"
	"order_saga/infrastructure/messaging"
	"order_saga/pkg/config"
	"order_saga/pkg/logger"
)

func main() {
	cfg := config.Load(":8003")
	log := logger.New("saga-service", cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := connectBus(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to message bus", zap.Error(err))
	}
	defer bus.Close()

	orchestrator := saga.NewOrchestrator(cfg.OrderServiceURL, cfg.InventoryServiceURL, bus, log)

	mux := http.NewServeMux()
	api.NewSagaHandler(orchestrator, log).Register(mux)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	waitForSignal(log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	cancel()
	log.Info("saga service stopped")
}

func connectBus(ctx context.Context, url string, log *zap.Logger) (*messaging.Bus, error) {
	var bus *messaging.Bus
	var err error
	for attempt := 1; attempt <= 10; attempt++ {
		bus, err = messaging.Connect(ctx, url, log)
		if err == nil {
			log.Info("connected to redis bus")
			return bus, nil
		}
		log.Warn("redis not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	return nil, err
}

func waitForSignal(log *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", zap.String("signal", sig.String()))
}
