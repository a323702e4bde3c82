package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderflow/cmd/server/config"
	"orderflow/internal/adapters/httpapi"
	"orderflow/internal/downstream"
	"orderflow/internal/observability"
	"orderflow/internal/orders"
	"orderflow/internal/realtime"
	"orderflow/internal/telemetry"

	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()
	logger := telemetry.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	serverCfg := config.LoadServer()
	servicesCfg, err := config.LoadServices()
	if err != nil {
		return err
	}
	reliabilityCfg, err := downstream.LoadReliabilityConfig()
	if err != nil {
		return err
	}

	idempotency, cleanupIdem, err := buildIdempotencyStore(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanupIdem()

	metrics := observability.NewMetrics()

	hub := realtime.NewHub()
	go hub.Run()

	service, cleanupService := orders.BuildOrderService(ctx, orders.BuildConfig{
		OrderStoreURL:   servicesCfg.OrderStoreURL,
		InventoryURL:    servicesCfg.InventoryURL,
		PaymentURL:      servicesCfg.PaymentURL,
		ShippingURL:     servicesCfg.ShippingURL,
		CallTimeout:     servicesCfg.CallTimeout,
		Reliability:     reliabilityCfg,
		Idempotency:     idempotency,
		CompensationDSN: servicesCfg.CompensationDSN,
		Metrics:         metrics,
		Events:          realtime.NewStatusNotifier(hub, logger),
	}, logger)
	defer cleanupService()

	handler := httpapi.NewHandler(service, hub, logger)
	srv := &http.Server{
		Addr:    serverCfg.Addr,
		Handler: httpapi.NewRouter(handler, logger),
	}

	obsSrv := startObservabilityServer(metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", serverCfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		metrics.MarkShutdown(metrics.Snapshot().InFlight)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		if obsSrv != nil {
			obsCtx, obsCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer obsCancel()
			_ = obsSrv.Shutdown(obsCtx)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func startObservabilityServer(metrics *observability.Metrics, logger *slog.Logger) *http.Server {
	cfg := config.LoadObservability()
	if cfg.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("observability server error", "error", err)
		}
	}()

	return srv
}
