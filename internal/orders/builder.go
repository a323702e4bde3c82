package orders

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	ordersdb "orderflow/internal/db/orders"
	"orderflow/internal/downstream"
	"orderflow/internal/observability"
)

// BuildConfig holds everything BuildOrderService needs to wire a coordinator.
// Empty service URLs fall back to in-memory doubles, which keeps local runs
// and tests self-contained.
type BuildConfig struct {
	OrderStoreURL string
	InventoryURL  string
	PaymentURL    string
	ShippingURL   string

	CallTimeout time.Duration
	Reliability downstream.ReliabilityConfig

	// Idempotency defaults to the in-memory store when nil.
	Idempotency IdempotencyStore

	// CompensationDSN enables the Postgres compensation log when set.
	CompensationDSN string

	Metrics *observability.Metrics
	Events  EventSink
}

// BuildOrderService wires an OrderService from config. The returned cleanup
// closes any external resources (e.g., the compensation log DB connection).
func BuildOrderService(ctx context.Context, cfg BuildConfig, logger *slog.Logger) (*OrderService, func()) {
	if logger == nil {
		logger = slog.Default()
	}

	caller := cfg.Reliability.Wrap(downstream.NewClient(cfg.CallTimeout, logger))

	var store OrderStore
	if cfg.OrderStoreURL != "" {
		store = NewHTTPOrderStore(caller, cfg.OrderStoreURL)
	} else {
		logger.Warn("ORDER_STORE_URL unset, falling back to in-memory order store")
		store = NewInMemoryOrderStore()
	}

	var inventory InventoryClient
	if cfg.InventoryURL != "" {
		inventory = NewHTTPInventoryClient(caller, cfg.InventoryURL)
	} else {
		logger.Warn("INVENTORY_URL unset, falling back to in-memory inventory")
		inventory = NewInMemoryInventoryClient()
	}

	var payments PaymentClient
	if cfg.PaymentURL != "" {
		payments = NewHTTPPaymentClient(caller, cfg.PaymentURL)
	} else {
		logger.Warn("PAYMENT_URL unset, falling back to in-memory payments")
		payments = NewInMemoryPaymentClient()
	}

	var shipping ShippingClient
	if cfg.ShippingURL != "" {
		shipping = NewHTTPShippingClient(caller, cfg.ShippingURL)
	} else {
		logger.Warn("SHIPPING_URL unset, falling back to in-memory shipping")
		shipping = NewInMemoryShippingClient()
	}

	cleanup := func() {}
	var compLog CompensationLog = NoopCompensationLog{}

	if cfg.CompensationDSN != "" {
		sqlDB, err := sql.Open("pgx", cfg.CompensationDSN)
		if err != nil {
			logger.Warn("postgres open failed, compensation log disabled", "error", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			log, err := ordersdb.NewCompensationLogWithSchema(setupCtx, sqlDB)
			if err != nil {
				logger.Warn("postgres init failed, compensation log disabled", "error", err)
				_ = sqlDB.Close()
			} else {
				logger.Info("postgres compensation log enabled")
				compLog = log
				cleanup = func() {
					if err := sqlDB.Close(); err != nil {
						logger.Warn("close compensation log db", "error", err)
					}
				}
			}
		}
	}

	service := NewOrderService(store, inventory, payments, shipping, cfg.Idempotency, Options{
		CompensationLog: compLog,
		Metrics:         cfg.Metrics,
		Events:          cfg.Events,
		Logger:          logger,
	})
	return service, cleanup
}
