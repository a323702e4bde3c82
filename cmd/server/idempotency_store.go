package main

import (
	"context"
	"log/slog"

	"orderflow/cmd/server/config"
	"orderflow/internal/orders"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// buildIdempotencyStore wires the idempotency store. With REDIS_URL set the
// store lives in Redis with a TTL, so replay detection survives restarts and
// is shared across replicas; otherwise it stays in-memory.
func buildIdempotencyStore(ctx context.Context, logger *slog.Logger) (orders.IdempotencyStore, func(), error) {
	cfg, enabled, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}
	if !enabled {
		logger.Warn("REDIS_URL unset, using in-memory idempotency store")
		return orders.NewInMemoryIdempotencyStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	if cfg.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}

	pingCtx := ctx
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	store := orders.NewRedisIdempotencyStore(client, cfg.IdempotencyTTL)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	return store, cleanup, nil
}
