package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/conclave-hq/conclave/config"
	"github.com/conclave-hq/conclave/credentials"
	"github.com/conclave-hq/conclave/pkg/activity"
	"github.com/conclave-hq/conclave/pkg/db"
	"github.com/conclave-hq/conclave/pkg/inference"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
	"github.com/conclave-hq/conclave/pkg/meeting/lifecycle"
	"github.com/conclave-hq/conclave/pkg/notify"
	"github.com/conclave-hq/conclave/pkg/observability"
	"github.com/conclave-hq/conclave/pkg/queue"
	"github.com/conclave-hq/conclave/pkg/quota"
)

const (
	dbConnectAttempts = 5
	dbConnectDelay    = 2 * time.Second
)

// runtime bundles the backends shared by every command that touches live
// state: configuration, logging, postgres, redis, and the stores built on
// them. Commands construct one runtime, use it, and Close it.
type runtime struct {
	cfg     *config.Config
	logger  logging.Logger
	pool    *pgxpool.Pool
	rdb     *redis.Client
	metrics *observability.Metrics
	tracer  *observability.Tracer

	store    meeting.Store
	notifier notify.Store
	recorder activity.Store
	queue    queue.Queue
	limiter  quota.Limiter

	base inference.Client
}

// newRuntime loads configuration and connects the shared backends.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)
	logging.SetGlobal(logger)

	pool, err := db.ConnectWithRetry(ctx, cfg.Database, dbConnectAttempts, dbConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		db.Close(pool)
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close(pool)
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Address, err)
	}

	metrics := observability.DefaultMetrics()
	if _, err := db.RegisterPoolStatsCollector(pool, "conclave", "conclave", prometheus.DefaultRegisterer); err != nil {
		logger.Warn("Failed to register pool stats collector", logging.Err(err))
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		rdb:      rdb,
		metrics:  metrics,
		tracer:   observability.NewTracer(),
		store:    meeting.NewPostgresStore(pool, logger),
		notifier: notify.NewPostgresStore(pool, logger),
		recorder: activity.NewPostgresStore(pool, logger),
		queue:    queue.NewRedisQueue(rdb, queue.DefaultConfig()),
		limiter:  quota.NewRedisLimiter(rdb, cfg.Quota.Window, cfg.Quota.Limit),
	}, nil
}

// staged returns the inference client instrumented under the given stage
// label, resolving the API key on first use so commands that never reach the
// model work without one.
func (r *runtime) staged(stage string) (inference.Client, error) {
	if r.base == nil {
		store, err := credentials.NewStore()
		if err != nil {
			return nil, fmt.Errorf("initializing credential store: %w", err)
		}
		apiKey, err := store.ResolveAPIKey()
		if err != nil {
			return nil, fmt.Errorf("resolving inference API key (set %s or run 'conclave auth set-key'): %w",
				credentials.APIKeyEnvVar, err)
		}
		r.base = inference.NewGeminiClient(apiKey, r.cfg.Inference.Model, &inference.GeminiOptions{
			Endpoint: r.cfg.Inference.Endpoint,
			Logger:   r.logger,
		})
	}
	return inference.Instrument(r.base, r.metrics, stage), nil
}

// controller builds the lifecycle controller over the runtime's backends.
func (r *runtime) controller() *lifecycle.Controller {
	return lifecycle.NewController(r.store, r.queue, r.logger)
}

// Close releases the postgres and redis connections.
func (r *runtime) Close() {
	if r.queue != nil {
		_ = r.queue.Close()
	}
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
	db.Close(r.pool)
}

// newLogger builds the process logger from the logging config section.
func newLogger(cfg *config.Config) logging.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.ServiceName = "conclave"
	if cfg.Logging.Level != "" {
		logCfg.Level = logging.Level(cfg.Logging.Level)
	}
	logCfg.JSONFormat = cfg.Logging.Format != "console"
	return logging.NewLogger(logCfg)
}

// ensureSchema applies the DDL for every table the stores use. All
// statements are idempotent.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{meeting.Schema(), notify.Schema(), activity.Schema()} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}
