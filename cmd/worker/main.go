// Package main is the entry point for the docflow background worker.
// It relays the transactional outbox and expires idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docflow/internal/config"
	"docflow/internal/infrastructure/storage/postgres"
	"docflow/pkg/logger"
)

const (
	cleanupEvery     = time.Hour
	purgeEvery       = 24 * time.Hour
	publishedRetains = 7 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
		Service:     "docflow-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log.WithComponent("worker"))

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	w := &worker{
		relay:        postgres.NewOutboxRelay(txm, cfg.OutboxBatchSize, postgres.LogHandler()),
		idempotency:  postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		pollInterval: cfg.OutboxPollInterval,
	}

	log.Infow("starting docflow worker",
		"poll_interval", cfg.OutboxPollInterval,
		"batch_size", cfg.OutboxBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.runRelay(gctx) })
	g.Go(func() error { return w.runCleanup(gctx) })

	if err := g.Wait(); err != nil {
		log.Errorw("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

type worker struct {
	relay        *postgres.OutboxRelay
	idempotency  *postgres.IdempotencyStore
	pollInterval time.Duration
}

// runRelay drains the outbox until ctx is cancelled. A batch that published
// anything is followed immediately by the next one.
func (w *worker) runRelay(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	purge := time.NewTicker(purgeEvery)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.drain(ctx)
		case <-purge.C:
			n, err := w.relay.PurgePublished(ctx, publishedRetains)
			if err != nil {
				logger.Warn(ctx, "purge published outbox failed", "error", err)
				continue
			}
			logger.Info(ctx, "purged published outbox messages", "count", n)
		}
	}
}

func (w *worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			logger.Error(ctx, "outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			logger.Debug(ctx, "outbox batch published", "count", n)
		}
		moved, err := w.relay.MoveToDLQ(ctx)
		if err != nil {
			logger.Error(ctx, "move outbox messages to dlq failed", "error", err)
		} else if moved > 0 {
			logger.Warn(ctx, "outbox messages moved to dlq", "count", moved)
		}
		if n == 0 {
			return
		}
	}
}

func (w *worker) runCleanup(ctx context.Context) error {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := w.idempotency.CleanupExpired(ctx)
			if err != nil {
				logger.Warn(ctx, "idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "expired idempotency keys removed", "count", n)
			}
		}
	}
}
