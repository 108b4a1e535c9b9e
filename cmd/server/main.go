// Package main is the entry point for the docflow API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"docflow/internal/config"
	"docflow/internal/domain/billing"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/catalogs/project"
	"docflow/internal/domain/delivery"
	"docflow/internal/domain/documents"
	v1 "docflow/internal/infrastructure/http/v1"
	"docflow/internal/infrastructure/http/v1/handlers"
	"docflow/internal/infrastructure/lock"
	"docflow/internal/infrastructure/numerator"
	"docflow/internal/infrastructure/storage/postgres"
	"docflow/internal/infrastructure/storage/postgres/catalog_repo"
	"docflow/internal/infrastructure/storage/postgres/document_repo"
	"docflow/pkg/logger"
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
		Service:     "docflow-api",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting docflow server", "env", cfg.AppEnv)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool)

	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Fatalw("failed to initialize audit", "error", err)
	}
	outbox := postgres.NewOutboxPublisher()
	numbers := numerator.New(func(ctx context.Context) numerator.Querier { return txm.GetQuerier(ctx) })

	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error { return pool.Ping(ctx) },
	}

	// --- Delivery lock ---
	var locker delivery.Locker = delivery.NopLocker{}
	if cfg.LockEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := lock.Ping(ctx, rdb); err != nil {
			log.Fatalw("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		opts := lock.DefaultOptions()
		opts.TTL = cfg.DeliveryLockTTL
		locker = lock.NewRedisLocker(rdb, opts)
		checks["redis"] = func(ctx context.Context) error { return lock.Ping(ctx, rdb) }
		log.Infow("distributed delivery lock enabled", "addr", cfg.RedisAddr, "ttl", opts.TTL)
	}

	// --- Repositories and services ---
	docRepo := document_repo.NewDocumentRepo(txm)
	payRepo := document_repo.NewPaymentRepo(txm)
	deliveryRepo := document_repo.NewDeliveryRepo(txm)

	clientSvc := client.NewService(catalog_repo.NewClientRepo(txm), txm)
	projectSvc := project.NewService(catalog_repo.NewProjectRepo(txm), clientSvc, txm)

	docSvc := documents.NewService(documents.Config{
		Repo:      docRepo,
		Payments:  payRepo,
		Clients:   clientSvc,
		Projects:  projectSvc,
		Numerator: numbers,
		TxManager: txm,
		Audit:     auditSvc,
		Events:    outbox,
	})
	deliverySvc := delivery.NewService(delivery.Config{
		Documents:  docSvc,
		Repo:       docRepo,
		Deliveries: deliveryRepo,
		Locker:     locker,
		TxManager:  txm,
		Audit:      auditSvc,
		Events:     outbox,
	})
	billingSvc := billing.NewService(billing.Config{
		Documents: docSvc,
		Repo:      docRepo,
		Payments:  payRepo,
		Deposits:  docRepo,
		TxManager: txm,
		Audit:     auditSvc,
		Events:    outbox,
	})

	routerCfg := v1.RouterConfig{
		Logger:       log,
		Documents:    docSvc,
		Delivery:     deliverySvc,
		Billing:      billingSvc,
		Clients:      clientSvc,
		Projects:     projectSvc,
		History:      auditSvc,
		HealthChecks: checks,
		Production:   cfg.IsProduction(),
	}
	if cfg.IdempotencyEnabled {
		routerCfg.Idempotency = postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL)
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.AppAddr, "idempotency", cfg.IdempotencyEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
