// Package postgres holds the PostgreSQL side of the document engine: the
// connection pool, the transaction manager and the audit, outbox and
// idempotency stores that run inside its transactions.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"

	"docflow/pkg/logger"
)

// ApplicationName is reported to the server on every connection.
const ApplicationName = "docflow"

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolConfig returns the production pool settings for dsn.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:               dsn,
		MaxConns:          25,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// Pool is the shared pgx pool.
type Pool struct {
	*pgxpool.Pool
}

// Close releases every connection.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// NewPool connects, registers the numeric codec and pings the server.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod

	pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// numeric columns scan into decimal.Decimal
		pgxdecimal.Register(conn.TypeMap())
		_, err := conn.Exec(ctx, "SET application_name = '"+ApplicationName+"'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	TotalConns      int32
	AcquiredConns   int32
	IdleConns       int32
	MaxConns        int32
	AcquireCount    int64
	AcquireDuration time.Duration
}

// Stats returns the current pool usage.
func (p *Pool) Stats() PoolStats {
	s := p.Stat()
	return PoolStats{
		TotalConns:      s.TotalConns(),
		AcquiredConns:   s.AcquiredConns(),
		IdleConns:       s.IdleConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration(),
	}
}

// LogStats writes the pool usage at info level.
func (p *Pool) LogStats(ctx context.Context) {
	s := p.Stats()
	logger.Info(ctx, "database pool stats",
		"total", s.TotalConns,
		"acquired", s.AcquiredConns,
		"idle", s.IdleConns,
		"max", s.MaxConns,
		"acquire_count", s.AcquireCount)
}
