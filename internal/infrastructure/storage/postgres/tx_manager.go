package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docflow/internal/core/tx"
	"docflow/pkg/logger"
)

var tracer = otel.Tracer("docflow/tx")

var _ tx.Manager = (*TxManager)(nil)

// TxOptions configures one transaction.
type TxOptions struct {
	IsolationLevel pgx.TxIsoLevel
	AccessMode     pgx.TxAccessMode

	// StatementTimeout is applied with SET LOCAL; zero disables it.
	StatementTimeout time.Duration

	// Savepoint wraps a nested call in its own savepoint so its failure
	// does not abort the outer transaction.
	Savepoint bool
}

// DefaultTxOptions is read committed, read-write with a 30s statement timeout.
// Document writes lock their rows with SELECT ... FOR UPDATE, which is
// enough at this level.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// Querier is the subset of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs functions inside pgx transactions carried by the context.
type TxManager struct {
	pool       *pgxpool.Pool
	savepoints atomic.Uint64
}

// NewTxManager creates a manager over pool.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool}
}

type txKey struct{}

// RunInTransaction implements tx.Manager with DefaultTxOptions.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, DefaultTxOptions(), fn)
}

// RunInTransactionWithOptions runs fn in a transaction. A transaction already
// in ctx is reused; with opts.Savepoint the nested call gets a savepoint.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "db.transaction", trace.WithAttributes(
		attribute.String("db.tx.isolation", string(opts.IsolationLevel)),
		attribute.String("db.tx.access", string(opts.AccessMode)),
	))
	defer span.End()

	var err error
	if current := txFrom(ctx); current != nil {
		span.SetAttributes(attribute.Bool("db.tx.nested", true))
		err = m.nested(ctx, current, opts, fn)
	} else {
		err = m.begin(ctx, opts, fn)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}
	return err
}

func (m *TxManager) begin(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	t, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: opts.IsolationLevel, AccessMode: opts.AccessMode})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if opts.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", opts.StatementTimeout.Milliseconds())
		if _, err := t.Exec(ctx, stmt); err != nil {
			m.rollback(ctx, t, err)
			return fmt.Errorf("set statement timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		m.rollback(ctx, t, err)
		return err
	}
	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback runs on a context that survives cancellation of the request.
func (m *TxManager) rollback(ctx context.Context, t pgx.Tx, cause error) {
	if err := t.Rollback(context.WithoutCancel(ctx)); err != nil {
		logger.Error(ctx, "rollback failed", "error", err, "cause", cause)
	}
}

func (m *TxManager) nested(ctx context.Context, current pgx.Tx, opts TxOptions, fn func(ctx context.Context) error) error {
	if !opts.Savepoint {
		return fn(ctx)
	}

	name := fmt.Sprintf("sp_%d", m.savepoints.Add(1))
	if _, err := current.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := current.Exec(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			logger.Error(ctx, "rollback to savepoint failed", "savepoint", name, "error", rbErr)
		}
		return err
	}
	if _, err := current.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// ReadOnly runs fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := DefaultTxOptions()
	opts.AccessMode = pgx.ReadOnly
	return m.RunInTransactionWithOptions(ctx, opts, fn)
}

// InTransaction reports whether ctx carries a transaction.
func (m *TxManager) InTransaction(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := txFrom(ctx); t != nil {
		return t
	}
	return m.pool
}

func txFrom(ctx context.Context) pgx.Tx {
	t, _ := ctx.Value(txKey{}).(pgx.Tx)
	return t
}
