// Package numerator allocates official document numbers from the
// sys_sequences table.
package numerator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	core "docflow/internal/core/numerator"
)

// Querier is the part of pgx the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for a call, usually the transaction in ctx.
type QuerierFunc func(ctx context.Context) Querier

// Service allocates gapless yearly numbers. Next must run inside the
// business transaction: the sequence row stays locked until commit, so a
// rolled back document gives its number back.
type Service struct {
	querier QuerierFunc
	configs map[core.Category]core.Config
}

var _ core.Generator = (*Service)(nil)

// New creates a service using querier for every statement.
func New(querier QuerierFunc) *Service {
	return &Service{querier: querier, configs: map[core.Category]core.Config{}}
}

// Configure overrides the format of one category.
func (s *Service) Configure(c core.Category, cfg core.Config) {
	s.configs[c] = cfg
}

func (s *Service) config(c core.Category) core.Config {
	if cfg, ok := s.configs[c]; ok {
		return cfg
	}
	return core.DefaultConfig(c)
}

// Next implements numerator.Generator.
func (s *Service) Next(ctx context.Context, c core.Category, at time.Time) (string, error) {
	cfg := s.config(c)
	key := cfg.Key(at)

	var n int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val`, key).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next number %s: %w", key, err)
	}
	return cfg.Format(at, n), nil
}

// Peek implements numerator.Generator.
func (s *Service) Peek(ctx context.Context, c core.Category, at time.Time) (string, error) {
	cfg := s.config(c)
	key := cfg.Key(at)

	var n int64
	err := s.querier(ctx).QueryRow(ctx,
		`SELECT current_val FROM sys_sequences WHERE key = $1`, key).Scan(&n)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("peek number %s: %w", key, err)
	}
	return cfg.Format(at, n+1), nil
}

// SetCurrent moves a sequence so the next number is value+1. Used when
// importing documents numbered elsewhere.
func (s *Service) SetCurrent(ctx context.Context, c core.Category, at time.Time, value int64) error {
	key := s.config(c).Key(at)
	var got int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val`, key, value).Scan(&got)
	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}
