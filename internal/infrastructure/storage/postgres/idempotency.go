package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"docflow/internal/core/apperror"
)

// IdempotencyStatus is the state of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyPending IdempotencyStatus = "pending"
	IdempotencySuccess IdempotencyStatus = "success"
	IdempotencyFailed  IdempotencyStatus = "failed"
)

// stalePending is how long a pending key may stay unfinished before another
// request may reclaim it.
const stalePending = time.Minute

// IdempotencyRecord is one row of sys_idempotency.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  *int              `db:"response_status"`
	ContentType *string           `db:"response_content_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// Replay is a stored response returned for a repeated key.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps X-Idempotency-Key records.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Acquire claims key for a request. It returns a Replay when the key already
// finished, a 409 AppError while another request holds it or when the key is
// reused for a different request, and (nil, nil) when the caller owns it.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error) {
	now := s.now()
	q := s.txManager.GetQuerier(ctx)

	tag, err := q.Exec(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		key, userID, operation, IdempotencyPending, requestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	rows, err := q.Query(ctx, `
		SELECT idempotency_key, user_id, operation, status, request_hash, response,
		       response_status, response_content_type, created_at, updated_at, expires_at
		FROM sys_idempotency WHERE idempotency_key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[IdempotencyRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		// expired and cleaned between the two statements
		return nil, apperror.NewIdempotencyConflict(key)
	}
	if err != nil {
		return nil, fmt.Errorf("scan idempotency key: %w", err)
	}

	if rec.UserID != userID || rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("storedOperation", rec.Operation).
			WithDetail("requestOperation", operation)
	}

	switch rec.Status {
	case IdempotencySuccess, IdempotencyFailed:
		return replayOf(rec), nil
	default:
		if now.Sub(rec.UpdatedAt) < stalePending {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		tag, err := q.Exec(ctx, `
			UPDATE sys_idempotency SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4`,
			now, key, IdempotencyPending, rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim idempotency key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return nil, nil
	}
}

func replayOf(rec IdempotencyRecord) *Replay {
	r := &Replay{StatusCode: http.StatusOK, ContentType: "application/json", Body: rec.Response}
	if rec.StatusCode != nil && *rec.StatusCode != 0 {
		r.StatusCode = *rec.StatusCode
	}
	if rec.ContentType != nil && *rec.ContentType != "" {
		r.ContentType = *rec.ContentType
	}
	return r
}

// Complete stores the response of a successful request.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, IdempotencySuccess, statusCode, contentType, body)
}

// Fail stores the response of a request that ended with a client error.
func (s *IdempotencyStore) Fail(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, IdempotencyFailed, statusCode, contentType, body)
}

// Release drops a pending key so the request can be retried, used after
// server errors.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2`, key, IdempotencyPending)
	return err
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		status, body, statusCode, contentType, s.now(), key)
	if err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// CleanupExpired deletes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
