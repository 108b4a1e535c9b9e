package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/apperror"
	appctx "docflow/internal/core/context"
	"docflow/internal/infrastructure/storage/postgres"
	"docflow/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore is the persistence behind X-Idempotency-Key.
// *postgres.IdempotencyStore implements it.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key, userID, operation, requestHash string) (*postgres.Replay, error)
	Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	Fail(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	Release(ctx context.Context, key string) error
}

// Idempotency replays the stored response of a POST, PUT or PATCH repeated
// with the same X-Idempotency-Key. Requests without the header pass through.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("cannot read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("maxBytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		hash := sha256.Sum256(body)
		operation := c.Request.Method + " " + c.FullPath() + " " + c.Request.URL.Path

		replay, err := store.Acquire(ctx, key, appctx.GetUserID(ctx), operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			logger.Info(ctx, "idempotent replay", "key", key, "status", replay.StatusCode)
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)
		c.Next()
	}
}

func idempotencyFrom(c *gin.Context) (IdempotencyStore, string, bool) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return nil, "", false
	}
	v, _ := c.Get(ctxIdempotencyStore)
	store, ok := v.(IdempotencyStore)
	return store, key, ok && store != nil
}

// CompleteIdempotency stores a successful response for replay.
// It is a no-op when the request carries no key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.Complete(c.Request.Context(), key, statusCode, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "store idempotent response failed", "key", key, "error", err)
	}
}

// failIdempotency stores a client error; a retry replays it.
func failIdempotency(c *gin.Context, statusCode int, response any) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	body, err := json.Marshal(response)
	if err != nil {
		logger.Warn(c.Request.Context(), "marshal idempotent failure failed", "key", key, "error", err)
		return
	}
	if err := store.Fail(c.Request.Context(), key, statusCode, "application/json; charset=utf-8", body); err != nil {
		logger.Warn(c.Request.Context(), "store idempotent failure failed", "key", key, "error", err)
	}
}

// releaseIdempotency frees the key after a server error so the client may retry.
func releaseIdempotency(c *gin.Context) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.Release(context.WithoutCancel(c.Request.Context()), key); err != nil {
		logger.Warn(c.Request.Context(), "release idempotency key failed", "key", key, "error", err)
	}
}
