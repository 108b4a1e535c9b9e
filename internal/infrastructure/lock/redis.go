// Package lock provides the Redis lock that serializes deliveries of one
// purchase order across server instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"docflow/internal/core/apperror"
	"docflow/internal/domain/delivery"
	"docflow/pkg/logger"
)

// Keys are namespaced so the lock can share a Redis database.
const keyPrefix = "docflow:lock:"

// Options tunes how long a lock lives and how long Acquire waits for it.
type Options struct {
	TTL        time.Duration
	RetryEvery time.Duration
	MaxRetries int
}

// DefaultOptions holds a lock for 30s and waits up to about a second.
func DefaultOptions() Options {
	return Options{TTL: 30 * time.Second, RetryEvery: 100 * time.Millisecond, MaxRetries: 10}
}

// RedisLocker implements delivery.Locker with redislock.
type RedisLocker struct {
	client *redislock.Client
	opts   Options
}

var _ delivery.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker over rdb.
func NewRedisLocker(rdb redis.UniversalClient, opts Options) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = DefaultOptions().TTL
	}
	return &RedisLocker{client: redislock.New(rdb), opts: opts}
}

// Acquire implements delivery.Locker. A lock still held after the retries
// yields a 409 RESOURCE_LOCKED error.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	var retry redislock.RetryStrategy = redislock.NoRetry()
	if l.opts.MaxRetries > 0 && l.opts.RetryEvery > 0 {
		retry = redislock.LimitRetry(redislock.LinearBackoff(l.opts.RetryEvery), l.opts.MaxRetries)
	}

	lk, err := l.client.Obtain(ctx, keyPrefix+key, l.opts.TTL, &redislock.Options{RetryStrategy: retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperror.NewLocked(key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		err := lk.Release(context.WithoutCancel(ctx))
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// expired while the delivery ran; row locks still protected it
			logger.Warn(ctx, "delivery lock expired before release", "key", key)
			return nil
		}
		return err
	}, nil
}

// Ping checks the Redis connection for readiness probes.
func Ping(ctx context.Context, rdb redis.UniversalClient) error {
	return rdb.Ping(ctx).Err()
}
