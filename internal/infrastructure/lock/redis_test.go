package lock

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/core/apperror"
)

func newLocker(t *testing.T, opts Options) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, opts), mr
}

func TestAcquire_ExclusiveUntilReleased(t *testing.T) {
	l, mr := newLocker(t, Options{TTL: time.Minute})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "delivery:order-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"delivery:order-1"))

	_, err = l.Acquire(ctx, "delivery:order-1")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeLocked, appErr.Code)
	assert.Equal(t, http.StatusConflict, apperror.GetHTTPStatus(err))

	other, err := l.Acquire(ctx, "delivery:order-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(keyPrefix+"delivery:order-1"))

	again, err := l.Acquire(ctx, "delivery:order-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestAcquire_ExpiredLockCanBeTaken(t *testing.T) {
	l, mr := newLocker(t, Options{TTL: time.Second})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "delivery:order-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	second, err := l.Acquire(ctx, "delivery:order-1")
	require.NoError(t, err)

	// the first holder lost the lock; releasing is not an error
	assert.NoError(t, release(ctx))
	assert.True(t, mr.Exists(keyPrefix+"delivery:order-1"))
	require.NoError(t, second(ctx))
}

func TestAcquire_RedisDown(t *testing.T) {
	l, mr := newLocker(t, Options{TTL: time.Second})
	mr.Close()

	_, err := l.Acquire(context.Background(), "delivery:order-1")
	require.Error(t, err)
	assert.False(t, apperror.HasCode(err, apperror.CodeLocked))
}
