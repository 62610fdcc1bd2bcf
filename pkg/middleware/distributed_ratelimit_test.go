package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	}, "test")

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}
	ok, err := limiter.Allow(ctx, "ip:1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, "ip:1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	ttl, err := limiter.TTL(ctx, "ip:1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
	assert.True(t, mr.Exists("test:ip:1"))

	// Window expiry resets the count.
	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "ip:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedRateLimiter_ResetAndRemaining(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	limiter := NewDistributedRateLimiter(client, nil, "")

	remaining, err := limiter.Remaining(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 25, remaining)

	_, err = limiter.Allow(ctx, "fresh")
	require.NoError(t, err)
	remaining, err = limiter.Remaining(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 24, remaining)

	require.NoError(t, limiter.Reset(ctx, "fresh"))
	remaining, err = limiter.Remaining(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 25, remaining)
	assert.NoError(t, limiter.HealthCheck(ctx))
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	limiter := NewDistributedRateLimiter(client, nil, "test")
	mr.Close()

	_, err = limiter.Allow(context.Background(), "ip:1")
	assert.Error(t, err)
}
