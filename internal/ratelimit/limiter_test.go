package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "+15550001111")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := limiter.Allow(ctx, "+15550001111")
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys are independent
	ok, err = limiter.Allow(ctx, "+15550002222")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Minute, mr.TTL("rl:otp:+15550001111"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "+15550001111")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	ok, err := NewRedisLimiter(client, 1).Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter(2)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "a")
	assert.False(t, ok)

	ok, _ = limiter.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestMemoryLimiter_PrunesIdleBuckets(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(1)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		ok, _ := limiter.Allow(ctx, key)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 3, limiter.Len())

	now = now.Add(30 * time.Second)
	_, _ = limiter.Allow(ctx, "b")
	assert.Equal(t, 3, limiter.Len())

	now = now.Add(40 * time.Second)
	ok, _ = limiter.Allow(ctx, "d")
	assert.True(t, ok)
	assert.Equal(t, 2, limiter.Len(), "a and c were idle for over a minute")

	ok, _ = limiter.Allow(ctx, "a")
	assert.True(t, ok, "a pruned bucket starts full")
}
