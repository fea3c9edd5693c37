// Package ratelimit caps how often a key (a phone number) may request a code.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter reports whether one more event for key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed one-minute window shared by every API instance.
type RedisLimiter struct {
	client    *redis.Client
	maxPerMin int64
	prefix    string
}

// NewRedisLimiter creates a new RedisLimiter allowing maxPerMin events per key
// per minute. Zero or less means five.
func NewRedisLimiter(client *redis.Client, maxPerMin int) *RedisLimiter {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return &RedisLimiter{client: client, maxPerMin: int64(maxPerMin), prefix: "rl:otp:"}
}

// Allow counts one event for key in the current window. On a Redis error it
// allows the event and returns the error.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	cnt, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		if err := l.client.Expire(ctx, k, time.Minute).Err(); err != nil {
			return true, err
		}
	}
	return cnt <= l.maxPerMin, nil
}

// idleAfter is how long a bucket takes to refill completely. An idle bucket
// past this age behaves like a new one and can be dropped.
const idleAfter = time.Minute

// MemoryLimiter keeps a token bucket per key in process memory.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates a new MemoryLimiter allowing maxPerMin events per
// key per minute. Zero or less means five.
func NewMemoryLimiter(maxPerMin int) *MemoryLimiter {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(time.Minute / time.Duration(maxPerMin)),
		burst:   maxPerMin,
		now:     time.Now,
	}
}

// Allow takes a token from the bucket for key. It never returns an error.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= idleAfter {
		l.sweepLocked(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idleAfter {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Len reports how many keys are currently tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
