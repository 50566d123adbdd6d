package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/edublog/internal/logger"
	"github.com/edublog/internal/metrics"
)

// Decision is the limiter verdict for one request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Backend() string
}

// MemoryLimiter keeps a sliding window of hits per key in process memory.
type MemoryLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	max       int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryLimiter allows max hits per key in any window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Backend names the storage behind the limiter.
func (l *MemoryLimiter) Backend() string {
	return "memory"
}

// Allow records the hit when the key is under its limit.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := prune(l.hits[key], cutoff)
	decision := Decision{Limit: l.max}
	if len(kept) < l.max {
		kept = append(kept, now)
		decision.Allowed = true
	}
	l.hits[key] = kept

	decision.Remaining = l.max - len(kept)
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if len(kept) > 0 {
		decision.Reset = kept[0].Add(l.window).Sub(now)
	}
	return decision, nil
}

func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, hits := range l.hits {
		kept := prune(hits, cutoff)
		if len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisLimiter is a fixed window counter shared by every instance using the
// same redis.
type RedisLimiter struct {
	client redisCounter
	max    int
	window time.Duration
	prefix string
}

// NewRedisLimiter allows max hits per key per window.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return newRedisLimiter(client, max, window)
}

func newRedisLimiter(client redisCounter, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window, prefix: "rate_limit"}
}

// Backend names the storage behind the limiter.
func (l *RedisLimiter) Backend() string {
	return "redis"
}

// Allow increments the window counter for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	reset := l.window
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	switch {
	case err != nil:
	case ttl == -1:
		// 首次 EXPIRE 失败会留下永不过期的 key，这里补上
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, err
		}
	case ttl > 0:
		reset = ttl
	}

	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.max),
		Limit:     l.max,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// RateLimit rejects callers over their budget with 429 and advertises the
// budget through RateLimit-* headers. Limiter failures let the request through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			metrics.RateLimitBackendErrors.Inc()
			logger.WithRequestID(GetRequestID(c)).Warn("rate limiter unavailable, allowing request",
				"backend", limiter.Backend(), "error", err)
			c.Next()
			return
		}

		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(math.Ceil(decision.Reset.Seconds()))))

		if !decision.Allowed {
			metrics.RateLimitRejections.WithLabelValues(limiter.Backend()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests, please try again later.",
				"error":   "RATE_LIMIT_EXCEEDED",
			})
			return
		}
		c.Next()
	}
}
