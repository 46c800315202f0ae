package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// minuteWindowTTL чуть больше минуты, чтобы ключ не пропал на границе окна.
const minuteWindowTTL = 70 * time.Second

// RateLimiter: фиксированное окно на INCR, общее для всех реплик воркера.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterWithClient(redis.NewClient(&redis.Options{Addr: addr}))
}

func NewRateLimiterWithClient(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

func BackendMinuteKey(backend string, now time.Time) string {
	return fmt.Sprintf("rl:backend:%s:%s", backend, now.UTC().Format("200601021504"))
}

// AllowBackendCall считает обращения к бэкенду в текущей минуте.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) AllowBackendCall(ctx context.Context, backend string, perMinute int64, now time.Time) (bool, int64, error) {
	return rl.Allow(ctx, BackendMinuteKey(backend, now), perMinute, minuteWindowTTL)
}

// Allow делает INCR по ключу и продлевает TTL окна.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrapf(err, "redis ratelimit %s", key)
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
