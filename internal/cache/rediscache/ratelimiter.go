package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts hits per subject in fixed windows aligned to the epoch.
// Each window gets its own key, so a counter never outlives its window.
type RateLimiter struct {
	c      *redis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c:      redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "ratelimit",
		now:    time.Now,
	}
}

// WindowKey names the counter for subject in the window containing at.
func (rl *RateLimiter) WindowKey(scope, subject string, at time.Time, window time.Duration) string {
	n := at.UTC().UnixNano() / int64(window)
	return fmt.Sprintf("%s:%s:%s:%d", rl.prefix, scope, subject, n)
}

// Allow records one hit for subject under scope and reports whether it stays
// within limit for the current window, along with the count so far.
func (rl *RateLimiter) Allow(ctx context.Context, scope, subject string, limit int64, window time.Duration) (bool, int64, error) {
	if window <= 0 {
		return false, 0, errors.New("redis ratelimit: window must be positive")
	}
	key := rl.WindowKey(scope, subject, rl.now(), window)

	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrapf(err, "redis ratelimit %s", scope)
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
