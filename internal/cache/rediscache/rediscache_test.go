package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "cargo:code:X")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "cargo:code:X", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "cargo:code:X")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Del(ctx, "cargo:code:X", "cargo:code:missing"))
	_, ok, err = c.Get(ctx, "cargo:code:X")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Del(ctx))
}

func TestRedisCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.Error(t, c.Set(context.Background(), "k", []byte("v"), time.Minute))
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	rl.now = func() time.Time { return time.Unix(600, 0) }
	t.Cleanup(func() { _ = rl.Close() })

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "track", "192.0.2.1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "track", "192.0.2.1", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "track", "192.0.2.1", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	// other subjects have their own counter
	ok, n, _ = rl.Allow(ctx, "track", "192.0.2.2", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	require.True(t, mr.Exists("ratelimit:track:192.0.2.1:10"))
	require.Equal(t, time.Minute, mr.TTL("ratelimit:track:192.0.2.1:10"))
}

func TestRateLimiter_NextWindowStartsOver(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	at := time.Unix(659, 0)
	rl.now = func() time.Time { return at }

	ctx := context.Background()
	ok, _, _ := rl.Allow(ctx, "track", "ip", 1, time.Minute)
	require.True(t, ok)
	ok, _, _ = rl.Allow(ctx, "track", "ip", 1, time.Minute)
	require.False(t, ok)

	at = time.Unix(660, 0)
	ok, n, err := rl.Allow(ctx, "track", "ip", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestRateLimiter_WindowKey(t *testing.T) {
	rl := &RateLimiter{prefix: "ratelimit"}
	require.Equal(t, "ratelimit:track:ip:10", rl.WindowKey("track", "ip", time.Unix(600, 0), time.Minute))
	require.Equal(t, "ratelimit:track:ip:10", rl.WindowKey("track", "ip", time.Unix(659, 999), time.Minute))
	require.Equal(t, "ratelimit:login:a:0", rl.WindowKey("login", "a", time.Unix(59, 0), time.Minute))

	_, _, err := rl.Allow(context.Background(), "track", "ip", 1, 0)
	require.Error(t, err)
}
