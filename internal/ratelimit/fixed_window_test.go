package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T, limit int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewRedisLimiter(client, "test:ratelimit", limit, time.Hour)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	return limiter, mr
}

func TestRedisLimiter(t *testing.T) {
	limiter, _ := newRedisLimiter(t, 2)
	ctx := context.Background()
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "ip-2") {
		t.Fatalf("other keys have their own quota")
	}
}

func TestRedisLimiterFailClosed(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 1)
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestNewRedisLimiterValidates(t *testing.T) {
	if _, err := NewRedisLimiter(nil, "p", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewRedisLimiter(client, "p", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestMemoryLimiterWindow(t *testing.T) {
	limiter, err := NewMemoryLimiter(2, time.Minute)
	if err != nil {
		t.Fatalf("new memory limiter: %v", err)
	}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	if !limiter.Allow(ctx, "a") || !limiter.Allow(ctx, "a") {
		t.Fatalf("first two requests should pass")
	}
	if limiter.Allow(ctx, "a") {
		t.Fatalf("third request should be blocked")
	}
	now = now.Add(time.Minute)
	if !limiter.Allow(ctx, "a") {
		t.Fatalf("new window should reset the quota")
	}
}
