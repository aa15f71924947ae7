package pinstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newMemory(c *clock) *MemoryStore {
	s := NewMemoryStore(10 * time.Minute)
	s.now = c.now
	return s
}

func newRedis(t *testing.T, c *clock) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s, err := NewRedisStore(client, "test:pin", 10*time.Minute)
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	s.now = c.now
	return s
}

func stores(t *testing.T, c *clock) map[string]Store {
	return map[string]Store{
		"memory": newMemory(c),
		"redis":  newRedis(t, c),
	}
}

func TestPinLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t, &clock{t: time.Now()}) {
		t.Run(name, func(t *testing.T) {
			code, err := s.Issue(ctx, "Maria@Example.com")
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			if len(code) != CodeLength {
				t.Fatalf("expected %d digit code, got %q", CodeLength, code)
			}
			if err := s.Consume(ctx, "maria@example.com"); !errors.Is(err, ErrNotVerified) {
				t.Fatalf("consume before verify should fail, got %v", err)
			}
			if err := s.Verify(ctx, "maria@example.com", "not-it"); !errors.Is(err, ErrPinInvalid) {
				t.Fatalf("expected ErrPinInvalid, got %v", err)
			}
			if err := s.Verify(ctx, "maria@example.com", code); err != nil {
				t.Fatalf("verify: %v", err)
			}
			if err := s.Consume(ctx, "maria@example.com"); err != nil {
				t.Fatalf("consume: %v", err)
			}
			if err := s.Consume(ctx, "maria@example.com"); !errors.Is(err, ErrNoPin) {
				t.Fatalf("second consume should find no pin, got %v", err)
			}
		})
	}
}

func TestPinExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Now()}
	for name, s := range stores(t, c) {
		t.Run(name, func(t *testing.T) {
			c.t = time.Now()
			code, err := s.Issue(ctx, "maria@example.com")
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			c.t = c.t.Add(11 * time.Minute)
			if err := s.Verify(ctx, "maria@example.com", code); !errors.Is(err, ErrPinExpired) {
				t.Fatalf("expected ErrPinExpired, got %v", err)
			}
			if err := s.Consume(ctx, "maria@example.com"); err == nil {
				t.Fatalf("reset after expiry must be rejected")
			}
		})
	}
}

func TestVerifiedPinStillExpires(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Now()}
	s := newMemory(c)
	code, err := s.Issue(ctx, "maria@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := s.Verify(ctx, "maria@example.com", code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	c.t = c.t.Add(10 * time.Minute)
	if err := s.Consume(ctx, "maria@example.com"); !errors.Is(err, ErrPinExpired) {
		t.Fatalf("expected ErrPinExpired, got %v", err)
	}
}

func TestReissueReplacesPreviousPin(t *testing.T) {
	ctx := context.Background()
	s := newMemory(&clock{t: time.Now()})
	first, err := s.Issue(ctx, "maria@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := s.Issue(ctx, "maria@example.com")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if first == second {
		t.Skip("random codes collided")
	}
	if err := s.Verify(ctx, "maria@example.com", first); !errors.Is(err, ErrPinInvalid) {
		t.Fatalf("old pin should no longer match, got %v", err)
	}
	if err := s.Verify(ctx, "maria@example.com", second); err != nil {
		t.Fatalf("new pin should match: %v", err)
	}
}
