package pinstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares PINs across API replicas. Keys expire with the PIN.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("pin store redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "despachante:pin"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}, nil
}

func (s *RedisStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateNumericCode(CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	e, err := newEntry(code, s.now().UTC(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal pin: %w", err)
	}
	if err := s.client.Set(ctx, s.key(email), raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store pin: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Verify(ctx context.Context, email, code string) error {
	e, err := s.load(ctx, email)
	if err != nil {
		return err
	}
	if !e.matches(code) {
		return ErrPinInvalid
	}
	e.Verified = true
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal pin: %w", err)
	}
	if err := s.client.Set(ctx, s.key(email), raw, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("store pin: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, email string) error {
	e, err := s.load(ctx, email)
	if err != nil {
		return err
	}
	if !e.Verified {
		return ErrNotVerified
	}
	n, err := s.client.Del(ctx, s.key(email)).Result()
	if err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	if n == 0 {
		// Consumed concurrently by another request.
		return ErrNoPin
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, email string) (entry, error) {
	raw, err := s.client.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entry{}, ErrNoPin
	}
	if err != nil {
		return entry{}, fmt.Errorf("load pin: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return entry{}, fmt.Errorf("unmarshal pin: %w", err)
	}
	if e.expired(s.now().UTC()) {
		_ = s.client.Del(ctx, s.key(email)).Err()
		return entry{}, ErrPinExpired
	}
	return e, nil
}

func (s *RedisStore) key(email string) string {
	return s.prefix + ":" + emailKey(email)
}
