package pinstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a process-local TTL map. Expired entries are dropped when
// touched and swept on every Issue.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// NewMemoryStore builds a store; ttl <= 0 means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// Issue replaces any previous PIN for email and returns the new code.
func (m *MemoryStore) Issue(_ context.Context, email string) (string, error) {
	code, err := generateNumericCode(CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	now := m.now()
	e, err := newEntry(code, now, m.ttl)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, old := range m.entries {
		if old.expired(now) {
			delete(m.entries, k)
		}
	}
	m.entries[emailKey(email)] = e
	return code, nil
}

func (m *MemoryStore) Verify(_ context.Context, email, code string) error {
	key := emailKey(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return ErrNoPin
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return ErrPinExpired
	}
	if !e.matches(code) {
		return ErrPinInvalid
	}
	e.Verified = true
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, email string) error {
	key := emailKey(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return ErrNoPin
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return ErrPinExpired
	}
	if !e.Verified {
		return ErrNotVerified
	}
	delete(m.entries, key)
	return nil
}
