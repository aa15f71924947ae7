package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"despachante/pkg/domain"
)

const (
	testSecret         = "0123456789abcdef0123456789abcdef"
	testPreviousSecret = "fedcba9876543210fedcba9876543210"
)

func newTestSessionStore(t *testing.T, kid string, revoker TokenRevoker, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(kid, testSecret, nil, time.Hour, revoker, opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func testUser() domain.User {
	return domain.User{ID: "user-1", Email: "maria@example.com", Name: "Maria Silva"}
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, "k1", nil, JWTOptions{})
	token, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	id, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-1" || id.Email != "maria@example.com" || id.Name != "Maria Silva" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.TokenID == "" || !id.ExpiresAt.After(id.IssuedAt) {
		t.Fatalf("expected jti and exp after iat: %+v", id)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &SessionClaims{})
	if err != nil {
		t.Fatalf("parse unverified: %v", err)
	}
	if parsed.Header["kid"] != "k1" || parsed.Header["alg"] != "HS256" {
		t.Fatalf("unexpected header: %v", parsed.Header)
	}
}

func TestJWTSessionStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("k1", "short", nil, time.Hour, nil, JWTOptions{}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
	_, err := NewJWTSessionStore("k1", testSecret, map[string]string{"old": "short"}, time.Hour, nil, JWTOptions{})
	if err == nil {
		t.Fatalf("expected short previous secret to be rejected")
	}
}

func TestJWTSessionStoreRotation(t *testing.T) {
	old, err := NewJWTSessionStore("k0", testPreviousSecret, nil, time.Hour, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("old store: %v", err)
	}
	token, err := old.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	rotated, err := NewJWTSessionStore("k1", testSecret, map[string]string{"k0": testPreviousSecret}, time.Hour, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("rotated store: %v", err)
	}
	if _, err := rotated.Verify(token); err != nil {
		t.Fatalf("token signed by previous key should verify: %v", err)
	}

	fresh := newTestSessionStore(t, "k1", nil, JWTOptions{})
	if _, err := fresh.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("unknown kid should be invalid, got %v", err)
	}
}

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	signing := newTestSessionStore(t, "k1", nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-a"})
	verify := newTestSessionStore(t, "k1", nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-b"})

	token, err := signing.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := verify.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}
}

func TestJWTSessionStoreExpiry(t *testing.T) {
	s, err := NewJWTSessionStore("k1", testSecret, nil, 10*time.Millisecond, nil, JWTOptions{Leeway: time.Millisecond})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTSessionStoreRejectsTamperedToken(t *testing.T) {
	s := newTestSessionStore(t, "k1", nil, JWTOptions{})
	token, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := s.Verify(strings.Join(parts, ".")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}
	if _, err := s.Verify(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected empty token to fail, got %v", err)
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	s := newTestSessionStore(t, "k1", revoker, JWTOptions{})

	token, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestJWTSessionStoreRevokesByUserCutoff(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	s := newTestSessionStore(t, "k1", revoker, JWTOptions{})

	token, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.RevokeUserSessions("user-1", time.Now().UTC()); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected user-revoked token to fail, got %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	next, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session after cutoff: %v", err)
	}
	if _, err := s.Verify(next); err != nil {
		t.Fatalf("token issued after cutoff should verify: %v", err)
	}
}
