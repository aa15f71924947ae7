package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"despachante/pkg/domain"
)

const (
	defaultJWTIssuer   = "despachante-api"
	defaultJWTAudience = "despachante-app"
	// MinSecretBytes is the shortest accepted HMAC secret.
	MinSecretBytes = 32
)

var defaultJWTLeeway = 30 * time.Second

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

func init() {
	// Millisecond iat so that a user revocation cutoff separates tokens
	// issued within the same second.
	jwt.TimePrecision = time.Millisecond
}

// JWTOptions configures JWT claim validation behavior.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"nome"`
	jwt.RegisteredClaims
}

// JWTSessionStore issues and validates HS256 JWT tokens.
// Tokens carry a kid header; previous secrets stay valid for verification
// so the active secret can be rotated without logging everyone out.
type JWTSessionStore struct {
	ttl     time.Duration
	revoker TokenRevoker

	signerKid string
	secrets   map[string][]byte

	issuer   string
	audience string
	leeway   time.Duration
}

// NewJWTSessionStore builds an HS256 session store. previous maps kid -> secret
// for keys that may still verify but no longer sign.
func NewJWTSessionStore(
	keyID string,
	secret string,
	previous map[string]string,
	ttl time.Duration,
	revoker TokenRevoker,
	opts JWTOptions,
) (*JWTSessionStore, error) {
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretBytes)
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		keyID = "jwt-active"
	}
	secrets := map[string][]byte{keyID: []byte(secret)}
	for kid, s := range previous {
		kid = strings.TrimSpace(kid)
		if kid == "" || kid == keyID {
			continue
		}
		if len(s) < MinSecretBytes {
			return nil, fmt.Errorf("verify secret %q must be at least %d bytes", kid, MinSecretBytes)
		}
		secrets[kid] = []byte(s)
	}
	opts = normalizeJWTOptions(opts)
	return &JWTSessionStore{
		ttl:       ttl,
		revoker:   revoker,
		signerKid: keyID,
		secrets:   secrets,
		issuer:    opts.Issuer,
		audience:  opts.Audience,
		leeway:    opts.Leeway,
	}, nil
}

// NewSession creates a signed JWT for the user.
func (s *JWTSessionStore) NewSession(u domain.User) (string, error) {
	if strings.TrimSpace(u.ID) == "" {
		return "", errors.New("user id required")
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        randomHexID(12),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.signerKid
	return token.SignedString(s.secrets[s.signerKid])
}

// Verify validates signature, expiry and revocation state of a token.
func (s *JWTSessionStore) Verify(token string) (Identity, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return Identity{}, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return Identity{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Identity{}, ErrTokenRevoked
		}
		if userRevoker, ok := s.revoker.(UserTokenRevoker); ok {
			cutoff, err := userRevoker.RevokedAfter(claims.Subject)
			if err != nil {
				return Identity{}, fmt.Errorf("check user revocation: %w", err)
			}
			if !cutoff.IsZero() && !claims.IssuedAt.Time.After(cutoff) {
				return Identity{}, ErrTokenRevoked
			}
		}
	}
	return Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// DeleteSession revokes the token until it expires.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

// RevokeUserSessions revokes all sessions for a user issued before/at cutoff.
func (s *JWTSessionStore) RevokeUserSessions(userID string, since time.Time) error {
	if s.revoker == nil {
		return nil
	}
	userRevoker, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return errors.New("session revoker does not support user revocation")
	}
	return userRevoker.RevokeUser(userID, since)
}

func (s *JWTSessionStore) parseAndVerify(token string) (SessionClaims, error) {
	claims := SessionClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, ErrTokenInvalid
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errors.New("token key id required")
		}
		secret, ok := s.secrets[kid]
		if !ok {
			return nil, errors.New("unknown token key")
		}
		return secret, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return claims, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return claims, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" || claims.IssuedAt == nil {
		return claims, fmt.Errorf("%w: missing sub, jti or iat", ErrTokenInvalid)
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return opts
}
