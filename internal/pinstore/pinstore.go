// Package pinstore keeps short-lived password-reset PINs keyed by email.
package pinstore

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTTL is how long an issued PIN stays valid.
	DefaultTTL = 10 * time.Minute
	// CodeLength is the number of digits in a PIN.
	CodeLength = 6
)

var (
	ErrNoPin       = errors.New("no pin on file")
	ErrPinInvalid  = errors.New("incorrect pin")
	ErrPinExpired  = errors.New("pin expired")
	ErrNotVerified = errors.New("pin not validated")
)

// Store issues, checks and discards PINs. A successful Verify marks the PIN
// as validated; Consume then discards it and succeeds only for a validated,
// unexpired PIN. Failed checks never count attempts.
type Store interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) error
	Consume(ctx context.Context, email string) error
}

type entry struct {
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	Verified  bool      `json:"verified"`
}

func newEntry(code string, now time.Time, ttl time.Duration) (entry, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return entry{}, err
	}
	return entry{CodeHash: string(hash), ExpiresAt: now.Add(ttl)}, nil
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

func (e entry) matches(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(e.CodeHash), []byte(code)) == nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = CodeLength
	}
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
