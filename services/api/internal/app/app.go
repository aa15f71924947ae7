package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"despachante/internal/mailer"
	"despachante/internal/pinstore"
	"despachante/pkg/storage"
	"despachante/pkg/store"
	"despachante/services/api/internal/payments"
)

// PaymentGateway creates provider charges. It is optional.
type PaymentGateway interface {
	Create(ctx context.Context, c payments.Charge) (payments.Result, error)
}

// Config holds runtime configuration for the core application.
// Store and Sessions are built from DatabaseURL and the JWT settings when nil.
type Config struct {
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	SessionTTL         time.Duration
	JWTSecret          string
	JWTKeyID           string
	JWTPreviousSecrets map[string]string
	JWTIssuer          string
	JWTAudience        string
	JWTLeeway          time.Duration

	Store    store.Store
	Sessions store.SessionStore
	Objects  storage.ObjectStore
	Pins     pinstore.Store
	Mailer   mailer.Mailer
	Payments PaymentGateway

	PinTTL            time.Duration
	UploadConcurrency int
}

// App implements the account, vehicle, service-request and recovery use cases.
type App struct {
	store    store.Store
	sessions store.SessionStore
	objects  storage.ObjectStore
	pins     pinstore.Store
	mailer   mailer.Mailer
	payments PaymentGateway

	pinTTL            time.Duration
	uploadConcurrency int
	now               func() time.Time
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.PinTTL <= 0 {
		cfg.PinTTL = pinstore.DefaultTTL
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store required")
	}
	if cfg.Pins == nil {
		return nil, errors.New("pin store required")
	}
	if cfg.Mailer == nil {
		cfg.Mailer = mailer.LogMailer{}
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			redisRevoker, err := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL+time.Hour)
			if err != nil {
				return nil, fmt.Errorf("init token revoker: %w", err)
			}
			revoker = redisRevoker
		}
		jwtStore, err := store.NewJWTSessionStore(
			cfg.JWTKeyID,
			cfg.JWTSecret,
			cfg.JWTPreviousSecrets,
			cfg.SessionTTL,
			revoker,
			store.JWTOptions{Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience, Leeway: cfg.JWTLeeway},
		)
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessions = jwtStore
	}

	return &App{
		store:             dataStore,
		sessions:          sessions,
		objects:           cfg.Objects,
		pins:              cfg.Pins,
		mailer:            cfg.Mailer,
		payments:          cfg.Payments,
		pinTTL:            cfg.PinTTL,
		uploadConcurrency: cfg.UploadConcurrency,
		now:               time.Now,
	}, nil
}
