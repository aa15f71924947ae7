package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"despachante/internal/metrics"
	"despachante/internal/ratelimit"
	"despachante/internal/util"
	"despachante/pkg/store"
	"despachante/services/api/internal/app"
	"despachante/services/api/internal/security"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Redis, when set, backs the rate limiters so every replica shares them.
	Redis                    *redis.Client
	Alerts                   *security.BurstDetector
	LoginRateLimitPerMinute  int
	SignupRateLimitPerMinute int
	PinRateLimitPerMinute    int
	MaxUploadBytes           int64
	CORSOrigins              []string
	TrustedProxies           *util.ProxyAllowlist
	// FilesDir is served under /files/ when documents are kept on local disk.
	FilesDir string
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	alerts         *security.BurstDetector
	proxies        *util.ProxyAllowlist
	corsOrigins    []string
	maxUploadBytes int64
	loginLimiter   ratelimit.Limiter
	signupLimiter  ratelimit.Limiter
	pinLimiter     ratelimit.Limiter
	filesDir       string
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires app")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	pinLimit := cfg.PinRateLimitPerMinute
	if pinLimit <= 0 {
		pinLimit = 5
	}
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		var (
			limiter ratelimit.Limiter
			err     error
		)
		if cfg.Redis != nil {
			limiter, err = ratelimit.NewRedisLimiter(cfg.Redis, "despachante:ratelimit:"+name, limit, time.Minute)
		} else {
			limiter, err = ratelimit.NewMemoryLimiter(limit, time.Minute)
		}
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	pinLimiter, err := newLimiter("pin", pinLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		alerts:         cfg.Alerts,
		proxies:        cfg.TrustedProxies,
		corsOrigins:    cfg.CORSOrigins,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		loginLimiter:   loginLimiter,
		signupLimiter:  signupLimiter,
		pinLimiter:     pinLimiter,
		filesDir:       cfg.FilesDir,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	return metrics.InstrumentHandler(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())

	// accounts
	s.mux.HandleFunc("/api/signup", s.handleSignup)
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.Handle("/api/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/api/user-data", s.authenticated(s.handleUserData))
	s.mux.Handle("/api/update-user", s.authenticated(s.handleUpdateUser))

	// vehicles
	s.mux.Handle("/api/veiculos", s.authenticated(s.handleVehicles))
	s.mux.Handle("/api/add-veiculo", s.authenticated(s.handleAddVehicle))
	s.mux.Handle("/api/delete-veiculo/", s.authenticated(s.handleDeleteVehicle))

	// service requests
	s.mux.HandleFunc("/api/servicos", s.handleCatalog)
	s.mux.Handle("/api/meus-servicos", s.authenticated(s.handleMyServices))
	s.mux.Handle("/api/upload-pdfs", s.authenticated(s.handleUploadPDFs))

	// password recovery
	s.mux.HandleFunc("/api/send-pin", s.handleSendPIN)
	s.mux.HandleFunc("/api/validate-pin", s.handleValidatePIN)
	s.mux.HandleFunc("/api/reset-password", s.handleResetPassword)

	if s.filesDir != "" {
		s.mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(s.filesDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, store.Identity)

type identityContextKey struct{}

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "no token provided")
			return
		}
		id, err := s.app.Authenticate(token)
		if err != nil {
			if errors.Is(err, app.ErrInvalidToken) {
				s.audit(r, "api.authorize", "fail", "reason", "invalid_token")
				writeError(w, http.StatusForbidden, "invalid token")
				return
			}
			util.LoggerFromContext(r.Context()).Error("token verification failed", "err", err)
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		s.audit(r, "api.authorize", "success", "user_id", id.UserID)
		ctx := context.WithValue(r.Context(), identityContextKey{}, id)
		ctx = util.ContextWithLogger(ctx, util.LoggerFromContext(ctx).With("user_id", id.UserID))
		next(w, r.WithContext(ctx), id)
	})
}

// IdentityFromContext returns the claims attached by the auth middleware.
func IdentityFromContext(ctx context.Context) (store.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(store.Identity)
	return id, ok
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Warn("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.proxies)
	logger := util.LoggerFromContext(r.Context())
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
	} else {
		logger.Warn("security_event", logAttrs...)
	}
	alert, err := s.alerts.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Debug("burst detector unavailable", "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", alert.Count,
			"window", alert.Rule.Window.String(),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.proxies)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
