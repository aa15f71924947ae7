package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"despachante/internal/mailer"
	"despachante/internal/pinstore"
	"despachante/internal/util"
	"despachante/pkg/storage"
	"despachante/services/api/internal/app"
	"despachante/services/api/internal/config"
	"despachante/services/api/internal/payments"
	"despachante/services/api/internal/security"
	"despachante/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	pinTTL, err := config.ParsePinTTL(cfg.PinTTL)
	if err != nil {
		log.Fatalf("failed to parse pin TTL: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	previousSecrets, err := config.ParsePreviousSecrets(cfg.JWTPreviousSecrets)
	if err != nil {
		log.Fatalf("failed to parse previous jwt secrets: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, cfg.LogFormat)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}

	objects, filesDir, err := newObjectStore(cfg)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	var pins pinstore.Store = pinstore.NewMemoryStore(pinTTL)
	if cfg.PinStore == "redis" {
		pins, err = pinstore.NewRedisStore(redisClient, "despachante:pin", pinTTL)
		if err != nil {
			log.Fatalf("failed to init pin store: %v", err)
		}
	}

	var mail mailer.Mailer = mailer.LogMailer{Logger: logger}
	if cfg.SMTPHost != "" {
		mail, err = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.Fatalf("failed to init mailer: %v", err)
		}
	} else {
		logger.Warn("smtp not configured, PIN emails are only logged")
	}

	appCfg := app.Config{
		DatabaseURL:        cfg.DatabaseURL,
		RedisAddr:          cfg.RedisAddr,
		RedisPassword:      cfg.RedisPassword,
		SessionTTL:         sessionTTL,
		JWTSecret:          cfg.JWTSecret,
		JWTKeyID:           cfg.JWTKeyID,
		JWTPreviousSecrets: previousSecrets,
		JWTIssuer:          cfg.JWTIssuer,
		JWTAudience:        cfg.JWTAudience,
		JWTLeeway:          jwtLeeway,
		Objects:            objects,
		Pins:               pins,
		Mailer:             mail,
		PinTTL:             pinTTL,
		UploadConcurrency:  cfg.UploadConcurrency,
	}
	if cfg.PaymentMock || cfg.MercadoPagoAccessToken != "" {
		gateway, err := payments.NewMercadoPagoGateway(cfg.MercadoPagoAccessToken, cfg.PaymentMock)
		if err != nil {
			log.Fatalf("failed to init payment gateway: %v", err)
		}
		appCfg.Payments = gateway
	}
	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	proxies, err := util.ParseProxyAllowlist(config.SplitList(cfg.TrustedProxies))
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	var alerts *security.BurstDetector
	if redisClient != nil {
		alerts, err = security.NewBurstDetector(redisClient, "despachante:alerts")
		if err != nil {
			log.Fatalf("failed to init burst detector: %v", err)
		}
	}
	httpServer, err := server.New(server.Config{
		App:                      appCore,
		Redis:                    redisClient,
		Alerts:                   alerts,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		PinRateLimitPerMinute:    cfg.PinRateLimitPerMinute,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		CORSOrigins:              config.SplitList(cfg.CORSOrigins),
		TrustedProxies:           proxies,
		FilesDir:                 filesDir,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api server listening", "addr", addr, "storage", cfg.StorageDriver, "pin_store", cfg.PinStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

// newObjectStore returns the configured store and, for local disk, the
// directory the server should expose under /files/.
func newObjectStore(cfg config.FileConfig) (storage.ObjectStore, string, error) {
	if cfg.StorageDriver == "local" {
		store, err := storage.NewLocalStore(cfg.LocalStorageDir, cfg.LocalBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	}
	presign, err := config.ParsePresignExpiry(cfg.MinioPresignExpiry)
	if err != nil {
		return nil, "", err
	}
	store, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.Bucket,
		UseSSL:        cfg.MinioUseSSL,
		PublicBaseURL: cfg.PublicBaseURL,
		PresignExpiry: presign,
	})
	if err != nil {
		return nil, "", err
	}
	return store, "", nil
}
