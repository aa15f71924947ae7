package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, overridable with API_CONFIG.
var ConfigPath = defaultConfigPath()

func defaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("API_CONFIG")); v != "" {
		return v
	}
	return "config.yaml"
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	DatabaseURL        string `yaml:"databaseURL"`
	JWTSecret          string `yaml:"jwtSecret"`
	JWTKeyID           string `yaml:"jwtKeyId"`
	JWTPreviousSecrets string `yaml:"jwtPreviousSecrets"`
	JWTIssuer          string `yaml:"jwtIssuer"`
	JWTAudience        string `yaml:"jwtAudience"`
	JWTLeeway          string `yaml:"jwtLeeway"`
	SessionTTL         string `yaml:"sessionTTL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	PinStore      string `yaml:"pinStore"`
	PinTTL        string `yaml:"pinTTL"`

	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	SMTPFrom     string `yaml:"smtpFrom"`

	StorageDriver      string `yaml:"storageDriver"`
	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPresignExpiry string `yaml:"minioPresignExpiry"`
	PublicBaseURL      string `yaml:"publicBaseURL"`
	Bucket             string `yaml:"bucket"`
	LocalStorageDir    string `yaml:"localStorageDir"`
	LocalBaseURL       string `yaml:"localBaseURL"`

	MaxUploadBytes           int64  `yaml:"maxUploadBytes"`
	UploadConcurrency        int    `yaml:"uploadConcurrency"`
	LoginRateLimitPerMinute  int    `yaml:"loginRateLimitPerMinute"`
	SignupRateLimitPerMinute int    `yaml:"signupRateLimitPerMinute"`
	PinRateLimitPerMinute    int    `yaml:"pinRateLimitPerMinute"`
	CORSOrigins              string `yaml:"corsOrigins"`
	TrustedProxies           string `yaml:"trustedProxies"`

	MercadoPagoAccessToken string `yaml:"mercadoPagoAccessToken"`
	PaymentMock            bool   `yaml:"paymentMock"`
}

// Load reads config from path (defaults to ConfigPath). A .env file in the
// working directory is loaded first; variables already set win.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	strs := map[string]*string{
		"PORT":                     &cfg.Port,
		"LOG_LEVEL":                &cfg.LogLevel,
		"LOG_FORMAT":               &cfg.LogFormat,
		"DATABASE_URL":             &cfg.DatabaseURL,
		"JWT_SECRET":               &cfg.JWTSecret,
		"JWT_KEY_ID":               &cfg.JWTKeyID,
		"JWT_PREVIOUS_SECRETS":     &cfg.JWTPreviousSecrets,
		"JWT_ISSUER":               &cfg.JWTIssuer,
		"JWT_AUDIENCE":             &cfg.JWTAudience,
		"JWT_LEEWAY":               &cfg.JWTLeeway,
		"SESSION_TTL":              &cfg.SessionTTL,
		"REDIS_ADDR":               &cfg.RedisAddr,
		"REDIS_PASSWORD":           &cfg.RedisPassword,
		"PIN_STORE":                &cfg.PinStore,
		"PIN_TTL":                  &cfg.PinTTL,
		"SMTP_HOST":                &cfg.SMTPHost,
		"SMTP_USERNAME":            &cfg.SMTPUsername,
		"SMTP_PASSWORD":            &cfg.SMTPPassword,
		"SMTP_FROM":                &cfg.SMTPFrom,
		"STORAGE_DRIVER":           &cfg.StorageDriver,
		"MINIO_ENDPOINT":           &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":         &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":         &cfg.MinioSecretKey,
		"MINIO_PRESIGN_EXPIRY":     &cfg.MinioPresignExpiry,
		"STORAGE_PUBLIC_BASE_URL":  &cfg.PublicBaseURL,
		"STORAGE_BUCKET":           &cfg.Bucket,
		"LOCAL_STORAGE_DIR":        &cfg.LocalStorageDir,
		"LOCAL_BASE_URL":           &cfg.LocalBaseURL,
		"CORS_ORIGINS":             &cfg.CORSOrigins,
		"TRUSTED_PROXIES":          &cfg.TrustedProxies,
		"MERCADOPAGO_ACCESS_TOKEN": &cfg.MercadoPagoAccessToken,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"SMTP_PORT":                        &cfg.SMTPPort,
		"API_UPLOAD_CONCURRENCY":           &cfg.UploadConcurrency,
		"API_LOGIN_RATE_LIMIT_PER_MINUTE":  &cfg.LoginRateLimitPerMinute,
		"API_SIGNUP_RATE_LIMIT_PER_MINUTE": &cfg.SignupRateLimitPerMinute,
		"API_PIN_RATE_LIMIT_PER_MINUTE":    &cfg.PinRateLimitPerMinute,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	if v := os.Getenv("API_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	bools := map[string]*bool{
		"MINIO_USE_SSL": &cfg.MinioUseSSL,
		"PAYMENT_MOCK":  &cfg.PaymentMock,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "3000"
	}
	if cfg.PinStore == "" {
		cfg.PinStore = "memory"
	}
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = "minio"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "arquivoPdf"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if _, err := ParsePreviousSecrets(cfg.JWTPreviousSecrets); err != nil {
		return err
	}
	switch cfg.PinStore {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: pinStore redis requires redisAddr")
		}
	default:
		return fmt.Errorf("config: unknown pinStore %q (memory|redis)", cfg.PinStore)
	}
	switch cfg.StorageDriver {
	case "minio":
		if cfg.MinioEndpoint == "" {
			return errors.New("config: minioEndpoint is required for the minio storage driver")
		}
	case "local":
		if cfg.LocalStorageDir == "" || cfg.LocalBaseURL == "" {
			return errors.New("config: localStorageDir and localBaseURL are required for the local storage driver")
		}
	default:
		return fmt.Errorf("config: unknown storageDriver %q (minio|local)", cfg.StorageDriver)
	}
	if cfg.MaxUploadBytes < 0 || cfg.UploadConcurrency < 0 {
		return errors.New("config: upload limits must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.SignupRateLimitPerMinute < 0 || cfg.PinRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	for name, raw := range map[string]string{
		"sessionTTL":         cfg.SessionTTL,
		"pinTTL":             cfg.PinTTL,
		"jwtLeeway":          cfg.JWTLeeway,
		"minioPresignExpiry": cfg.MinioPresignExpiry,
	} {
		if _, err := parseDuration(name, raw); err != nil {
			return err
		}
	}
	return nil
}

// ParseSessionTTL parses optional session TTL duration string.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	return parseDuration("sessionTTL", ttlStr)
}

// ParsePinTTL parses optional PIN TTL duration string.
func ParsePinTTL(ttlStr string) (time.Duration, error) {
	return parseDuration("pinTTL", ttlStr)
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	return parseDuration("jwtLeeway", leewayStr)
}

// ParsePresignExpiry parses optional presigned link lifetime.
func ParsePresignExpiry(raw string) (time.Duration, error) {
	return parseDuration("minioPresignExpiry", raw)
}

func parseDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}

// ParsePreviousSecrets parses "kid=secret,kid2=secret2" into a map.
func ParsePreviousSecrets(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	pairs := strings.Split(raw, ",")
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, secret, ok := strings.Cut(pair, "=")
		kid, secret = strings.TrimSpace(kid), strings.TrimSpace(secret)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid jwtPreviousSecrets entry for kid %q", kid)
		}
		out[kid] = secret
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// SplitList splits a comma separated config value, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
