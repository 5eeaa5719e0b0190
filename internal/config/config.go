package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	AutoMigrate        bool

	TicketTTL          time.Duration
	CatalogCacheTTL    time.Duration
	CatalogRefreshCron string
	CatalogRetries     int
	CatalogBreakerOpen time.Duration
	LockTTL            time.Duration
	LockRetryBackoff   time.Duration
	RateLimit          string
	IdempotencyTTL     time.Duration

	CurrencyCode      string
	PricingTaxRateBPS int

	NotifyChannelPrefix string
	WorkerConcurrency   int

	LogFormat             string
	LogLevel              string
	MetricsNamespace      string
	MetricsEnabled        bool
	TracingEnabled        bool
	OTLPEndpoint          string
	TracingExporter       string
	TracingSamplingRatio  float64
	MetricsBucketsCSV     string
	HealthDBTimeout       time.Duration
	HealthRedisTimeout    time.Duration
	HTTPReadHeaderTimeout time.Duration
	HTTPMaxBodyBytes      int64
	EnableHSTS            bool
	ShutdownTimeout       time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AutoMigrate:        parseBool(k.String("AUTO_MIGRATE"), false),

		TicketTTL:          parseDuration(k.String("TICKET_TTL"), "12h"),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogRefreshCron: valueOrDefault(k.String("CATALOG_REFRESH_CRON"), "@every 5m"),
		CatalogRetries:     parseInt(k.String("CATALOG_DB_RETRIES"), 3),
		CatalogBreakerOpen: parseDuration(k.String("CATALOG_BREAKER_OPEN_FOR"), "30s"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff:   parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "600-M"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),

		CurrencyCode:      strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "IDR")),
		PricingTaxRateBPS: parseInt(k.String("PRICING_TAX_RATE_BPS"), 0),

		NotifyChannelPrefix: valueOrDefault(k.String("NOTIFY_CHANNEL_PREFIX"), "pos:notify:"),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 2),

		LogFormat:             valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:              valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:      valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "pos"),
		MetricsEnabled:        parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		TracingEnabled:        parseBool(k.String("OBS_ENABLE_TRACING"), false),
		OTLPEndpoint:          strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingExporter:       valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		TracingSamplingRatio:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		MetricsBucketsCSV:     k.String("OBS_METRICS_BUCKETS_MS"),
		HealthDBTimeout:       parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		HealthRedisTimeout:    parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		HTTPReadHeaderTimeout: parseDuration(k.String("HTTP_READ_HEADER_TIMEOUT"), "5s"),
		HTTPMaxBodyBytes:      int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 64<<10)),
		EnableHSTS:            parseBool(k.String("SECURITY_ENABLE_HSTS"), false),
		ShutdownTimeout:       parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PricingTaxRateBPS < 0 || cfg.PricingTaxRateBPS > 10000 {
		return nil, fmt.Errorf("PRICING_TAX_RATE_BPS must be within 0..10000, got %d", cfg.PricingTaxRateBPS)
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
