// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, marketplace credentials, realtime and background-task
// tuning, and observability settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "avito-crm")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AvitoConfig holds marketplace API credentials and client tuning.
type AvitoConfig struct {
	ClientID     string        // AVITO_CLIENT_ID
	ClientSecret string        // AVITO_CLIENT_SECRET
	AccountID    int64         // AVITO_ACCOUNT_ID (0 = not configured)
	BaseURL      string        // AVITO_BASE_URL
	RPS          float64       // AVITO_RPS outbound throttle
	Burst        int           // AVITO_BURST
	Timeout      time.Duration // AVITO_TIMEOUT per request
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // 0 disables; SSE streams are long-lived
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	AppEnv        string // development|test|production
	DatabaseURL   string // postgres://... ; empty means SQLite at DBPath
	DBPath        string // SQLite path
	MockMode      bool   // no provider calls; fake outbound ids
	DefaultStatus string // BOT|MANAGER for new chats

	// Auth
	CRMToken      string // operator API token; empty disables the guard
	WebhookKey    string // shared secret for the provider webhook
	PublicBaseURL string // externally reachable base URL for subscriptions

	// Marketplace
	Avito AvitoConfig

	// Assistant
	OpenAIBaseURL string

	// Caching / realtime / tasks
	RedisURL            string        // empty = in-process item cache
	ItemCacheTTL        time.Duration // item info cache lifetime
	SSEPingInterval     time.Duration // keepalive cadence on event streams
	TaskConcurrency     int           // background task semaphore size
	TaskTimeout         time.Duration // per background task
	UnreadReconcileCron string        // cron spec; empty disables
	WebhookWatchdogCron string        // cron spec; empty disables

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c Config) IsProduction() bool { return c.AppEnv == "production" }

// WebhookURL is the public callback URL registered with the provider. The
// key travels in the query because Avito cannot send custom headers.
func (c Config) WebhookURL() string {
	base := strings.TrimRight(c.PublicBaseURL, "/")
	if base == "" {
		return ""
	}
	prefix := strings.TrimRight(c.APIBasePath, "/")
	return base + prefix + "/avito/webhook?key=" + url.QueryEscape(c.WebhookKey)
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "3000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// App
		AppEnv:        strings.ToLower(getenv("APP_ENV", "development")),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		DBPath:        getenv("DB_PATH", "avito-crm.db"),
		MockMode:      getbool("MOCK_MODE", true),
		DefaultStatus: strings.ToUpper(getenv("AVITO_DEFAULT_STATUS", "BOT")),

		// Auth
		CRMToken:      getenv("CRM_TOKEN", ""),
		WebhookKey:    getenv("CRM_WEBHOOK_KEY", "dev123"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", ""),

		Avito: AvitoConfig{
			ClientID:     getenv("AVITO_CLIENT_ID", ""),
			ClientSecret: getenv("AVITO_CLIENT_SECRET", ""),
			AccountID:    getint64("AVITO_ACCOUNT_ID", 0),
			BaseURL:      strings.TrimRight(getenv("AVITO_BASE_URL", "https://api.avito.ru"), "/"),
			RPS:          getfloat("AVITO_RPS", 5),
			Burst:        getint("AVITO_BURST", 5),
			Timeout:      getdur("AVITO_TIMEOUT", 15*time.Second),
		},

		OpenAIBaseURL: strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),

		RedisURL:            getenv("REDIS_URL", ""),
		ItemCacheTTL:        getdur("ITEM_CACHE_TTL", 5*time.Minute),
		SSEPingInterval:     getdur("SSE_PING_INTERVAL", 25*time.Second),
		TaskConcurrency:     getint("TASK_CONCURRENCY", 16),
		TaskTimeout:         getdur("TASK_TIMEOUT", 60*time.Second),
		UnreadReconcileCron: getenv("UNREAD_RECONCILE_CRON", "@every 10m"),
		WebhookWatchdogCron: os.Getenv("WEBHOOK_WATCHDOG_CRON"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "avito-crm"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.AppEnv {
	case "dev":
		cfg.AppEnv = "development"
	case "prod":
		cfg.AppEnv = "production"
	}

	return cfg, cfg.validate()
}

// validate reports the first invalid setting.
func (c Config) validate() error {
	checks := []struct {
		bad bool
		msg string
	}{
		{!oneOf(c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"), "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"},
		{!oneOf(c.AppEnv, "development", "test", "production"), "APP_ENV must be one of: development, test, production"},
		{strings.TrimSpace(c.Port) == "", "PORT must not be empty"},
		{c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.IdleTimeout <= 0, "timeouts must be positive durations"},
		{c.WriteTimeout < 0, "WRITE_TIMEOUT must be >= 0"},
		{c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{c.DatabaseURL == "" && strings.TrimSpace(c.DBPath) == "", "DB_PATH must not be empty when DATABASE_URL is unset"},
		{!oneOf(c.DefaultStatus, "BOT", "MANAGER"), "AVITO_DEFAULT_STATUS must be BOT or MANAGER"},
		{strings.TrimSpace(c.WebhookKey) == "", "CRM_WEBHOOK_KEY must not be empty"},
		{!c.MockMode && (c.Avito.ClientID == "" || c.Avito.ClientSecret == ""), "AVITO_CLIENT_ID and AVITO_CLIENT_SECRET are required when MOCK_MODE is off"},
		{!c.MockMode && c.Avito.AccountID <= 0, "AVITO_ACCOUNT_ID is required when MOCK_MODE is off"},
		{c.Avito.RPS <= 0, "AVITO_RPS must be > 0"},
		{c.Avito.Burst < 1, "AVITO_BURST must be >= 1"},
		{c.Avito.Timeout <= 0, "AVITO_TIMEOUT must be > 0"},
		{c.ItemCacheTTL <= 0, "ITEM_CACHE_TTL must be > 0"},
		{c.SSEPingInterval <= 0, "SSE_PING_INTERVAL must be > 0"},
		{c.TaskConcurrency < 1, "TASK_CONCURRENCY must be >= 1"},
		{c.TaskTimeout <= 0, "TASK_TIMEOUT must be > 0"},
		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	for _, chk := range checks {
		if chk.bad {
			return errors.New(chk.msg)
		}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Env helpers. An unset, empty, or unparsable value yields the default.

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func parsed[T any](k string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getint(k string, def int) int { return parsed(k, def, strconv.Atoi) }

func getint64(k string, def int64) int64 {
	return parsed(k, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func getfloat(k string, def float64) float64 {
	return parsed(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getdur(k string, def time.Duration) time.Duration { return parsed(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool { return parsed(k, def, parseBool) }

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
