package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds application configuration
type Config struct {
	StoreBackend string
	DatabaseURL  string
	SQLitePath   string
	RedisURL     string
	RedisPrefix  string

	RabbitMQURL      string
	RabbitMQPrefix   string
	RabbitMQPrefetch int
	DLQGCInterval    time.Duration
	DLQRetention     time.Duration

	OpenAIKey  string
	AIProvider string
	AIModel    string
	AIBaseURL  string
	AITimeout  time.Duration

	ServerPort     string
	FrontendURL    string
	EnableHSTS     bool
	AuthIssuer     string
	AuthJWKSURL    string
	AuthAudience   string
	AdminAPIKey    string
	RateLimit      string
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	CachePerKey       int
	CacheMaxAge       time.Duration
	LedgerCapacity    int
	AnalyticsDailyCap int
	TuningFile        string

	WorkerDebugMode bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
	OTELInsecure    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SQLitePath:   getEnv("SQLITE_PATH", "nudge.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		RedisPrefix:  getEnv("REDIS_PREFIX", "nudge:"),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefix:   getEnv("RABBITMQ_PREFIX", "nudge"),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		DLQGCInterval:    getEnvDuration("DLQ_GC_INTERVAL", time.Hour),
		DLQRetention:     getEnvDuration("DLQ_RETENTION", 24*time.Hour),

		OpenAIKey:  getEnv("OPENAI_API_KEY", ""),
		AIProvider: getEnv("AI_PROVIDER", "openai"),
		AIModel:    getEnv("AI_MODEL", ""),
		AIBaseURL:  getEnv("AI_BASE_URL", ""),
		AITimeout:  getEnvDuration("AI_TIMEOUT", 20*time.Second),

		ServerPort:     getEnv("SERVER_PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:     getEnvBool("ENABLE_HSTS", false),
		AuthIssuer:     getEnv("AUTH_ISSUER", ""),
		AuthJWKSURL:    getEnv("AUTH_JWKS_URL", ""),
		AuthAudience:   getEnv("AUTH_AUDIENCE", ""),
		AdminAPIKey:    getEnv("ADMIN_API_KEY", ""),
		RateLimit:      getEnv("RATE_LIMIT", "20-S"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		CachePerKey:       getEnvInt("CACHE_PER_KEY", 10),
		CacheMaxAge:       getEnvDuration("CACHE_MAX_AGE", 24*time.Hour),
		LedgerCapacity:    getEnvInt("LEDGER_CAPACITY", 100),
		AnalyticsDailyCap: getEnvInt("ANALYTICS_DAILY_CAP", 1000),
		TuningFile:        getEnv("TUNING_FILE", ""),

		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, redis, postgres or sqlite)", c.StoreBackend)
	}

	if (c.AuthIssuer == "") != (c.AuthJWKSURL == "") {
		return fmt.Errorf("AUTH_ISSUER and AUTH_JWKS_URL must be set together")
	}
	if c.RabbitMQPrefetch < 1 {
		return fmt.Errorf("RABBITMQ_PREFETCH must be at least 1")
	}
	if c.DLQGCInterval <= 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("DLQ_GC_INTERVAL and REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// AuthEnabled reports whether bearer token verification is configured
func (c *Config) AuthEnabled() bool {
	return c.AuthIssuer != "" && c.AuthJWKSURL != ""
}

// AIEnabled reports whether a text generator can be built
func (c *Config) AIEnabled() bool {
	return c.OpenAIKey != "" || (c.AIProvider == "openai-compatible" && c.AIBaseURL != "")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
