// Package bootstrap builds the runtime dependencies shared by the nudge
// binaries from a loaded config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/config"
	"github.com/benvon/smart-nudge/internal/database"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

// RatelimitConfigs reads and writes the stored rate limit
type RatelimitConfigs interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// CorsConfigs reads and writes the stored CORS policy
type CorsConfigs interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
	Set(ctx context.Context, c *models.CorsConfig) error
}

// Backend is the persistence selected by STORE_BACKEND
type Backend struct {
	Store storage.Store
	// Redis is set whenever REDIS_URL is configured, whatever the store backend
	Redis *redis.Client
	// DB is set for the postgres and sqlite backends
	DB *database.DB

	Ratelimit RatelimitConfigs
	Cors      CorsConfigs

	closers []func() error
}

// Health returns the store's health checker, or nil when the store cannot fail
func (b *Backend) Health() storage.HealthChecker {
	if hc, ok := b.Store.(storage.HealthChecker); ok {
		return hc
	}
	return nil
}

// RedisHealth returns a checker for the Redis connection, or nil when Redis
// is not configured
func (b *Backend) RedisHealth() storage.HealthChecker {
	if b.Redis == nil {
		return nil
	}
	return storage.NewRedisStore(b.Redis, "")
}

// Close releases every connection the backend opened
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenBackend connects the configured store backend
func OpenBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	b := &Backend{}

	if cfg.RedisURL != "" {
		client, err := storage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.Redis = client
		b.closers = append(b.closers, client.Close)
		log.Info("connected_to_redis")
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		b.Store = storage.NewRedisStore(b.Redis, cfg.RedisPrefix)
	case config.BackendPostgres, config.BackendSQLite:
		var (
			db  *database.DB
			err error
		)
		if cfg.StoreBackend == config.BackendPostgres {
			db, err = database.OpenPostgres(ctx, cfg.DatabaseURL)
		} else {
			db, err = database.OpenSQLite(ctx, cfg.SQLitePath)
		}
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.DB = db
		b.closers = append(b.closers, db.Close)
		b.Store = database.NewKVRepository(db)
		b.Ratelimit = database.NewRatelimitConfigRepository(db)
		b.Cors = database.NewCorsConfigRepository(db)
		log.Info("connected_to_database", zap.String("dialect", string(db.Dialect())))
	default:
		b.Store = storage.NewMemoryStore()
		log.Warn("using_memory_store_state_is_lost_on_restart")
	}

	if b.Ratelimit == nil {
		b.Ratelimit = storage.NewRatelimitConfigStore(b.Store)
	}
	if b.Cors == nil {
		b.Cors = storage.NewCorsConfigStore(b.Store)
	}
	return b, nil
}

// Retry calls connect until it succeeds, doubling the delay between
// attempts up to 30s. It gives up after attempts tries or when ctx ends.
func Retry[T any](ctx context.Context, log *zap.Logger, what string, attempts int, connect func() (T, error)) (T, error) {
	const (
		initialDelay = 2 * time.Second
		maxDelay     = 30 * time.Second
	)
	var (
		zero    T
		lastErr error
	)
	delay := initialDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := connect()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		log.Warn("connection_failed_retrying",
			zap.String("dependency", what),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxDelay)
	}
	return zero, fmt.Errorf("failed to connect to %s after %d attempts: %w", what, attempts, lastErr)
}
