package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/request"
)

const (
	defaultRatelimitRate = "20-S"
	limiterKeyPrefix     = "nudge:limiter"
)

// RatelimitConfigSource reads and writes the persisted rate limit config.
// Get returns nil when nothing is stored.
type RatelimitConfigSource interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// NewLimiterStore returns a Redis-backed limiter store shared across
// instances, or a process-local memory store when redisClient is nil.
func NewLimiterStore(redisClient *redis.Client) (limiter.Store, error) {
	if redisClient == nil {
		return memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterKeyPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix: limiterKeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return store, nil
}

// RateLimitReloader applies ulule/limiter with a rate it periodically reloads from its source.
type RateLimitReloader struct {
	store       limiter.Store
	source      RatelimitConfigSource
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	mu          sync.RWMutex
	current     *stdlibmw.Middleware
	rate        string
}

// NewRateLimitReloader loads the rate from source, saving defaultRate there
// when nothing is stored yet.
func NewRateLimitReloader(store limiter.Store, source RatelimitConfigSource, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = defaultRatelimitRate
	}
	r := &RateLimitReloader{
		store:       store,
		source:      source,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
	r.load(context.Background())
	return r
}

// Middleware limits requests to next per client IP at the current rate
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			m := r.current
			r.mu.RUnlock()
			if m == nil {
				next.ServeHTTP(w, req)
				return
			}
			m.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// Rate returns the formatted rate currently enforced
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

func (r *RateLimitReloader) configuredRate(ctx context.Context) string {
	cfg, err := r.source.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
		return r.defaultRate
	case cfg != nil && cfg.Rate != "":
		return cfg.Rate
	}
	if err := r.source.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
		r.log.Error("failed_to_save_default_ratelimit_config",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	}
	return r.defaultRate
}

func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr := r.configuredRate(ctx)
	if rateStr == r.Rate() {
		return
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
		)
		rateStr = r.defaultRate
		rate, err = limiter.NewRateFromFormatted(rateStr)
		if err != nil {
			r.log.Error("failed_to_parse_default_rate_limit",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
			return
		}
	}

	keyGetter := func(req *http.Request) string {
		return request.ClientIP(req)
	}
	m := stdlibmw.NewMiddleware(limiter.New(r.store, rate), stdlibmw.WithKeyGetter(keyGetter))

	r.mu.Lock()
	r.current = m
	r.rate = rateStr
	r.mu.Unlock()
	r.log.Info("ratelimit_config_loaded", zap.String("rate", rateStr))
}
