package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/models"
)

const defaultCORSMaxAge = 86400

// CorsConfigSource reads the persisted CORS config. Get returns nil when nothing is stored.
type CorsConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader applies rs/cors with a policy it periodically reloads from its source.
type CORSReloader struct {
	source   CorsConfigSource
	fallback string // FRONTEND_URL
	log      *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	current  *cors.Cors
}

// NewCORSReloader loads the CORS policy from source. frontendURLFallback is
// used while no config is stored.
func NewCORSReloader(source CorsConfigSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	r := &CORSReloader{
		source:   source,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
	r.load(context.Background())
	return r
}

// Middleware applies the current CORS policy to next
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.policy().ServeHTTP(w, req, next.ServeHTTP)
		})
	}
}

// Start runs the reload loop until ctx is cancelled
func (r *CORSReloader) Start(ctx context.Context) {
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

func (r *CORSReloader) options(ctx context.Context) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   models.ParseOrigins(r.fallback),
		AllowCredentials: true,
		MaxAge:           defaultCORSMaxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader, FeatureHeader, AdminKeyHeader},
		ExposedHeaders:   []string{RequestIDHeader},
	}
	cfg, err := r.source.Get(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	} else if cfg != nil {
		opts.AllowedOrigins = cfg.AllowedOrigins
		opts.AllowCredentials = cfg.AllowCredentials
		opts.MaxAge = cfg.MaxAge
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000"}
	}
	return opts
}

func (r *CORSReloader) load(ctx context.Context) {
	c := cors.New(r.options(ctx))
	r.mu.Lock()
	r.current = c
	r.mu.Unlock()
}

func (r *CORSReloader) policy() *cors.Cors {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
