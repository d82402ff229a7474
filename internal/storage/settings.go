package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
)

// CorsConfigStore keeps the CORS policy in a Store for deployments without
// a SQL database
type CorsConfigStore struct {
	store Store
	now   func() time.Time
}

// NewCorsConfigStore creates a Store-backed CORS policy source
func NewCorsConfigStore(store Store) *CorsConfigStore {
	return &CorsConfigStore{store: store, now: time.Now}
}

// Get returns the stored policy, or nil when none has been set
func (r *CorsConfigStore) Get(ctx context.Context) (*models.CorsConfig, error) {
	return loadSetting[models.CorsConfig](ctx, r.store, CorsConfigKey())
}

// Set replaces the policy after normalizing a copy of c
func (r *CorsConfigStore) Set(ctx context.Context, c *models.CorsConfig) error {
	next := *c
	if err := next.Normalize(); err != nil {
		return err
	}
	next.UpdatedAt = r.now().UTC()
	return SaveJSON(ctx, r.store, CorsConfigKey(), next)
}

// RatelimitConfigStore keeps the request rate in a Store
type RatelimitConfigStore struct {
	store Store
	now   func() time.Time
}

// NewRatelimitConfigStore creates a Store-backed rate limit source
func NewRatelimitConfigStore(store Store) *RatelimitConfigStore {
	return &RatelimitConfigStore{store: store, now: time.Now}
}

// Get returns the stored rate, or nil when none has been set
func (r *RatelimitConfigStore) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	return loadSetting[models.RatelimitConfig](ctx, r.store, RatelimitConfigKey())
}

// Set replaces the rate after normalizing a copy of c
func (r *RatelimitConfigStore) Set(ctx context.Context, c *models.RatelimitConfig) error {
	next := *c
	if err := next.Normalize(); err != nil {
		return err
	}
	next.UpdatedAt = r.now().UTC()
	return SaveJSON(ctx, r.store, RatelimitConfigKey(), next)
}

func loadSetting[T any](ctx context.Context, store Store, key string) (*T, error) {
	var v T
	found, err := LoadJSON(ctx, store, key, &v)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return &v, nil
}
