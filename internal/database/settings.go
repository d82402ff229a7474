package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
)

// Both settings tables hold at most one row, keyed id = 1.

// CorsConfigRepository persists the runtime CORS policy
type CorsConfigRepository struct {
	db  *DB
	now func() time.Time
}

// NewCorsConfigRepository creates a CORS policy repository on db
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db, now: time.Now}
}

// Get returns the stored policy, or nil when none has been set
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	var (
		origins     string
		credentials int64
		updated     int64
		c           models.CorsConfig
	)
	err := r.db.queryRow(ctx,
		`SELECT allowed_origins, allow_credentials, max_age, updated_at FROM cors_config WHERE id = 1`,
	).Scan(&origins, &credentials, &c.MaxAge, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cors config: %w", err)
	}
	c.AllowedOrigins = models.ParseOrigins(origins)
	c.AllowCredentials = credentials != 0
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	return &c, nil
}

// Set replaces the policy after normalizing a copy of c
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	next := *c
	if err := next.Normalize(); err != nil {
		return err
	}
	_, err := r.db.exec(ctx, `
		INSERT INTO cors_config (id, allowed_origins, allow_credentials, max_age, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
	`, strings.Join(next.AllowedOrigins, ","), boolInt(next.AllowCredentials), next.MaxAge, r.now().Unix())
	if err != nil {
		return fmt.Errorf("set cors config: %w", err)
	}
	return nil
}

// RatelimitConfigRepository persists the runtime request rate
type RatelimitConfigRepository struct {
	db  *DB
	now func() time.Time
}

// NewRatelimitConfigRepository creates a rate limit repository on db
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db, now: time.Now}
}

// Get returns the stored rate, or nil when none has been set
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	var (
		c       models.RatelimitConfig
		updated int64
	)
	err := r.db.queryRow(ctx, `SELECT rate, updated_at FROM ratelimit_config WHERE id = 1`).Scan(&c.Rate, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ratelimit config: %w", err)
	}
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	return &c, nil
}

// Set replaces the rate after normalizing a copy of c
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	next := *c
	if err := next.Normalize(); err != nil {
		return err
	}
	_, err := r.db.exec(ctx, `
		INSERT INTO ratelimit_config (id, rate, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at
	`, next.Rate, r.now().Unix())
	if err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
