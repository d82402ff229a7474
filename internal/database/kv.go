package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/benvon/smart-nudge/internal/storage"
)

// KVRepository implements storage.Store over the kv_store table
type KVRepository struct {
	db  *DB
	now func() time.Time
}

var (
	_ storage.Store         = (*KVRepository)(nil)
	_ storage.HealthChecker = (*KVRepository)(nil)
)

// NewKVRepository creates a new key/value repository
func NewKVRepository(db *DB) *KVRepository {
	return &KVRepository{db: db, now: time.Now}
}

// Get implements storage.Store
func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.queryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements storage.Store
func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`, key, value, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// RemoveMany implements storage.Store
func (r *KVRepository) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if r.db.dialect == DialectPostgres {
		if _, err := r.db.exec(ctx, `DELETE FROM kv_store WHERE key = ANY($1)`, pq.Array(keys)); err != nil {
			return fmt.Errorf("failed to remove keys: %w", err)
		}
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, r.db.rebind(`DELETE FROM kv_store WHERE key = $1`))
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k); err != nil {
			return fmt.Errorf("failed to remove %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal: %w", err)
	}
	return nil
}

// HealthCheck implements storage.HealthChecker
func (r *KVRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
