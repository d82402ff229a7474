// Package database holds the SQL-backed persistence of the engine: the
// key/value table behind storage.Store and the runtime CORS and rate limit
// settings.
// PostgreSQL (lib/pq) and embedded SQLite (modernc.org/sqlite) share one schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB wraps a sql.DB with the dialect its queries are written for
type DB struct {
	*sql.DB
	dialect Dialect
}

// OpenPostgres connects to PostgreSQL and applies the schema
func OpenPostgres(ctx context.Context, databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return initialize(ctx, sqlDB, DialectPostgres)
}

// OpenSQLite opens or creates the SQLite database at path and applies the schema
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY under load
	sqlDB.SetMaxOpenConns(1)
	return initialize(ctx, sqlDB, DialectSQLite)
}

func initialize(ctx context.Context, sqlDB *sql.DB, dialect Dialect) (*DB, error) {
	db := &DB{DB: sqlDB, dialect: dialect}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Dialect returns the backend the DB talks to
func (db *DB) Dialect() Dialect { return db.dialect }

// HealthCheck verifies the database connection
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// rebind rewrites $N placeholders for SQLite, which takes ?N
func (db *DB) rebind(query string) string {
	if db.dialect == DialectSQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.QueryRowContext(ctx, db.rebind(query), args...)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cors_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		allowed_origins TEXT NOT NULL,
		allow_credentials INTEGER NOT NULL DEFAULT 0,
		max_age INTEGER NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ratelimit_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		rate TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
