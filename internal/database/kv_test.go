package database

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nudge.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	t.Parallel()

	pg := &DB{dialect: DialectPostgres}
	lite := &DB{dialect: DialectSQLite}
	q := "SELECT value FROM kv_store WHERE key = $1 AND value = $2"
	if got := pg.rebind(q); got != q {
		t.Errorf("postgres rebind changed the query: %q", got)
	}
	if got, want := lite.rebind(q), "SELECT value FROM kv_store WHERE key = ?1 AND value = ?2"; got != want {
		t.Errorf("sqlite rebind = %q, want %q", got, want)
	}
}

func TestKVRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewKVRepository(db)

	if db.Dialect() != DialectSQLite {
		t.Fatalf("Dialect() = %s, want sqlite", db.Dialect())
	}
	if _, found, err := repo.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) found=%v err=%v, want not found", found, err)
	}
	if err := repo.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("Set (overwrite): %v", err)
	}
	if err := repo.Set(ctx, "b", "3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, found, err := repo.Get(ctx, "a"); err != nil || !found || v != "2" {
		t.Errorf("Get(a) = %q, %v, %v; want 2, true, nil", v, found, err)
	}
	if err := repo.RemoveMany(ctx, []string{"a", "nope"}); err != nil {
		t.Fatalf("RemoveMany: %v", err)
	}
	if _, found, _ := repo.Get(ctx, "a"); found {
		t.Error("Expected a to be removed")
	}
	if v, found, _ := repo.Get(ctx, "b"); !found || v != "3" {
		t.Errorf("Get(b) = %q, %v; want 3, true", v, found)
	}
	if err := repo.RemoveMany(ctx, nil); err != nil {
		t.Errorf("RemoveMany(nil): %v", err)
	}
	if err := repo.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestKVRepository_JSONHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewKVRepository(openTestDB(t))

	usage := map[string]int{"collaboration": 3}
	if err := storage.SaveJSON(ctx, repo, storage.FeatureUsageKey("u1"), usage); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	got := map[string]int{}
	found, err := storage.LoadJSON(ctx, repo, storage.FeatureUsageKey("u1"), &got)
	if err != nil || !found {
		t.Fatalf("LoadJSON found=%v err=%v", found, err)
	}
	if got["collaboration"] != 3 {
		t.Errorf("collaboration = %d, want 3", got["collaboration"])
	}
}

func TestRatelimitConfigRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewRatelimitConfigRepository(openTestDB(t))
	repo.now = func() time.Time { return time.Unix(1_750_000_000, 0) }

	if c, err := repo.Get(ctx); err != nil || c != nil {
		t.Fatalf("Get on empty table = %v, %v; want nil, nil", c, err)
	}
	if err := repo.Set(ctx, &models.RatelimitConfig{Rate: "  "}); err == nil {
		t.Error("Expected error for empty rate")
	}
	if err := repo.Set(ctx, &models.RatelimitConfig{Rate: "5-S"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	in := &models.RatelimitConfig{Rate: " 100-M "}
	if err := repo.Set(ctx, in); err != nil {
		t.Fatalf("Set (update): %v", err)
	}
	if in.Rate != " 100-M " {
		t.Error("Expected Set to leave the caller's value untouched")
	}

	c, err := repo.Get(ctx)
	if err != nil || c == nil {
		t.Fatalf("Get = %v, %v", c, err)
	}
	if c.Rate != "100-M" || !c.UpdatedAt.Equal(time.Unix(1_750_000_000, 0)) {
		t.Errorf("Get = %+v, want rate 100-M updated at the fixed clock", c)
	}
}

func TestCorsConfigRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewCorsConfigRepository(openTestDB(t))

	if c, err := repo.Get(ctx); err != nil || c != nil {
		t.Fatalf("Get on empty table = %v, %v; want nil, nil", c, err)
	}
	if err := repo.Set(ctx, &models.CorsConfig{}); err == nil {
		t.Error("Expected error for empty origins")
	}
	if err := repo.Set(ctx, &models.CorsConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}); err == nil {
		t.Error("Expected error for credentials with a wildcard origin")
	}

	in := &models.CorsConfig{
		AllowedOrigins:   []string{"https://a.example.com", " https://b.example.com", "https://a.example.com"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if err := repo.Set(ctx, in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c, err := repo.Get(ctx)
	if err != nil || c == nil {
		t.Fatalf("Get = %v, %v", c, err)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !slices.Equal(c.AllowedOrigins, want) || !c.AllowCredentials || c.MaxAge != 300 {
		t.Errorf("Get = %+v, want origins %v with credentials and max age 300", c, want)
	}

	if err := repo.Set(ctx, &models.CorsConfig{AllowedOrigins: []string{"*"}}); err != nil {
		t.Fatalf("Set (replace): %v", err)
	}
	if c, _ := repo.Get(ctx); c == nil || !slices.Equal(c.AllowedOrigins, []string{"*"}) || c.AllowCredentials {
		t.Errorf("Expected the single row to be replaced, got %+v", c)
	}
}
