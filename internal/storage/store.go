// Package storage defines the durable key/value contract the engine persists through
// and the in-memory and Redis implementations of it.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed wraps decode failures of persisted values
var ErrMalformed = errors.New("malformed stored value")

// Store is a durable key/value store holding string values
type Store interface {
	// Get returns the value for key; found is false when the key is absent
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error
	// RemoveMany deletes keys; missing keys are ignored
	RemoveMany(ctx context.Context, keys []string) error
}

// HealthChecker is implemented by stores that can verify their backend connection
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LoadJSON decodes the value stored under key into dst.
// It returns found=false and leaves dst untouched when the key is absent.
func LoadJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
