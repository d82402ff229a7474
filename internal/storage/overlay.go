package storage

import (
	"context"
	"sync"
)

// OverlayStore reads through to a base store but keeps every write in
// memory, leaving the base untouched. It backs dry runs against live data.
type OverlayStore struct {
	base Store

	mu      sync.RWMutex
	written map[string]string
	removed map[string]struct{}
}

var _ Store = (*OverlayStore)(nil)

// NewOverlayStore layers a write buffer over base
func NewOverlayStore(base Store) *OverlayStore {
	return &OverlayStore{
		base:    base,
		written: make(map[string]string),
		removed: make(map[string]struct{}),
	}
}

// Get implements Store
func (o *OverlayStore) Get(ctx context.Context, key string) (string, bool, error) {
	o.mu.RLock()
	v, ok := o.written[key]
	_, gone := o.removed[key]
	o.mu.RUnlock()
	switch {
	case ok:
		return v, true, nil
	case gone:
		return "", false, nil
	}
	return o.base.Get(ctx, key)
}

// Set implements Store
func (o *OverlayStore) Set(_ context.Context, key, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.written[key] = value
	delete(o.removed, key)
	return nil
}

// RemoveMany implements Store
func (o *OverlayStore) RemoveMany(_ context.Context, keys []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range keys {
		delete(o.written, k)
		o.removed[k] = struct{}{}
	}
	return nil
}

// Pending returns the number of buffered writes and removals
func (o *OverlayStore) Pending() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.written) + len(o.removed)
}
