// Package ledger keeps each user's bounded, append-only log of message interactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

// DefaultCapacity is the number of interactions kept per user
const DefaultCapacity = 100

// Ledger buffers per-user interaction logs in memory and persists them to a Store
type Ledger struct {
	store    storage.Store
	logger   *zap.Logger
	capacity int

	mu      sync.RWMutex
	buffers map[string][]models.MessageInteraction
}

// New creates a Ledger. A capacity <= 0 uses DefaultCapacity.
func New(store storage.Store, capacity int, log *zap.Logger) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		logger:   log,
		capacity: capacity,
		buffers:  make(map[string][]models.MessageInteraction),
	}
}

// Capacity returns the per-user bound
func (l *Ledger) Capacity() int { return l.capacity }

// Load reads the user's persisted log into the buffer and returns a copy of it.
// A malformed record yields an empty history; a store failure is returned.
func (l *Ledger) Load(ctx context.Context, userID string) ([]models.MessageInteraction, error) {
	var history []models.MessageInteraction
	_, err := storage.LoadJSON(ctx, l.store, storage.InteractionsKey(userID), &history)
	switch {
	case errors.Is(err, storage.ErrMalformed):
		l.logger.Warn("interaction_ledger_malformed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)))
		history = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load interaction ledger: %w", err)
	}
	history = l.trim(history)

	l.mu.Lock()
	l.buffers[userID] = history
	l.mu.Unlock()

	return slices.Clone(history), nil
}

// Append adds an interaction to the user's log, dropping the oldest entries past
// capacity, and persists the result
func (l *Ledger) Append(ctx context.Context, userID string, i models.MessageInteraction) error {
	l.mu.RLock()
	_, loaded := l.buffers[userID]
	l.mu.RUnlock()
	if !loaded {
		if _, err := l.Load(ctx, userID); err != nil {
			return err
		}
	}

	l.mu.Lock()
	history := l.trim(append(l.buffers[userID], i))
	l.buffers[userID] = history
	snapshot := slices.Clone(history)
	l.mu.Unlock()

	if err := storage.SaveJSON(ctx, l.store, storage.InteractionsKey(userID), snapshot); err != nil {
		return fmt.Errorf("failed to persist interaction ledger: %w", err)
	}
	return nil
}

// History returns a copy of the buffered log, oldest first
func (l *Ledger) History(userID string) []models.MessageInteraction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.buffers[userID])
}

// RecentTypes returns the message types of the last n typed interactions, oldest first
func (l *Ledger) RecentTypes(userID string, n int) []models.MessageType {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.buffers[userID]
	var types []models.MessageType
	for i := len(history) - 1; i >= 0 && len(types) < n; i-- {
		if t := history[i].MessageType; t != "" {
			types = append(types, t)
		}
	}
	slices.Reverse(types)
	return types
}

// ShownWithin reports whether typ appears among the last n interactions
func (l *Ledger) ShownWithin(userID string, typ models.MessageType, n int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.buffers[userID]
	if n < len(history) {
		history = history[len(history)-n:]
	}
	return slices.ContainsFunc(history, func(i models.MessageInteraction) bool { return i.MessageType == typ })
}

// LastShown returns the time of the latest impression of typ
func (l *Ledger) LastShown(userID string, typ models.MessageType) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.buffers[userID]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Action == models.ActionViewed && history[i].MessageType == typ {
			return history[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

// Clear removes the user's persisted log and buffer
func (l *Ledger) Clear(ctx context.Context, userID string) error {
	l.mu.Lock()
	delete(l.buffers, userID)
	l.mu.Unlock()
	if err := l.store.RemoveMany(ctx, []string{storage.InteractionsKey(userID)}); err != nil {
		return fmt.Errorf("failed to clear interaction ledger: %w", err)
	}
	return nil
}

// Reset drops all in-memory buffers; persisted logs are kept
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffers = make(map[string][]models.MessageInteraction)
}

func (l *Ledger) trim(history []models.MessageInteraction) []models.MessageInteraction {
	if len(history) > l.capacity {
		history = slices.Clone(history[len(history)-l.capacity:])
	}
	return history
}
