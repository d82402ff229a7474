package contextbuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

// loginHistoryCap bounds the stored visit days
const loginHistoryCap = 60

// Counters maintains the per-user behavioral counters the builder reads
type Counters struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewCounters creates Counters over store
func NewCounters(store storage.Store, log *zap.Logger) *Counters {
	if log == nil {
		log = zap.NewNop()
	}
	return &Counters{store: store, logger: log, now: time.Now}
}

type counterWrite struct {
	key   string
	value any
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// loadOrZero decodes key into dst, treating a malformed value as absent
func (c *Counters) loadOrZero(ctx context.Context, key string, dst any) error {
	_, err := storage.LoadJSON(ctx, c.store, key, dst)
	if errors.Is(err, storage.ErrMalformed) {
		c.logger.Warn("counter_malformed", zap.String("key", key))
		return nil
	}
	return err
}

// RecordVisit registers a visit by userID. The first visit of a calendar day
// extends or restarts the streak, counts an active day, and moves the previous
// visit day into last_login.
func (c *Counters) RecordVisit(ctx context.Context, userID string) error {
	if userID == "" || userID == models.GuestUserID {
		return nil
	}
	now := c.now().UTC()

	var history []time.Time
	if err := c.loadOrZero(ctx, storage.LoginHistoryKey(userID), &history); err != nil {
		return fmt.Errorf("failed to load login history: %w", err)
	}
	var previous time.Time
	if len(history) > 0 {
		previous = history[len(history)-1].UTC()
		if sameDay(previous, now) {
			return nil
		}
	}

	var streak, total int
	if err := c.loadOrZero(ctx, storage.ConsecutiveDaysKey(userID), &streak); err != nil {
		return fmt.Errorf("failed to load streak: %w", err)
	}
	if err := c.loadOrZero(ctx, storage.TotalDaysActiveKey(userID), &total); err != nil {
		return fmt.Errorf("failed to load active days: %w", err)
	}

	if !previous.IsZero() && sameDay(previous, now.AddDate(0, 0, -1)) {
		streak++
	} else {
		streak = 1
	}
	total++

	history = append(history, now)
	if over := len(history) - loginHistoryCap; over > 0 {
		history = history[over:]
	}

	writes := []counterWrite{
		{storage.ConsecutiveDaysKey(userID), streak},
		{storage.TotalDaysActiveKey(userID), total},
		{storage.LoginHistoryKey(userID), history},
	}
	if !previous.IsZero() {
		writes = append(writes, counterWrite{storage.LastLoginKey(userID), previous})
	}
	for _, w := range writes {
		if err := storage.SaveJSON(ctx, c.store, w.key, w.value); err != nil {
			return err
		}
	}

	c.logger.Debug("visit_recorded",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.Int("streak", streak),
		zap.Int("total_days", total))
	return nil
}

// RecordFeatureUse increments the usage count of feature for userID
func (c *Counters) RecordFeatureUse(ctx context.Context, userID, feature string) error {
	if userID == "" || userID == models.GuestUserID || feature == "" {
		return nil
	}
	usage := map[string]int{}
	if err := c.loadOrZero(ctx, storage.FeatureUsageKey(userID), &usage); err != nil {
		return fmt.Errorf("failed to load feature usage: %w", err)
	}
	if usage == nil {
		usage = map[string]int{}
	}
	usage[feature]++
	return storage.SaveJSON(ctx, c.store, storage.FeatureUsageKey(userID), usage)
}
