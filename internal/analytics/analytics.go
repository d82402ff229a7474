// Package analytics records generation and interaction events, derives per-message
// effectiveness and per-user engagement, and evaluates A/B experiments.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

const (
	// DefaultDailyCap bounds the events kept per day
	DefaultDailyCap = 1000
	// UserWindowDays is the lookback of per-user engagement metrics
	UserWindowDays = 30
	// DefaultTypeWindowDays is the default lookback of per-type performance
	DefaultTypeWindowDays = 7

	maxIndexedMessages = 5000
)

// Sink consumes analytics events
type Sink interface {
	Apply(ctx context.Context, event *models.AnalyticsEvent) error
}

// Analytics is the durable analytics log plus its derived caches
type Analytics struct {
	store      storage.Store
	logger     *zap.Logger
	dailyCap   int
	thresholds ABThresholds
	now        func() time.Time

	// serializes read-modify-write of day logs, metrics and the index
	writeMu sync.Mutex

	mu            sync.RWMutex
	effectiveness map[string]float64
	users         map[string]*UserEngagement
}

var _ Sink = (*Analytics)(nil)

// Option configures Analytics
type Option func(*Analytics)

// WithDailyCap overrides the per-day event cap
func WithDailyCap(n int) Option {
	return func(a *Analytics) {
		if n > 0 {
			a.dailyCap = n
		}
	}
}

// WithThresholds overrides the A/B significance thresholds
func WithThresholds(t ABThresholds) Option {
	return func(a *Analytics) { a.thresholds = t.withDefaults() }
}

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(a *Analytics) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Analytics backed by store
func New(store storage.Store, log *zap.Logger, opts ...Option) *Analytics {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Analytics{
		store:         store,
		logger:        log,
		dailyCap:      DefaultDailyCap,
		thresholds:    DefaultABThresholds(),
		now:           time.Now,
		effectiveness: make(map[string]float64),
		users:         make(map[string]*UserEngagement),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewGenerationEvent describes the generation of msg for uc
func NewGenerationEvent(msg *models.ContextualMessage, uc *models.UserContext, at time.Time) *models.AnalyticsEvent {
	ev := &models.AnalyticsEvent{
		ID:          uuid.NewString(),
		Kind:        models.EventGeneration,
		Timestamp:   at,
		UserID:      uc.UserID,
		MessageID:   msg.ID,
		MessageType: msg.Type,
		Category:    msg.Category,
		Source:      msg.Metadata.Source,
		TotalScore:  msg.TotalScore(),
		Context: &models.EventContext{
			SkillLevel:      uc.SkillLevel,
			TimeOfDay:       uc.TimeOfDay,
			DayOfWeek:       uc.DayOfWeek,
			EngagementScore: uc.EngagementScore,
			ContentCount:    uc.ContentCount,
		},
	}
	if msg.Metadata.Experiment != nil {
		e := *msg.Metadata.Experiment
		ev.Experiment = &e
	}
	return ev
}

// NewInteractionEvent describes a user's interaction with a message
func NewInteractionEvent(userID string, i models.MessageInteraction, category models.MessageCategory, exp *models.Experiment) *models.AnalyticsEvent {
	ev := &models.AnalyticsEvent{
		ID:                 uuid.NewString(),
		Kind:               models.EventInteraction,
		Timestamp:          i.Timestamp,
		UserID:             userID,
		MessageID:          i.MessageID,
		MessageType:        i.MessageType,
		Category:           category,
		Action:             i.Action,
		EngagementDuration: i.EngagementDuration,
		Feedback:           i.Feedback,
	}
	if exp != nil {
		e := *exp
		ev.Experiment = &e
	}
	return ev
}

// TrackGeneration records that msg was generated for uc
func (a *Analytics) TrackGeneration(ctx context.Context, msg *models.ContextualMessage, uc *models.UserContext) error {
	return a.Apply(ctx, NewGenerationEvent(msg, uc, a.now()))
}

// TrackInteraction records an interaction of userID with a message
func (a *Analytics) TrackInteraction(ctx context.Context, userID string, i models.MessageInteraction, category models.MessageCategory, exp *models.Experiment) error {
	return a.Apply(ctx, NewInteractionEvent(userID, i, category, exp))
}

// Apply appends event to its day log and updates the derived metrics
func (a *Analytics) Apply(ctx context.Context, event *models.AnalyticsEvent) error {
	if event == nil {
		return errors.New("nil analytics event")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.appendEvent(ctx, event); err != nil {
		return err
	}
	if event.MessageID != "" {
		if err := a.updateMetrics(ctx, event); err != nil {
			return err
		}
	}

	a.mu.Lock()
	delete(a.effectiveness, event.MessageID)
	delete(a.users, event.UserID)
	a.mu.Unlock()

	a.logger.Debug("analytics_event_applied",
		zap.String("kind", string(event.Kind)),
		zap.String("message_id", logger.SanitizeString(event.MessageID, 128)),
		zap.String("user_id", logger.SanitizeUserID(event.UserID)))
	return nil
}

func (a *Analytics) appendEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	key := storage.EventsKey(event.Timestamp)
	var events []models.AnalyticsEvent
	if _, err := storage.LoadJSON(ctx, a.store, key, &events); err != nil {
		if !errors.Is(err, storage.ErrMalformed) {
			return fmt.Errorf("failed to load analytics events: %w", err)
		}
		a.logger.Warn("analytics_events_malformed", zap.String("key", key))
		events = nil
	}
	events = append(events, *event)
	if over := len(events) - a.dailyCap; over > 0 {
		events = events[over:]
	}
	if err := storage.SaveJSON(ctx, a.store, key, events); err != nil {
		return fmt.Errorf("failed to save analytics events: %w", err)
	}
	return nil
}

// loadEvents returns the events of the last days days, oldest day first
func (a *Analytics) loadEvents(ctx context.Context, days int) ([]models.AnalyticsEvent, error) {
	now := a.now()
	var all []models.AnalyticsEvent
	for i := days - 1; i >= 0; i-- {
		key := storage.EventsKey(now.AddDate(0, 0, -i))
		var events []models.AnalyticsEvent
		if _, err := storage.LoadJSON(ctx, a.store, key, &events); err != nil {
			if errors.Is(err, storage.ErrMalformed) {
				a.logger.Warn("analytics_events_malformed", zap.String("key", key))
				continue
			}
			return nil, fmt.Errorf("failed to load analytics events: %w", err)
		}
		all = append(all, events...)
	}
	return all, nil
}

// Events returns the raw events of the last days days
func (a *Analytics) Events(ctx context.Context, days int) ([]models.AnalyticsEvent, error) {
	if days <= 0 {
		days = DefaultTypeWindowDays
	}
	return a.loadEvents(ctx, days)
}

// Reset clears the in-memory caches; persisted logs are kept
func (a *Analytics) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.effectiveness = make(map[string]float64)
	a.users = make(map[string]*UserEngagement)
}

// isEngagement reports whether an interaction is an active response rather than a passive view
func isEngagement(e models.AnalyticsEvent) bool {
	return e.Kind == models.EventInteraction && e.Action != "" && e.Action != models.ActionViewed
}

func isClick(e models.AnalyticsEvent) bool {
	return e.Kind == models.EventInteraction && e.Action == models.ActionClicked
}

func isImpression(e models.AnalyticsEvent) bool {
	return e.Kind == models.EventInteraction && e.Action == models.ActionViewed
}

func isConversion(e models.AnalyticsEvent) bool {
	return e.Feedback != nil && (e.Feedback.Helpful || e.Feedback.Rating >= 4)
}
