// Package contextbuilder turns raw user, content and device records plus the
// stored behavioral counters into a UserContext snapshot.
package contextbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone lookups must not depend on the host

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/ledger"
	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

// PlanningSource supplies calendar events and goals for a user
type PlanningSource interface {
	Events(ctx context.Context, userID string) ([]models.PlanningEvent, error)
	Goals(ctx context.Context, userID string) ([]models.Goal, error)
}

// Input is the raw material of one context build
type Input struct {
	User       *models.RawUser
	Content    []models.ContentItem
	Recordings []models.RecordingItem
	Analytics  *models.PrecomputedAnalytics
	Device     *models.DeviceInfo
}

// Builder builds UserContext snapshots
type Builder struct {
	store    storage.Store
	ledger   *ledger.Ledger
	planning PlanningSource
	holidays []Holiday
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Builder
type Option func(*Builder)

// WithPlanningSource enables the planning summary
func WithPlanningSource(p PlanningSource) Option {
	return func(b *Builder) { b.planning = p }
}

// WithHolidays replaces the holiday calendar
func WithHolidays(h []Holiday) Option {
	return func(b *Builder) {
		if len(h) > 0 {
			b.holidays = h
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Builder reading counters from store and history from l
func New(store storage.Store, l *ledger.Ledger, opts ...Option) *Builder {
	b := &Builder{
		store:    store,
		ledger:   l,
		holidays: DefaultHolidays(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns a fully populated context. Any failure, including a panic,
// degrades to the default context of the user.
func (b *Builder) Build(ctx context.Context, in Input) (uc *models.UserContext) {
	userID := ""
	if in.User != nil {
		userID = in.User.ID
	}
	now := b.now()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("context_build_panic",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("panic", logger.SanitizeString(fmt.Sprint(r), 500)))
			uc = models.DefaultUserContext(userID, now)
		}
	}()

	uc, err := b.build(ctx, userID, in, now)
	if err != nil {
		b.logger.Warn("context_build_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)))
		return models.DefaultUserContext(userID, now)
	}
	return uc
}

func (b *Builder) build(ctx context.Context, userID string, in Input, now time.Time) (*models.UserContext, error) {
	uc := models.DefaultUserContext(userID, now)
	uc.UserName = displayName(in.User)
	if in.User != nil {
		uc.Email = in.User.Email
	}

	b.applyDevice(uc, in.Device, now)

	words := 0
	for _, it := range in.Content {
		words += wordCount(it.Content)
	}
	uc.ContentCount = len(in.Content)
	uc.RecordingsCount = len(in.Recordings)
	uc.TotalWordsWritten = words
	if uc.ContentCount > 0 {
		uc.AverageContentLength = (words + uc.ContentCount/2) / uc.ContentCount
	}
	for _, it := range in.Content {
		if it.IsFavorite {
			uc.FavoriteCount++
		}
	}
	uc.MostUsedTopics = topics(in.Content)
	uc.ContentQualityScore = averageQuality(in.Content)
	uc.IsFirstLogin = uc.ContentCount == 0 && uc.RecordingsCount == 0
	uc.ProductivityTrend = productivityTrend(in.Content, now)
	uc.SkillLevel = skillLevel(uc.ContentCount+uc.RecordingsCount, uc.ContentQualityScore)
	uc.MilestoneProgress = milestones(uc.ContentCount, words)

	if userID != "" {
		if err := b.applyCounters(ctx, uc, userID, now); err != nil {
			return nil, err
		}
	}
	if in.Analytics != nil {
		for k, v := range in.Analytics.FeatureUsage {
			uc.FeatureUsage[k] = max(uc.FeatureUsage[k], v)
		}
	}

	uniqueFeatures := 0
	if in.Analytics != nil && in.Analytics.UniqueFeatures > 0 {
		uniqueFeatures = in.Analytics.UniqueFeatures
	} else {
		for _, n := range uc.FeatureUsage {
			if n > 0 {
				uniqueFeatures++
			}
		}
	}
	uc.EngagementScore = engagementScore(uc.ContentCount, uc.RecordingsCount, uc.ConsecutiveDays, uniqueFeatures)
	uc.CollaborationLevel = collaborationLevel(uc.FeatureUsage)
	uc.PreferredTone = preferredTone(uc.InteractionHistory)

	if b.planning != nil && userID != "" {
		uc.Planning = b.planningSummary(ctx, userID, now)
	}
	return uc, nil
}

func (b *Builder) applyDevice(uc *models.UserContext, d *models.DeviceInfo, now time.Time) {
	local := now
	if d != nil {
		if d.Timezone != "" {
			if loc, err := time.LoadLocation(d.Timezone); err == nil {
				local = now.In(loc)
				uc.Timezone = loc.String()
			} else {
				b.logger.Debug("unknown_timezone", zap.String("timezone", logger.SanitizeString(d.Timezone, 64)))
			}
		}
		uc.PreferredLanguage = NormalizeLanguage(d.Language)
		uc.Platform = strings.ToLower(d.Platform)
		uc.AppVersion = d.AppVersion
	}
	uc.DeviceType = deviceType(d)
	uc.TimeOfDay = models.TimeOfDayFor(local.Hour())
	uc.DayOfWeek = local.Weekday()
	uc.Season = models.SeasonFor(local.Month())
	uc.IsHoliday = isHoliday(b.holidays, local)
}

// applyCounters reads the stored per-user state. Malformed records fall back to
// defaults; store failures are returned.
func (b *Builder) applyCounters(ctx context.Context, uc *models.UserContext, userID string, now time.Time) error {
	load := func(key string, dst any) (bool, error) {
		found, err := storage.LoadJSON(ctx, b.store, key, dst)
		if errors.Is(err, storage.ErrMalformed) {
			b.logger.Warn("stored_counter_malformed", zap.String("key", key))
			return false, nil
		}
		return found, err
	}

	var streak, total int
	if _, err := load(storage.ConsecutiveDaysKey(userID), &streak); err != nil {
		return err
	}
	found, err := load(storage.TotalDaysActiveKey(userID), &total)
	if err != nil {
		return err
	}
	if !found {
		total = 1
	}
	uc.ConsecutiveDays = streak
	uc.TotalDaysActive = total

	var lastLogin time.Time
	if found, err := load(storage.LastLoginKey(userID), &lastLogin); err != nil {
		return err
	} else if found {
		uc.DaysSinceLastLogin = max(0, int(now.Sub(lastLogin).Hours()/24))
	}
	uc.IsReturningUser = uc.DaysSinceLastLogin > 7

	var history []time.Time
	found, err = storage.LoadJSON(ctx, b.store, storage.LoginHistoryKey(userID), &history)
	switch {
	case errors.Is(err, storage.ErrMalformed):
		uc.LoginFrequency = models.LoginOccasional
	case err != nil:
		return err
	case !found:
		uc.LoginFrequency = models.LoginRare
	default:
		uc.LoginFrequency = loginFrequency(history, now)
	}

	usage := map[string]int{}
	if _, err := load(storage.FeatureUsageKey(userID), &usage); err != nil {
		return err
	}
	if usage != nil {
		uc.FeatureUsage = usage
	}

	prefs := models.DefaultMessagePreferences()
	if found, err := load(storage.PreferencesKey(userID), &prefs); err != nil {
		return err
	} else if !found {
		prefs = models.DefaultMessagePreferences()
	}
	uc.MessagePreferences = prefs

	var achievements []models.Achievement
	if _, err := load(storage.AchievementsKey(userID), &achievements); err != nil {
		return err
	}
	uc.Achievements = achievements

	if b.ledger != nil {
		history, err := b.ledger.Load(ctx, userID)
		if err != nil {
			return err
		}
		uc.InteractionHistory = history
	}
	return nil
}

// planningSummary degrades to no planning data when the source fails
func (b *Builder) planningSummary(ctx context.Context, userID string, now time.Time) *models.PlanningSummary {
	events, err := b.planning.Events(ctx, userID)
	if err != nil {
		b.logger.Warn("planning_events_unavailable", zap.String("error", logger.SanitizeError(err)))
		return nil
	}
	goals, err := b.planning.Goals(ctx, userID)
	if err != nil {
		b.logger.Warn("planning_goals_unavailable", zap.String("error", logger.SanitizeError(err)))
		return nil
	}
	return planningSummary(events, goals, now)
}
