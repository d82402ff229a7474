package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

// MessageMetrics are the running counters of one message
type MessageMetrics struct {
	MessageID       string                 `json:"message_id"`
	Type            models.MessageType     `json:"type,omitempty"`
	Category        models.MessageCategory `json:"category,omitempty"`
	Generated       int                    `json:"generated"`
	Impressions     int                    `json:"impressions"`
	Clicks          int                    `json:"clicks"`
	Dismissals      int                    `json:"dismissals"`
	Ratings         int                    `json:"ratings"`
	RatingSum       float64                `json:"rating_sum"`
	Conversions     int                    `json:"conversions"`
	TotalEngagement time.Duration          `json:"total_engagement"`
	LastEvent       time.Time              `json:"last_event"`
	Experiment      *models.Experiment     `json:"experiment,omitempty"`
}

func rate(n, d int) float64 {
	if d < 1 {
		d = 1
	}
	return math.Min(1, float64(n)/float64(d))
}

// ClickRate is clicks per impression
func (m *MessageMetrics) ClickRate() float64 { return rate(m.Clicks, m.Impressions) }

// EngagementRate is clicks plus ratings per impression
func (m *MessageMetrics) EngagementRate() float64 { return rate(m.Clicks+m.Ratings, m.Impressions) }

// ConversionRate is helpful-or-high-rated feedback per impression
func (m *MessageMetrics) ConversionRate() float64 { return rate(m.Conversions, m.Impressions) }

// Sentiment is the mean normalized rating, 0.5 when unrated
func (m *MessageMetrics) Sentiment() float64 {
	if m.Ratings == 0 {
		return 0.5
	}
	return m.RatingSum / float64(m.Ratings)
}

// Effectiveness blends click, engagement, sentiment and conversion rates
func (m *MessageMetrics) Effectiveness() float64 {
	v := 0.4*m.ClickRate() + 0.3*m.EngagementRate() + 0.2*m.Sentiment() + 0.1*m.ConversionRate()
	return math.Max(0, math.Min(1, v))
}

// MessagePerformance is a metrics record with its effectiveness resolved
type MessagePerformance struct {
	MessageMetrics
	Effectiveness float64 `json:"effectiveness"`
}

func (a *Analytics) loadMetrics(ctx context.Context, messageID string) (*MessageMetrics, error) {
	m := &MessageMetrics{MessageID: messageID}
	found, err := storage.LoadJSON(ctx, a.store, storage.MetricsKey(messageID), m)
	if err != nil {
		if errors.Is(err, storage.ErrMalformed) {
			a.logger.Warn("message_metrics_malformed", zap.String("message_id", messageID))
			return &MessageMetrics{MessageID: messageID}, nil
		}
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return m, nil
}

func (a *Analytics) updateMetrics(ctx context.Context, ev *models.AnalyticsEvent) error {
	m, err := a.loadMetrics(ctx, ev.MessageID)
	if err != nil {
		return fmt.Errorf("failed to load message metrics: %w", err)
	}
	isNew := m == nil
	if isNew {
		m = &MessageMetrics{MessageID: ev.MessageID}
	}

	if ev.MessageType != "" {
		m.Type = ev.MessageType
	}
	if ev.Category != "" {
		m.Category = ev.Category
	}
	if ev.Experiment != nil {
		e := *ev.Experiment
		m.Experiment = &e
	}
	m.LastEvent = ev.Timestamp

	switch ev.Kind {
	case models.EventGeneration:
		m.Generated++
	case models.EventInteraction:
		switch ev.Action {
		case models.ActionViewed:
			m.Impressions++
		case models.ActionClicked:
			m.Clicks++
		case models.ActionDismissed:
			m.Dismissals++
		case models.ActionRated:
			if ev.Feedback != nil && ev.Feedback.Rating > 0 {
				m.Ratings++
				m.RatingSum += float64(ev.Feedback.Rating) / 5
			}
		}
		if isConversion(*ev) {
			m.Conversions++
		}
		m.TotalEngagement += ev.EngagementDuration
	}

	if err := storage.SaveJSON(ctx, a.store, storage.MetricsKey(m.MessageID), m); err != nil {
		return fmt.Errorf("failed to save message metrics: %w", err)
	}
	if isNew {
		return a.indexMessage(ctx, m.MessageID)
	}
	return nil
}

func (a *Analytics) loadIndex(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := storage.LoadJSON(ctx, a.store, storage.MetricsIndexKey, &ids); err != nil {
		if errors.Is(err, storage.ErrMalformed) {
			a.logger.Warn("message_metrics_index_malformed")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load metrics index: %w", err)
	}
	return ids, nil
}

func (a *Analytics) indexMessage(ctx context.Context, messageID string) error {
	ids, err := a.loadIndex(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, messageID) {
		return nil
	}
	ids = append(ids, messageID)
	if over := len(ids) - maxIndexedMessages; over > 0 {
		evicted := make([]string, 0, over)
		for _, id := range ids[:over] {
			evicted = append(evicted, storage.MetricsKey(id))
		}
		if err := a.store.RemoveMany(ctx, evicted); err != nil {
			a.logger.Warn("message_metrics_eviction_failed", zap.Error(err))
		}
		ids = ids[over:]
	}
	if err := storage.SaveJSON(ctx, a.store, storage.MetricsIndexKey, ids); err != nil {
		return fmt.Errorf("failed to save metrics index: %w", err)
	}
	return nil
}

// Metrics returns the counters of one message, or nil when it has none
func (a *Analytics) Metrics(ctx context.Context, messageID string) (*MessageMetrics, error) {
	return a.loadMetrics(ctx, messageID)
}

// Effectiveness returns the message's effectiveness, computing it on first use
// after each new event
func (a *Analytics) Effectiveness(ctx context.Context, messageID string) (float64, error) {
	a.mu.RLock()
	v, ok := a.effectiveness[messageID]
	a.mu.RUnlock()
	if ok {
		return v, nil
	}

	m, err := a.loadMetrics(ctx, messageID)
	if err != nil {
		return 0, fmt.Errorf("failed to load message metrics: %w", err)
	}
	if m == nil {
		return 0, nil
	}
	v = m.Effectiveness()

	a.mu.Lock()
	a.effectiveness[messageID] = v
	a.mu.Unlock()
	return v, nil
}

// TopMessages returns the n indexed messages with the highest effectiveness
func (a *Analytics) TopMessages(ctx context.Context, n int) ([]MessagePerformance, error) {
	ids, err := a.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MessagePerformance, 0, len(ids))
	for _, id := range ids {
		m, err := a.loadMetrics(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load message metrics: %w", err)
		}
		if m == nil || m.Impressions == 0 {
			continue
		}
		eff, err := a.Effectiveness(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, MessagePerformance{MessageMetrics: *m, Effectiveness: eff})
	}
	slices.SortStableFunc(out, func(x, y MessagePerformance) int {
		switch {
		case x.Effectiveness > y.Effectiveness:
			return -1
		case x.Effectiveness < y.Effectiveness:
			return 1
		default:
			return 0
		}
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
