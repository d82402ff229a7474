package analytics

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
)

const defaultOptimalFrequency = 3

// UserEngagement summarizes how a user responds to messages
type UserEngagement struct {
	UserID                    string                   `json:"user_id"`
	TotalMessagesShown        int                      `json:"total_messages_shown"`
	TotalInteractions         int                      `json:"total_interactions"`
	OverallEngagementRate     float64                  `json:"overall_engagement_rate"`
	PreferredTypes            []models.MessageType     `json:"preferred_types"`
	PreferredCategories       []models.MessageCategory `json:"preferred_categories"`
	BestTimeSlots             []string                 `json:"best_time_slots"`
	AverageEngagementDuration time.Duration            `json:"average_engagement_duration"`
	OptimalFrequency          int                      `json:"optimal_frequency"`
}

// TypePerformance aggregates the events of one message type
type TypePerformance struct {
	Generated         int      `json:"generated"`
	Interactions      int      `json:"interactions"`
	Clicks            int      `json:"clicks"`
	AverageEngagement float64  `json:"average_engagement"`
	Effectiveness     float64  `json:"effectiveness"`
	BestHours         []string `json:"best_hours"`
}

type counted[K comparable] struct {
	key   K
	count int
}

// topKeys returns up to n keys by descending count, ties broken by key order
func topKeys[K cmp.Ordered](counts map[K]int, n int) []K {
	entries := make([]counted[K], 0, len(counts))
	for k, c := range counts {
		if c > 0 {
			entries = append(entries, counted[K]{k, c})
		}
	}
	slices.SortFunc(entries, func(a, b counted[K]) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return cmp.Compare(a.key, b.key)
	})
	out := make([]K, 0, n)
	for i := 0; i < len(entries) && i < n; i++ {
		out = append(out, entries[i].key)
	}
	return out
}

func timeSlot(t time.Time) string {
	start := t.Hour() / 4 * 4
	return fmt.Sprintf("%d-%dh", start, start+4)
}

func hourSlot(hour int) string {
	return fmt.Sprintf("%dh-%dh", hour, hour+1)
}

// UserEngagement computes userID's engagement over the last 30 days. The result
// is cached until the next event for that user.
func (a *Analytics) UserEngagement(ctx context.Context, userID string) (*UserEngagement, error) {
	a.mu.RLock()
	cached, ok := a.users[userID]
	a.mu.RUnlock()
	if ok {
		c := *cached
		return &c, nil
	}

	events, err := a.loadEvents(ctx, UserWindowDays)
	if err != nil {
		return nil, err
	}
	var mine []models.AnalyticsEvent
	for _, e := range events {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	ue := computeUserEngagement(userID, mine)

	a.mu.Lock()
	a.users[userID] = ue
	a.mu.Unlock()

	c := *ue
	return &c, nil
}

func computeUserEngagement(userID string, events []models.AnalyticsEvent) *UserEngagement {
	ue := &UserEngagement{UserID: userID, OptimalFrequency: defaultOptimalFrequency}

	typeScore := map[models.MessageType]int{}
	categoryScore := map[models.MessageCategory]int{}
	slots := map[string]int{}
	var totalDuration time.Duration
	durations := 0

	for _, e := range events {
		switch {
		case e.Kind == models.EventGeneration:
			ue.TotalMessagesShown++
			// shown types count once, engaged types count double
			if e.MessageType != "" {
				typeScore[e.MessageType]++
			}
			if e.Category != "" {
				categoryScore[e.Category]++
			}
		case isEngagement(e):
			ue.TotalInteractions++
			slots[timeSlot(e.Timestamp)]++
			if e.Action != models.ActionDismissed {
				if e.MessageType != "" {
					typeScore[e.MessageType] += 2
				}
				if e.Category != "" {
					categoryScore[e.Category] += 2
				}
			}
		}
		if e.EngagementDuration > 0 {
			totalDuration += e.EngagementDuration
			durations++
		}
	}

	if ue.TotalMessagesShown > 0 {
		ue.OverallEngagementRate = float64(ue.TotalInteractions) / float64(ue.TotalMessagesShown)
	}
	if durations > 0 {
		ue.AverageEngagementDuration = totalDuration / time.Duration(durations)
	}
	ue.PreferredTypes = topKeys(typeScore, 3)
	ue.PreferredCategories = topKeys(categoryScore, 3)
	ue.BestTimeSlots = topKeys(slots, 3)
	ue.OptimalFrequency = optimalFrequency(events)
	return ue
}

// optimalFrequency finds the daily message count that maximized interactions per message
func optimalFrequency(events []models.AnalyticsEvent) int {
	type day struct{ messages, interactions int }
	days := map[string]*day{}
	for _, e := range events {
		key := e.Timestamp.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &day{}
			days[key] = d
		}
		switch {
		case e.Kind == models.EventGeneration:
			d.messages++
		case isEngagement(e):
			d.interactions++
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	optimal := defaultOptimalFrequency
	best := 0.0
	for _, k := range keys {
		d := days[k]
		if d.messages == 0 {
			continue
		}
		if rate := float64(d.interactions) / float64(d.messages); rate > best {
			best = rate
			optimal = d.messages
		}
	}
	return max(1, min(5, optimal))
}

// TypePerformance aggregates per-type performance over the last days days
func (a *Analytics) TypePerformance(ctx context.Context, days int) (map[models.MessageType]TypePerformance, error) {
	if days <= 0 {
		days = DefaultTypeWindowDays
	}
	events, err := a.loadEvents(ctx, days)
	if err != nil {
		return nil, err
	}
	return typePerformance(events), nil
}

func typePerformance(events []models.AnalyticsEvent) map[models.MessageType]TypePerformance {
	type acc struct {
		TypePerformance
		effective int
		hours     map[string]int
	}
	byType := map[models.MessageType]*acc{}
	for _, e := range events {
		if e.MessageType == "" {
			continue
		}
		p, ok := byType[e.MessageType]
		if !ok {
			p = &acc{hours: map[string]int{}}
			byType[e.MessageType] = p
		}
		switch {
		case e.Kind == models.EventGeneration:
			p.Generated++
		case isEngagement(e):
			p.Interactions++
			if isClick(e) {
				p.Clicks++
				p.hours[hourSlot(e.Timestamp.Hour())]++
			}
			if isClick(e) || (e.Feedback != nil && e.Feedback.Helpful) {
				p.effective++
			}
		}
	}

	out := make(map[models.MessageType]TypePerformance, len(byType))
	for t, p := range byType {
		if p.Generated > 0 {
			p.AverageEngagement = float64(p.Interactions) / float64(p.Generated)
			p.Effectiveness = math.Min(1, float64(p.effective)/float64(p.Generated))
		}
		p.BestHours = topKeys(p.hours, 3)
		out[t] = p.TypePerformance
	}
	return out
}

// PredictEngagement estimates how likely userID is to engage with a message of typ
func (a *Analytics) PredictEngagement(ctx context.Context, userID string, typ models.MessageType) (float64, error) {
	ue, err := a.UserEngagement(ctx, userID)
	if err != nil {
		return 0.5, err
	}
	perf, err := a.TypePerformance(ctx, DefaultTypeWindowDays)
	if err != nil {
		return 0.5, err
	}

	typeModifier := 0.5
	if p, ok := perf[typ]; ok && p.AverageEngagement > 0 {
		typeModifier = p.AverageEngagement
	}
	preference := 0.8
	if slices.Contains(ue.PreferredTypes, typ) {
		preference = 1.2
	}
	trend, err := a.recentTrend(ctx, userID)
	if err != nil {
		return 0.5, err
	}

	v := ue.OverallEngagementRate * typeModifier * preference * trend
	return math.Max(0, math.Min(1, v)), nil
}

// recentTrend compares the engagement of the user's 20 latest events with the 20 before them
func (a *Analytics) recentTrend(ctx context.Context, userID string) (float64, error) {
	events, err := a.loadEvents(ctx, UserWindowDays)
	if err != nil {
		return 1, err
	}
	var mine []models.AnalyticsEvent
	for _, e := range events {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	slices.SortStableFunc(mine, func(x, y models.AnalyticsEvent) int { return y.Timestamp.Compare(x.Timestamp) })
	if len(mine) <= 20 {
		return 1, nil
	}
	recent := mine[:20]
	older := mine[20:min(40, len(mine))]

	olderRate := engagementRate(older)
	if olderRate == 0 {
		return 1, nil
	}
	return engagementRate(recent) / olderRate, nil
}

func engagementRate(events []models.AnalyticsEvent) float64 {
	messages, interactions := 0, 0
	for _, e := range events {
		switch {
		case e.Kind == models.EventGeneration:
			messages++
		case isEngagement(e):
			interactions++
		}
	}
	if messages == 0 {
		return 0
	}
	return float64(interactions) / float64(messages)
}

// PeakHours returns the three hours with the most clicks over the last week.
// An empty userID aggregates every user.
func (a *Analytics) PeakHours(ctx context.Context, userID string) ([]string, error) {
	events, err := a.loadEvents(ctx, DefaultTypeWindowDays)
	if err != nil {
		return nil, err
	}
	return peakHours(events, userID), nil
}

func peakHours(events []models.AnalyticsEvent, userID string) []string {
	hours := map[int]int{}
	for _, e := range events {
		if userID != "" && e.UserID != userID {
			continue
		}
		if isClick(e) {
			hours[e.Timestamp.Hour()]++
		}
	}
	out := []string{}
	for _, h := range topKeys(hours, 3) {
		out = append(out, hourSlot(h))
	}
	return out
}
