package analytics

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
)

// Trend is the direction of engagement over recent days
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// Report is the insights report
type Report struct {
	GeneratedAt      time.Time                              `json:"generated_at"`
	TopMessages      []MessagePerformance                   `json:"top_messages"`
	User             *UserEngagement                        `json:"user,omitempty"`
	TypePerformance  map[models.MessageType]TypePerformance `json:"type_performance"`
	EngagementTrend  Trend                                  `json:"engagement_trend"`
	BestTypes        []models.MessageType                   `json:"best_types"`
	OptimalFrequency int                                    `json:"optimal_frequency"`
	PeakTimes        []string                               `json:"peak_times"`
	Recommendations  []string                               `json:"recommendations"`
}

const lowEffectiveness = 0.3

// Insights builds a report over the last week; userID adds the user's engagement
func (a *Analytics) Insights(ctx context.Context, userID string) (*Report, error) {
	top, err := a.TopMessages(ctx, 5)
	if err != nil {
		return nil, err
	}
	events, err := a.loadEvents(ctx, DefaultTypeWindowDays)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt:      a.now(),
		TopMessages:      top,
		TypePerformance:  typePerformance(events),
		EngagementTrend:  engagementTrend(events),
		OptimalFrequency: defaultOptimalFrequency,
		PeakTimes:        peakHours(events, ""),
	}
	r.BestTypes = bestTypes(r.TypePerformance, 3)

	if userID != "" {
		ue, err := a.UserEngagement(ctx, userID)
		if err != nil {
			return nil, err
		}
		r.User = ue
		r.OptimalFrequency = ue.OptimalFrequency
	}
	r.Recommendations = recommendations(r)
	return r, nil
}

func bestTypes(perf map[models.MessageType]TypePerformance, n int) []models.MessageType {
	types := make([]models.MessageType, 0, len(perf))
	for t := range perf {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b models.MessageType) int {
		ea, eb := perf[a].Effectiveness, perf[b].Effectiveness
		switch {
		case ea > eb:
			return -1
		case ea < eb:
			return 1
		default:
			return strings.Compare(string(a), string(b))
		}
	})
	if len(types) > n {
		types = types[:n]
	}
	return types
}

// engagementTrend compares the mean daily interaction rate of the latest three
// days with the three days before them, using a ±10% band
func engagementTrend(events []models.AnalyticsEvent) Trend {
	byDay := map[string][]models.AnalyticsEvent{}
	for _, e := range events {
		day := e.Timestamp.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], e)
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	slices.Sort(days)
	if len(days) < 3 {
		return TrendStable
	}

	rates := make([]float64, len(days))
	for i, d := range days {
		rates[i] = engagementRate(byDay[d])
	}
	mean := func(v []float64) float64 {
		var s float64
		for _, x := range v {
			s += x
		}
		return s / float64(len(v))
	}

	recent := mean(rates[len(rates)-3:])
	start := max(0, len(rates)-6)
	older := mean(rates[start : start+3])

	switch {
	case recent > older*1.1:
		return TrendIncreasing
	case recent < older*0.9:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func recommendations(r *Report) []string {
	var out []string

	if len(r.TopMessages) > 0 && r.TopMessages[0].Type != "" {
		out = append(out, fmt.Sprintf("Messages of type %q perform especially well. Consider showing them more often.", r.TopMessages[0].Type))
	}

	if r.User != nil {
		if r.User.TotalMessagesShown > 0 && r.User.OverallEngagementRate < lowEffectiveness {
			out = append(out, "Engagement is low. Personalize messages further or reduce how often they are shown.")
		}
		if len(r.User.BestTimeSlots) > 0 {
			out = append(out, fmt.Sprintf("Favor sending messages during %s.", strings.Join(r.User.BestTimeSlots, ", ")))
		}
	}

	var low []string
	for t, p := range r.TypePerformance {
		if p.Generated > 0 && p.Effectiveness < lowEffectiveness {
			low = append(low, string(t))
		}
	}
	if len(low) > 0 {
		slices.Sort(low)
		out = append(out, fmt.Sprintf("Types %s underperform. Review their content or timing.", strings.Join(low, ", ")))
	}

	switch r.EngagementTrend {
	case TrendDecreasing:
		out = append(out, "Engagement has dropped over the last three days.")
	case TrendIncreasing:
		out = append(out, "Engagement is rising; keep the current mix.")
	}
	return out
}
