package analytics

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestAnalytics(opts ...Option) (*Analytics, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(store, nil, opts...), store
}

func seed(t *testing.T, store storage.Store, events ...models.AnalyticsEvent) {
	t.Helper()
	byDay := map[string][]models.AnalyticsEvent{}
	for _, e := range events {
		key := storage.EventsKey(e.Timestamp)
		byDay[key] = append(byDay[key], e)
	}
	for key, evs := range byDay {
		var existing []models.AnalyticsEvent
		if _, err := storage.LoadJSON(context.Background(), store, key, &existing); err != nil {
			t.Fatalf("LoadJSON: %v", err)
		}
		if err := storage.SaveJSON(context.Background(), store, key, append(existing, evs...)); err != nil {
			t.Fatalf("SaveJSON: %v", err)
		}
	}
}

func gen(user, msgID string, typ models.MessageType, at time.Time) models.AnalyticsEvent {
	return models.AnalyticsEvent{Kind: models.EventGeneration, UserID: user, MessageID: msgID, MessageType: typ, Category: models.CategoryFor(typ), Timestamp: at}
}

func act(user, msgID string, typ models.MessageType, action models.InteractionAction, at time.Time) models.AnalyticsEvent {
	return models.AnalyticsEvent{Kind: models.EventInteraction, UserID: user, MessageID: msgID, MessageType: typ, Category: models.CategoryFor(typ), Action: action, Timestamp: at}
}

func withExperiment(e models.AnalyticsEvent, test, variant string) models.AnalyticsEvent {
	e.Experiment = &models.Experiment{TestID: test, VariantID: variant}
	return e
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestApplyCapsDailyLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, store := newTestAnalytics(WithDailyCap(3))

	for i := range 5 {
		ev := gen("u1", fmt.Sprintf("m%d", i), models.MessageTypeTip, now.Add(time.Duration(i)*time.Minute))
		if err := a.Apply(ctx, &ev); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	var events []models.AnalyticsEvent
	if _, err := storage.LoadJSON(ctx, store, storage.EventsKey(now), &events); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].MessageID != "m2" || events[2].MessageID != "m4" {
		t.Errorf("kept %s..%s, want m2..m4", events[0].MessageID, events[2].MessageID)
	}
	for _, e := range events {
		if e.ID == "" {
			t.Error("Expected Apply to assign an event id")
		}
	}
}

func TestApplyRejectsNil(t *testing.T) {
	t.Parallel()
	a, _ := newTestAnalytics()
	if err := a.Apply(context.Background(), nil); err == nil {
		t.Error("Expected an error for a nil event")
	}
}

func TestEffectiveness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _ := newTestAnalytics()

	apply := func(e models.AnalyticsEvent) {
		t.Helper()
		if err := a.Apply(ctx, &e); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	apply(gen("u1", "m1", models.MessageTypeTip, now))
	for range 10 {
		apply(act("u1", "m1", models.MessageTypeTip, models.ActionViewed, now))
	}
	for range 4 {
		apply(act("u1", "m1", models.MessageTypeTip, models.ActionClicked, now))
	}
	rated := act("u1", "m1", models.MessageTypeTip, models.ActionRated, now)
	rated.Feedback = &models.Feedback{Rating: 5}
	apply(rated)
	rated.Feedback = &models.Feedback{Rating: 3}
	apply(rated)

	m, err := a.Metrics(ctx, "m1")
	if err != nil || m == nil {
		t.Fatalf("Metrics() = %v, %v", m, err)
	}
	if m.Impressions != 10 || m.Clicks != 4 || m.Ratings != 2 || m.Conversions != 1 || m.Generated != 1 {
		t.Errorf("Metrics() = %+v", m)
	}
	if !approx(m.Sentiment(), 0.8) {
		t.Errorf("Sentiment() = %f, want 0.8", m.Sentiment())
	}

	eff, err := a.Effectiveness(ctx, "m1")
	if err != nil {
		t.Fatalf("Effectiveness: %v", err)
	}
	if !approx(eff, 0.51) {
		t.Errorf("Effectiveness() = %f, want 0.51", eff)
	}

	apply(act("u1", "m1", models.MessageTypeTip, models.ActionClicked, now))
	eff2, _ := a.Effectiveness(ctx, "m1")
	if eff2 <= eff {
		t.Errorf("Effectiveness should be recomputed after a new click: %f -> %f", eff, eff2)
	}

	if v, err := a.Effectiveness(ctx, "unknown"); err != nil || v != 0 {
		t.Errorf("Effectiveness(unknown) = %f, %v", v, err)
	}
}

func TestMessageMetricsDefaults(t *testing.T) {
	t.Parallel()
	m := &MessageMetrics{}
	if m.Sentiment() != 0.5 {
		t.Errorf("Sentiment() = %f, want 0.5", m.Sentiment())
	}
	if !approx(m.Effectiveness(), 0.1) {
		t.Errorf("Effectiveness() = %f, want 0.1", m.Effectiveness())
	}
}

func TestTopMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _ := newTestAnalytics()

	for _, e := range []models.AnalyticsEvent{
		act("u1", "low", models.MessageTypeTip, models.ActionViewed, now),
		act("u1", "high", models.MessageTypeWelcome, models.ActionViewed, now),
		act("u1", "high", models.MessageTypeWelcome, models.ActionClicked, now),
	} {
		if err := a.Apply(ctx, &e); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	top, err := a.TopMessages(ctx, 5)
	if err != nil {
		t.Fatalf("TopMessages: %v", err)
	}
	if len(top) != 2 || top[0].MessageID != "high" || top[0].Type != models.MessageTypeWelcome {
		t.Errorf("TopMessages() = %+v", top)
	}
}

func TestUserEngagement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, store := newTestAnalytics()

	day1 := now.AddDate(0, 0, -2)
	day2 := now.AddDate(0, 0, -1)
	seed(t, store,
		gen("u1", "a", models.MessageTypeTip, day1),
		gen("u1", "b", models.MessageTypeTip, day1),
		gen("u1", "c", models.MessageTypeTip, day1),
		act("u1", "a", models.MessageTypeTip, models.ActionClicked, day1),
		gen("u1", "d", models.MessageTypeWelcome, day2),
		gen("u1", "e", models.MessageTypeWelcome, day2),
		act("u1", "d", models.MessageTypeWelcome, models.ActionClicked, day2),
		act("u1", "e", models.MessageTypeWelcome, models.ActionRated, day2),
		act("u1", "e", models.MessageTypeWelcome, models.ActionViewed, day2),
		gen("u2", "z", models.MessageTypeSeasonal, day2),
	)

	ue, err := a.UserEngagement(ctx, "u1")
	if err != nil {
		t.Fatalf("UserEngagement: %v", err)
	}
	if ue.TotalMessagesShown != 5 || ue.TotalInteractions != 3 {
		t.Errorf("shown/interactions = %d/%d, want 5/3", ue.TotalMessagesShown, ue.TotalInteractions)
	}
	if !approx(ue.OverallEngagementRate, 0.6) {
		t.Errorf("OverallEngagementRate = %f", ue.OverallEngagementRate)
	}
	if len(ue.PreferredTypes) != 2 || ue.PreferredTypes[0] != models.MessageTypeWelcome {
		t.Errorf("PreferredTypes = %v", ue.PreferredTypes)
	}
	if ue.OptimalFrequency != 2 {
		t.Errorf("OptimalFrequency = %d, want 2", ue.OptimalFrequency)
	}
	if len(ue.BestTimeSlots) != 1 || ue.BestTimeSlots[0] != "12-16h" {
		t.Errorf("BestTimeSlots = %v", ue.BestTimeSlots)
	}

	ev := act("u1", "a", models.MessageTypeTip, models.ActionDismissed, now)
	if err := a.Apply(ctx, &ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	again, _ := a.UserEngagement(ctx, "u1")
	if again.TotalInteractions != 4 {
		t.Errorf("cache was not invalidated: TotalInteractions = %d", again.TotalInteractions)
	}
}

func TestUserEngagementDefaults(t *testing.T) {
	t.Parallel()
	a, _ := newTestAnalytics()
	ue, err := a.UserEngagement(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("UserEngagement: %v", err)
	}
	if ue.OptimalFrequency != 3 || ue.TotalMessagesShown != 0 {
		t.Errorf("UserEngagement() = %+v", ue)
	}
}

func TestOptimalFrequencyClamped(t *testing.T) {
	t.Parallel()
	var events []models.AnalyticsEvent
	for i := range 8 {
		events = append(events, gen("u1", fmt.Sprint(i), models.MessageTypeTip, now))
	}
	events = append(events, act("u1", "0", models.MessageTypeTip, models.ActionClicked, now))
	if got := optimalFrequency(events); got != 5 {
		t.Errorf("optimalFrequency() = %d, want 5", got)
	}
}

func TestTypePerformanceAndPeakHours(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, store := newTestAnalytics()

	at9 := time.Date(2025, 6, 9, 9, 15, 0, 0, time.UTC)
	clickedHelpful := act("u1", "b", models.MessageTypeTip, models.ActionRated, at9)
	clickedHelpful.Feedback = &models.Feedback{Rating: 5, Helpful: true}
	seed(t, store,
		gen("u1", "a", models.MessageTypeTip, at9),
		gen("u1", "b", models.MessageTypeTip, at9),
		act("u1", "a", models.MessageTypeTip, models.ActionClicked, at9),
		clickedHelpful,
		act("u2", "c", models.MessageTypeWelcome, models.ActionClicked, at9.Add(2*time.Hour)),
	)

	perf, err := a.TypePerformance(ctx, 0)
	if err != nil {
		t.Fatalf("TypePerformance: %v", err)
	}
	tip := perf[models.MessageTypeTip]
	if tip.Generated != 2 || tip.Clicks != 1 || !approx(tip.Effectiveness, 1) || !approx(tip.AverageEngagement, 1) {
		t.Errorf("tip performance = %+v", tip)
	}
	if len(tip.BestHours) != 1 || tip.BestHours[0] != "9h-10h" {
		t.Errorf("BestHours = %v", tip.BestHours)
	}

	peaks, err := a.PeakHours(ctx, "")
	if err != nil {
		t.Fatalf("PeakHours: %v", err)
	}
	if len(peaks) != 2 || peaks[0] != "9h-10h" {
		t.Errorf("PeakHours() = %v", peaks)
	}
	mine, _ := a.PeakHours(ctx, "u2")
	if len(mine) != 1 || mine[0] != "11h-12h" {
		t.Errorf("PeakHours(u2) = %v", mine)
	}
}

func TestPredictEngagementBounded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, store := newTestAnalytics()

	var events []models.AnalyticsEvent
	for i := range 10 {
		id := fmt.Sprint(i)
		events = append(events,
			gen("u1", id, models.MessageTypeTip, now.Add(-time.Duration(i)*time.Hour)),
			act("u1", id, models.MessageTypeTip, models.ActionClicked, now.Add(-time.Duration(i)*time.Hour)),
			act("u1", id, models.MessageTypeTip, models.ActionRated, now.Add(-time.Duration(i)*time.Hour)),
		)
	}
	seed(t, store, events...)

	for _, typ := range []models.MessageType{models.MessageTypeTip, models.MessageTypeSeasonal} {
		p, err := a.PredictEngagement(ctx, "u1", typ)
		if err != nil {
			t.Fatalf("PredictEngagement: %v", err)
		}
		if p < 0 || p > 1 {
			t.Errorf("PredictEngagement(%s) = %f out of range", typ, p)
		}
	}
	tip, _ := a.PredictEngagement(ctx, "u1", models.MessageTypeTip)
	seasonal, _ := a.PredictEngagement(ctx, "u1", models.MessageTypeSeasonal)
	if tip <= seasonal {
		t.Errorf("Expected the preferred type to predict higher: tip %f, seasonal %f", tip, seasonal)
	}
}

func TestZScoreAndConfidence(t *testing.T) {
	t.Parallel()
	th := DefaultABThresholds()

	z := ZScore(0.2, 40, 0.5, 40)
	if z < 2.58 {
		t.Errorf("ZScore() = %f, want > 2.58", z)
	}

	tests := []struct {
		z    float64
		want float64
	}{
		{3, 0.99},
		{2.0, 0.95},
		{1.7, 0.90},
		{1.29, 0.5},
		{0, 0},
	}
	for _, tt := range tests {
		if got := th.Confidence(tt.z); !approx(got, tt.want) {
			t.Errorf("Confidence(%f) = %f, want %f", tt.z, got, tt.want)
		}
	}

	if ZScore(0.5, 0, 0.5, 10) != 0 || ZScore(0, 10, 0, 10) != 0 {
		t.Error("Expected 0 for undefined z-scores")
	}
}

func abEvents(test, variant string, samples, clicks int) []models.AnalyticsEvent {
	var out []models.AnalyticsEvent
	for i := range samples {
		id := fmt.Sprintf("%s-%d", variant, i)
		user := fmt.Sprintf("user-%s-%d", variant, i)
		out = append(out,
			withExperiment(gen(user, id, models.MessageTypeTip, now), test, variant),
			withExperiment(act(user, id, models.MessageTypeTip, models.ActionViewed, now), test, variant),
		)
		if i < clicks {
			out = append(out, withExperiment(act(user, id, models.MessageTypeTip, models.ActionClicked, now), test, variant))
		}
	}
	return out
}

func TestRunABTestSignificant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, store := newTestAnalytics()

	seed(t, store, abEvents("t1", "control", 40, 20)...)
	seed(t, store, abEvents("t1", "challenger", 40, 8)...)
	seed(t, store, abEvents("other", "control", 40, 40)...)

	results, err := a.RunABTest(ctx, "t1", []string{"control", "challenger"})
	if err != nil {
		t.Fatalf("RunABTest: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d", len(results))
	}

	control, challenger := results[0], results[1]
	if !control.IsControl || control.SampleSize != 40 || !approx(control.ConversionRate, 0.5) {
		t.Errorf("control = %+v", control)
	}
	if challenger.SampleSize != 40 || !approx(challenger.ConversionRate, 0.2) {
		t.Errorf("challenger = %+v", challenger)
	}
	if challenger.Confidence != 0.99 || !challenger.IsSignificant {
		t.Errorf("challenger confidence = %f significant = %v, want 0.99 true", challenger.Confidence, challenger.IsSignificant)
	}
	if !approx(challenger.EngagementRate, 0.2) {
		t.Errorf("challenger engagement = %f, want 0.2", challenger.EngagementRate)
	}
}

func TestRunABTestNeedsSamples(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, store := newTestAnalytics()

	seed(t, store, abEvents("t1", "a", 20, 10)...)
	seed(t, store, abEvents("t1", "b", 20, 1)...)

	results, err := a.RunABTest(ctx, "t1", []string{"a", "b"})
	if err != nil {
		t.Fatalf("RunABTest: %v", err)
	}
	if results[1].IsSignificant || results[1].Confidence != 0 {
		t.Errorf("Expected no significance below the sample minimum, got %+v", results[1])
	}

	if _, err := a.RunABTest(ctx, "", nil); err == nil {
		t.Error("Expected an error without test id")
	}
}

func TestEngagementTrend(t *testing.T) {
	t.Parallel()

	day := func(offset, messages, interactions int) []models.AnalyticsEvent {
		at := now.AddDate(0, 0, -offset)
		var out []models.AnalyticsEvent
		for i := range messages {
			out = append(out, gen("u1", fmt.Sprint(offset, i), models.MessageTypeTip, at))
		}
		for i := range interactions {
			out = append(out, act("u1", fmt.Sprint(offset, i), models.MessageTypeTip, models.ActionClicked, at))
		}
		return out
	}

	var rising, falling, flat []models.AnalyticsEvent
	for offset := 5; offset >= 0; offset-- {
		older := offset >= 3
		if older {
			rising = append(rising, day(offset, 10, 2)...)
			falling = append(falling, day(offset, 10, 8)...)
		} else {
			rising = append(rising, day(offset, 10, 6)...)
			falling = append(falling, day(offset, 10, 3)...)
		}
		flat = append(flat, day(offset, 10, 5)...)
	}

	if got := engagementTrend(rising); got != TrendIncreasing {
		t.Errorf("rising trend = %s", got)
	}
	if got := engagementTrend(falling); got != TrendDecreasing {
		t.Errorf("falling trend = %s", got)
	}
	if got := engagementTrend(flat); got != TrendStable {
		t.Errorf("flat trend = %s", got)
	}
	if got := engagementTrend(day(0, 3, 3)); got != TrendStable {
		t.Errorf("single-day trend = %s", got)
	}
}

func TestInsights(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _ := newTestAnalytics()

	for _, e := range []models.AnalyticsEvent{
		gen("u1", "m1", models.MessageTypeTip, now),
		act("u1", "m1", models.MessageTypeTip, models.ActionViewed, now),
		act("u1", "m1", models.MessageTypeTip, models.ActionClicked, now),
		gen("u1", "m2", models.MessageTypeReminder, now),
		act("u1", "m2", models.MessageTypeReminder, models.ActionViewed, now),
		act("u1", "m2", models.MessageTypeReminder, models.ActionDismissed, now),
	} {
		if err := a.Apply(ctx, &e); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	r, err := a.Insights(ctx, "u1")
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if len(r.TopMessages) != 2 || r.TopMessages[0].MessageID != "m1" {
		t.Errorf("TopMessages = %+v", r.TopMessages)
	}
	if r.User == nil || r.User.UserID != "u1" {
		t.Errorf("User = %+v", r.User)
	}
	if len(r.BestTypes) == 0 || r.BestTypes[0] != models.MessageTypeTip {
		t.Errorf("BestTypes = %v", r.BestTypes)
	}
	if r.EngagementTrend != TrendStable {
		t.Errorf("EngagementTrend = %s", r.EngagementTrend)
	}
	if len(r.Recommendations) == 0 {
		t.Error("Expected recommendations")
	}

	anon, err := a.Insights(ctx, "")
	if err != nil {
		t.Fatalf("Insights(anon): %v", err)
	}
	if anon.User != nil || anon.OptimalFrequency != 3 {
		t.Errorf("anonymous report = %+v", anon)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _ := newTestAnalytics()

	if _, err := a.UserEngagement(ctx, "u1"); err != nil {
		t.Fatalf("UserEngagement: %v", err)
	}
	a.Reset()
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.users) != 0 || len(a.effectiveness) != 0 {
		t.Error("Reset should clear caches")
	}
}
