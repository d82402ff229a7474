package models

import (
	"testing"
	"time"
)

func TestTimeOfDayFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{0, TimeLateNight},
		{4, TimeLateNight},
		{5, TimeEarlyMorning},
		{6, TimeEarlyMorning},
		{7, TimeMorning},
		{11, TimeMorning},
		{12, TimeAfternoon},
		{16, TimeAfternoon},
		{17, TimeEvening},
		{19, TimeEvening},
		{20, TimeNight},
		{22, TimeNight},
		{23, TimeLateNight},
	}

	for _, tt := range tests {
		if got := TimeOfDayFor(tt.hour); got != tt.want {
			t.Errorf("TimeOfDayFor(%d) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestSeasonFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.January, SeasonWinter},
		{time.March, SeasonSpring},
		{time.May, SeasonSpring},
		{time.June, SeasonSummer},
		{time.August, SeasonSummer},
		{time.September, SeasonAutumn},
		{time.November, SeasonAutumn},
		{time.December, SeasonWinter},
	}

	for _, tt := range tests {
		if got := SeasonFor(tt.month); got != tt.want {
			t.Errorf("SeasonFor(%s) = %s, want %s", tt.month, got, tt.want)
		}
	}
}

func TestMessageType_IsValid(t *testing.T) {
	t.Parallel()

	if len(AllMessageTypes) != 12 {
		t.Fatalf("Expected 12 message types, got %d", len(AllMessageTypes))
	}
	for _, mt := range AllMessageTypes {
		if !mt.IsValid() {
			t.Errorf("Expected %s to be valid", mt)
		}
		if CategoryFor(mt) == "" {
			t.Errorf("Expected a category for %s", mt)
		}
	}
	if MessageType("newsletter").IsValid() {
		t.Error("Expected unknown type to be invalid")
	}
}

func TestContextualMessage_Clone(t *testing.T) {
	t.Parallel()

	shown := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := &ContextualMessage{
		ID:         "m1",
		Tags:       []string{"a"},
		Tokens:     map[string]string{"name": "Ada"},
		Variations: []MessageVariation{{ID: "v1", Body: "hi"}},
		Metadata:   MessageMetadata{LastShown: &shown, ShowCount: 2, Experiment: &Experiment{TestID: "t", VariantID: "a"}},
		Score:      &MessageScore{TotalScore: 0.5},
	}

	c := orig.Clone()
	c.Tags[0] = "b"
	c.Tokens["name"] = "Bob"
	c.Variations[0].Body = "changed"
	*c.Metadata.LastShown = shown.Add(time.Hour)
	c.Metadata.Experiment.VariantID = "b"
	c.Score.TotalScore = 0.9
	c.Metadata.ShowCount++

	if orig.Tags[0] != "a" || orig.Tokens["name"] != "Ada" || orig.Variations[0].Body != "hi" {
		t.Error("Clone shares slices or maps with the original")
	}
	if !orig.Metadata.LastShown.Equal(shown) || orig.Metadata.Experiment.VariantID != "a" {
		t.Error("Clone shares metadata pointers with the original")
	}
	if orig.Score.TotalScore != 0.5 || orig.Metadata.ShowCount != 2 {
		t.Error("Clone shares score or counters with the original")
	}
}

func TestMessageScore_WeightedSum(t *testing.T) {
	t.Parallel()

	s := MessageScore{
		Relevance:   ScoreFactor{Value: 1, Weight: 0.25},
		Engagement:  ScoreFactor{Value: 0.5, Weight: 0.20},
		Personality: ScoreFactor{Value: 0.8, Weight: 0.15},
		Timing:      ScoreFactor{Value: 0.2, Weight: 0.20},
		Context:     ScoreFactor{Value: 0.6, Weight: 0.15},
		Novelty:     ScoreFactor{Value: 0.8, Weight: 0.05},
	}
	want := 0.25 + 0.10 + 0.12 + 0.04 + 0.09 + 0.04
	if got := s.WeightedSum(); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("WeightedSum() = %f, want %f", got, want)
	}
}

func TestMessageInteraction_IsPositive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   MessageInteraction
		want bool
	}{
		{"click", MessageInteraction{Action: ActionClicked}, true},
		{"view", MessageInteraction{Action: ActionViewed}, false},
		{"dismiss", MessageInteraction{Action: ActionDismissed}, false},
		{"high rating", MessageInteraction{Action: ActionRated, Feedback: &Feedback{Rating: 5}}, true},
		{"low rating", MessageInteraction{Action: ActionRated, Feedback: &Feedback{Rating: 2}}, false},
		{"helpful", MessageInteraction{Action: ActionRated, Feedback: &Feedback{Rating: 2, Helpful: true}}, true},
		{"rated without feedback", MessageInteraction{Action: ActionRated}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.in.IsPositive(); got != tt.want {
				t.Errorf("IsPositive() = %v, want %v", got, tt.want)
			}
		})
	}
}
