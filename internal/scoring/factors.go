package scoring

import (
	"math"
	"slices"
	"time"

	"github.com/benvon/smart-nudge/internal/conditions"
	"github.com/benvon/smart-nudge/internal/models"
)

var timingTable = map[models.TimeOfDay]map[models.MessageType]float64{
	models.TimeEarlyMorning: {models.MessageTypeMotivation: 0.9, models.MessageTypeTip: 0.7, models.MessageTypeAchievement: 0.5},
	models.TimeMorning:      {models.MessageTypeWelcome: 0.9, models.MessageTypeMotivation: 0.8, models.MessageTypeTip: 0.7},
	models.TimeAfternoon:    {models.MessageTypeEducational: 0.8, models.MessageTypeTip: 0.7, models.MessageTypeReminder: 0.6},
	models.TimeEvening:      {models.MessageTypeAchievement: 0.8, models.MessageTypeMilestone: 0.7, models.MessageTypeCelebration: 0.8},
	models.TimeNight:        {models.MessageTypeAchievement: 0.7, models.MessageTypeEducational: 0.6},
	models.TimeLateNight:    {models.MessageTypeMotivation: 0.5, models.MessageTypeAchievement: 0.6, models.MessageTypeTip: 0.4},
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func (e *Engine) relevance(msg *models.ContextualMessage, uc *models.UserContext) float64 {
	score := 0.5

	fraction, ok := conditions.SatisfiedFraction(msg.Conditions, uc)
	if !ok {
		fraction = 0.5
	}
	score += 0.3 * fraction

	switch {
	case msg.Type == models.MessageTypeEducational && uc.SkillLevel == models.SkillBeginner:
		score += 0.15
	case msg.Type == models.MessageTypeTip && uc.SkillLevel == models.SkillAdvanced:
		score += 0.1
	case msg.Type == models.MessageTypeAchievement && uc.SkillLevel == models.SkillExpert:
		score += 0.1
	}

	switch {
	case uc.ContentCount == 0 && msg.Type == models.MessageTypeWelcome,
		uc.ConsecutiveDays > 7 && msg.Type == models.MessageTypeAchievement,
		uc.DaysSinceLastLogin > 7 && msg.Type == models.MessageTypeReEngagement:
		score += 0.15
	}

	if len(msg.Tags) > 0 {
		ctxTags := uc.Tags()
		matched := 0
		for _, tag := range msg.Tags {
			if slices.Contains(ctxTags, tag) {
				matched++
			}
		}
		score += 0.1 * float64(matched) / float64(len(msg.Tags))
	}

	return clamp(score)
}

// InteractionScore maps one past interaction onto [0,1]
func InteractionScore(i models.MessageInteraction) float64 {
	switch i.Action {
	case models.ActionClicked:
		return 1.0
	case models.ActionViewed:
		return 0.6 + math.Min(0.4, i.EngagementDuration.Seconds()/30*0.4)
	case models.ActionRated:
		if i.Feedback != nil && i.Feedback.Rating > 0 {
			return float64(i.Feedback.Rating) / 5
		}
		return 0.5
	case models.ActionDismissed:
		return 0.2
	default:
		return 0.5
	}
}

func (e *Engine) engagement(msg *models.ContextualMessage, uc *models.UserContext, history []models.MessageInteraction) float64 {
	score := 0.6

	var sum float64
	n := 0
	for _, i := range history {
		if i.MessageType == msg.Type {
			sum += InteractionScore(i)
			n++
		}
	}
	if n > 0 {
		score = sum / float64(n)
	}

	score *= float64(uc.EngagementScore) / 100

	if slices.Contains(uc.MessagePreferences.PreferredTypes, msg.Type) {
		score += 0.15
	}
	if slices.Contains(uc.MessagePreferences.BlockedCategories, msg.Category) {
		score *= 0.3
	}
	return clamp(score)
}

func (e *Engine) personality(msg *models.ContextualMessage, uc *models.UserContext) float64 {
	score := 0.7
	if msg.HasVariation(func(v models.MessageVariation) bool { return v.Tone == uc.PreferredTone }) {
		score += 0.2
	}
	switch {
	case uc.EngagementScore > 80:
		if msg.HasVariation(func(v models.MessageVariation) bool { return v.Length == models.LengthLong }) {
			score += 0.1
		}
	case uc.EngagementScore < 40:
		if msg.HasVariation(func(v models.MessageVariation) bool { return v.Length == models.LengthShort }) {
			score += 0.1
		}
	}
	return clamp(score)
}

// lastShown is the later of the message's own last-shown time and the latest
// ledger impression of the same type
func lastShown(msg *models.ContextualMessage, history []models.MessageInteraction) (time.Time, bool) {
	var latest time.Time
	found := false
	if msg.Metadata.LastShown != nil {
		latest, found = *msg.Metadata.LastShown, true
	}
	for _, i := range history {
		if i.Action != models.ActionViewed || i.MessageType != msg.Type {
			continue
		}
		if !found || i.Timestamp.After(latest) {
			latest, found = i.Timestamp, true
		}
	}
	return latest, found
}

func (e *Engine) timing(msg *models.ContextualMessage, uc *models.UserContext, history []models.MessageInteraction) float64 {
	score := 0.5
	if v, ok := timingTable[uc.TimeOfDay][msg.Type]; ok {
		score = v
	}

	weekend := uc.IsWeekend()
	switch {
	case weekend && msg.Type == models.MessageTypeMotivation:
		score += 0.1
	case !weekend && msg.Type == models.MessageTypeEducational:
		score += 0.1
	}

	if msg.Type == models.MessageTypeSeasonal {
		if uc.IsHoliday {
			score = 0.95
		} else {
			score = 0.3
		}
	}

	if shown, ok := lastShown(msg, history); ok {
		since := e.now().Sub(shown)
		switch {
		case since < 24*time.Hour:
			score *= 0.3
		case since < 72*time.Hour:
			score *= 0.7
		}
	}
	return clamp(score)
}

func (e *Engine) context(msg *models.ContextualMessage, uc *models.UserContext) float64 {
	score := 0.6

	if msg.Type == models.MessageTypeMilestone && uc.NearMilestone(0.7, 1) {
		score += 0.3
	}

	switch uc.ProductivityTrend {
	case models.TrendIncreasing:
		if msg.Type == models.MessageTypeMotivation || msg.Type == models.MessageTypeAchievement {
			score += 0.2
		}
	case models.TrendDecreasing:
		switch msg.Type {
		case models.MessageTypeTip, models.MessageTypeEducational, models.MessageTypeReEngagement:
			score += 0.2
		}
	}

	if uc.CollaborationLevel == models.CollaborationTeam && msg.HasTag("collaboration") {
		score += 0.15
	}
	if uc.DeviceType == models.DeviceMobile &&
		msg.HasVariation(func(v models.MessageVariation) bool { return v.Length == models.LengthShort }) {
		score += 0.1
	}
	return clamp(score)
}

func (e *Engine) novelty(msg *models.ContextualMessage, history []models.MessageInteraction) float64 {
	score := 0.8 * math.Exp(-float64(msg.Metadata.ShowCount)/5)

	recent := history
	if len(recent) > noveltyWindow {
		recent = recent[len(recent)-noveltyWindow:]
	}
	for _, i := range recent {
		if i.MessageType == msg.Type {
			score *= 0.7
			break
		}
	}
	return clamp(score)
}

func band(v float64, high, good, fair, low string) string {
	switch {
	case v > 0.8:
		return high
	case v > 0.6:
		return good
	case v > 0.4:
		return fair
	default:
		return low
	}
}
