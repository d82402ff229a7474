package templates

import (
	"slices"

	"github.com/benvon/smart-nudge/internal/models"
)

// PriorityWeight is a type's weight in the priority table. Active applies when
// the type's predicate holds for the user, Inactive otherwise.
type PriorityWeight struct {
	Active   float64 `yaml:"active" json:"active"`
	Inactive float64 `yaml:"inactive" json:"inactive"`
}

func fixed(w float64) PriorityWeight { return PriorityWeight{Active: w, Inactive: w} }

// DefaultPriorityWeights returns the default priority table
func DefaultPriorityWeights() map[models.MessageType]PriorityWeight {
	return map[models.MessageType]PriorityWeight{
		models.MessageTypeWelcome:          {Active: 10, Inactive: 0},
		models.MessageTypeAchievement:      {Active: 8, Inactive: 0},
		models.MessageTypeReEngagement:     {Active: 7, Inactive: 0},
		models.MessageTypeMilestone:        {Active: 6, Inactive: 0},
		models.MessageTypeMotivation:       {Active: 5, Inactive: 3},
		models.MessageTypeEducational:      {Active: 5, Inactive: 1},
		models.MessageTypeTip:              fixed(4),
		models.MessageTypeSeasonal:         {Active: 8, Inactive: 0},
		models.MessageTypeFeatureDiscovery: fixed(3),
		models.MessageTypeReminder:         fixed(2),
		models.MessageTypeCelebration:      fixed(2),
		models.MessageTypeFeedbackRequest:  fixed(1),
	}
}

const awayDays = 7

func priorityActive(t models.MessageType, uc *models.UserContext) bool {
	switch t {
	case models.MessageTypeWelcome:
		return uc.IsFirstLogin
	case models.MessageTypeAchievement:
		return len(uc.Achievements) > 0
	case models.MessageTypeReEngagement:
		return uc.DaysSinceLastLogin > awayDays
	case models.MessageTypeMilestone:
		return uc.NearMilestone(0.8, 1)
	case models.MessageTypeMotivation:
		return uc.ProductivityTrend == models.TrendIncreasing
	case models.MessageTypeEducational:
		return uc.SkillLevel == models.SkillBeginner
	case models.MessageTypeSeasonal:
		return uc.IsHoliday
	default:
		return true
	}
}

// TypeWeight returns the priority-table weight of t for uc
func (b *Bank) TypeWeight(t models.MessageType, uc *models.UserContext) float64 {
	w, ok := b.weights[t]
	if !ok {
		return 0
	}
	if priorityActive(t, uc) {
		return w.Active
	}
	return w.Inactive
}

// SelectOptimalType picks the highest-weighted appropriate type. Ties go to the
// type listed first in the priority table.
func (b *Bank) SelectOptimalType(uc *models.UserContext) models.MessageType {
	candidates := b.AppropriateTypes(uc)
	var (
		best       models.MessageType
		bestWeight float64
	)
	for _, t := range models.AllMessageTypes {
		if !slices.Contains(candidates, t) {
			continue
		}
		if w := b.TypeWeight(t, uc); best == "" || w > bestWeight {
			best, bestWeight = t, w
		}
	}
	return best
}

// AppropriateTypes returns the message types that fit uc right now
func (b *Bank) AppropriateTypes(uc *models.UserContext) []models.MessageType {
	var types []models.MessageType

	if uc.IsFirstLogin {
		types = append(types, models.MessageTypeWelcome)
	} else if uc.DaysSinceLastLogin > awayDays {
		types = append(types, models.MessageTypeReEngagement)
	}
	if uc.ConsecutiveDays > 3 {
		types = append(types, models.MessageTypeMotivation)
	}
	if len(uc.Achievements) > 0 {
		types = append(types, models.MessageTypeAchievement)
	}
	if uc.NearMilestone(0.8, 1) {
		types = append(types, models.MessageTypeMilestone)
	}
	switch uc.SkillLevel {
	case models.SkillBeginner:
		types = append(types, models.MessageTypeEducational)
	case models.SkillAdvanced, models.SkillExpert:
		types = append(types, models.MessageTypeTip)
	}
	if uc.IsHoliday {
		types = append(types, models.MessageTypeSeasonal)
	}
	if uc.Planning != nil && uc.Planning.OverdueEvents > 0 {
		types = append(types, models.MessageTypeReminder)
	}
	if uc.FeatureUsage["collaboration"] == 0 && uc.ContentCount > 5 {
		types = append(types, models.MessageTypeFeatureDiscovery)
	}

	if len(types) == 0 {
		types = append(types, models.MessageTypeTip, models.MessageTypeMotivation, models.MessageTypeReminder)
	}
	return types
}

// PriorityFor derives the display priority of a message type for uc
func PriorityFor(t models.MessageType, uc *models.UserContext) models.Priority {
	switch t {
	case models.MessageTypeWelcome:
		if uc.IsFirstLogin {
			return models.PriorityCritical
		}
		return models.PriorityLow
	case models.MessageTypeAchievement, models.MessageTypeReEngagement:
		return models.PriorityHigh
	case models.MessageTypeMotivation, models.MessageTypeMilestone:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}
