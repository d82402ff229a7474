package conditions

import (
	"strings"

	"github.com/benvon/smart-nudge/internal/models"
)

// Accessor reads one property off a UserContext
type Accessor func(uc *models.UserContext) any

const featureUsagePrefix = "featureUsage."

var accessors = map[string]Accessor{
	"userId":               func(uc *models.UserContext) any { return uc.UserID },
	"isFirstLogin":         func(uc *models.UserContext) any { return uc.IsFirstLogin },
	"isReturningUser":      func(uc *models.UserContext) any { return uc.IsReturningUser },
	"daysSinceLastLogin":   func(uc *models.UserContext) any { return uc.DaysSinceLastLogin },
	"loginFrequency":       func(uc *models.UserContext) any { return string(uc.LoginFrequency) },
	"contentCount":         func(uc *models.UserContext) any { return uc.ContentCount },
	"recordingsCount":      func(uc *models.UserContext) any { return uc.RecordingsCount },
	"totalWordsWritten":    func(uc *models.UserContext) any { return uc.TotalWordsWritten },
	"averageContentLength": func(uc *models.UserContext) any { return uc.AverageContentLength },
	"favoriteCount":        func(uc *models.UserContext) any { return uc.FavoriteCount },
	"mostUsedTopics":       func(uc *models.UserContext) any { return uc.MostUsedTopics },
	"contentQualityScore":  func(uc *models.UserContext) any { return uc.ContentQualityScore },
	"consecutiveDays":      func(uc *models.UserContext) any { return uc.ConsecutiveDays },
	"totalDaysActive":      func(uc *models.UserContext) any { return uc.TotalDaysActive },
	"engagementScore":      func(uc *models.UserContext) any { return uc.EngagementScore },
	"timeOfDay":            func(uc *models.UserContext) any { return string(uc.TimeOfDay) },
	"dayOfWeek":            func(uc *models.UserContext) any { return int(uc.DayOfWeek) },
	"season":               func(uc *models.UserContext) any { return string(uc.Season) },
	"isHoliday":            func(uc *models.UserContext) any { return uc.IsHoliday },
	"isWeekend":            func(uc *models.UserContext) any { return uc.IsWeekend() },
	"timezone":             func(uc *models.UserContext) any { return uc.Timezone },
	"preferredLanguage":    func(uc *models.UserContext) any { return uc.PreferredLanguage },
	"preferredTone":        func(uc *models.UserContext) any { return string(uc.PreferredTone) },
	"productivityTrend":    func(uc *models.UserContext) any { return string(uc.ProductivityTrend) },
	"skillLevel":           func(uc *models.UserContext) any { return string(uc.SkillLevel) },
	"collaborationLevel":   func(uc *models.UserContext) any { return string(uc.CollaborationLevel) },
	"deviceType":           func(uc *models.UserContext) any { return string(uc.DeviceType) },
	"platform":             func(uc *models.UserContext) any { return uc.Platform },
	"achievementCount":     func(uc *models.UserContext) any { return len(uc.Achievements) },
	"interactionCount":     func(uc *models.UserContext) any { return len(uc.InteractionHistory) },
	"nearMilestone":        func(uc *models.UserContext) any { return uc.NearMilestone(0.8, 1) },
	"preferredTypes": func(uc *models.UserContext) any {
		out := make([]string, len(uc.MessagePreferences.PreferredTypes))
		for i, t := range uc.MessagePreferences.PreferredTypes {
			out[i] = string(t)
		}
		return out
	},
	"planning.upcomingEvents": func(uc *models.UserContext) any {
		if uc.Planning == nil {
			return 0
		}
		return uc.Planning.UpcomingEvents
	},
	"planning.overdueEvents": func(uc *models.UserContext) any {
		if uc.Planning == nil {
			return 0
		}
		return uc.Planning.OverdueEvents
	},
	"planning.activeGoals": func(uc *models.UserContext) any {
		if uc.Planning == nil {
			return 0
		}
		return uc.Planning.ActiveGoals
	},
}

// Lookup resolves a property path to its accessor.
// "featureUsage.<name>" resolves to the usage count of that feature.
func Lookup(property string) (Accessor, bool) {
	if a, ok := accessors[property]; ok {
		return a, true
	}
	if name, ok := strings.CutPrefix(property, featureUsagePrefix); ok && name != "" {
		return func(uc *models.UserContext) any { return uc.FeatureUsage[name] }, true
	}
	return nil, false
}

// Properties lists the statically known property names
func Properties() []string {
	out := make([]string, 0, len(accessors))
	for k := range accessors {
		out = append(out, k)
	}
	return out
}
