package storage

import "time"

const (
	prefixInteractions    = "message_interactions:"
	prefixEvents          = "analytics_events:"
	prefixMetrics         = "message_metrics:"
	prefixConsecutive     = "consecutive_days:"
	prefixTotalDays       = "total_days_active:"
	prefixLastLogin       = "last_login:"
	prefixLoginHistory    = "login_history:"
	prefixFeatureUsage    = "feature_usage:"
	prefixPreferences     = "message_preferences:"
	prefixAchievements    = "achievements:"
	prefixRatelimitConfig = "config:ratelimit"
	prefixCorsConfig      = "config:cors"

	// MetricsIndexKey lists the message ids that have a metrics record
	MetricsIndexKey = prefixMetrics + "index"
)

// InteractionsKey is the per-user interaction ledger
func InteractionsKey(userID string) string { return prefixInteractions + userID }

// EventsKey is the analytics event log for one UTC day
func EventsKey(day time.Time) string { return prefixEvents + day.UTC().Format("2006-01-02") }

// MetricsKey is the derived metrics record of one message
func MetricsKey(messageID string) string { return prefixMetrics + messageID }

// ConsecutiveDaysKey is the user's current streak
func ConsecutiveDaysKey(userID string) string { return prefixConsecutive + userID }

// TotalDaysActiveKey counts distinct active days
func TotalDaysActiveKey(userID string) string { return prefixTotalDays + userID }

// LastLoginKey holds the RFC3339 timestamp of the previous visit
func LastLoginKey(userID string) string { return prefixLastLogin + userID }

// LoginHistoryKey holds recent visit timestamps
func LoginHistoryKey(userID string) string { return prefixLoginHistory + userID }

// FeatureUsageKey holds the feature usage frequency map
func FeatureUsageKey(userID string) string { return prefixFeatureUsage + userID }

// PreferencesKey holds explicit message preferences
func PreferencesKey(userID string) string { return prefixPreferences + userID }

// AchievementsKey holds unlocked achievements
func AchievementsKey(userID string) string { return prefixAchievements + userID }

// UserKeys lists every per-user key, used to wipe a user's state
func UserKeys(userID string) []string {
	return []string{
		InteractionsKey(userID),
		ConsecutiveDaysKey(userID),
		TotalDaysActiveKey(userID),
		LastLoginKey(userID),
		LoginHistoryKey(userID),
		FeatureUsageKey(userID),
		PreferencesKey(userID),
		AchievementsKey(userID),
	}
}

// RatelimitConfigKey holds the rate limit configuration for stores without a SQL table
func RatelimitConfigKey() string { return prefixRatelimitConfig }

// CorsConfigKey holds the CORS configuration for stores without a SQL table
func CorsConfigKey() string { return prefixCorsConfig }
