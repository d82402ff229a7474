package models

import "time"

// TimeOfDay is a coarse bucket of the user's local hour
type TimeOfDay string

const (
	TimeEarlyMorning TimeOfDay = "early_morning"
	TimeMorning      TimeOfDay = "morning"
	TimeAfternoon    TimeOfDay = "afternoon"
	TimeEvening      TimeOfDay = "evening"
	TimeNight        TimeOfDay = "night"
	TimeLateNight    TimeOfDay = "late_night"
)

// TimeOfDayFor buckets an hour in [0,23]
func TimeOfDayFor(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 7:
		return TimeEarlyMorning
	case hour >= 7 && hour < 12:
		return TimeMorning
	case hour >= 12 && hour < 17:
		return TimeAfternoon
	case hour >= 17 && hour < 20:
		return TimeEvening
	case hour >= 20 && hour < 23:
		return TimeNight
	default:
		return TimeLateNight
	}
}

// Season of the year, northern hemisphere
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// SeasonFor maps a month to its season
func SeasonFor(m time.Month) Season {
	switch {
	case m >= time.March && m <= time.May:
		return SeasonSpring
	case m >= time.June && m <= time.August:
		return SeasonSummer
	case m >= time.September && m <= time.November:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}

// LoginFrequency classifies how often a user shows up
type LoginFrequency string

const (
	LoginDaily      LoginFrequency = "daily"
	LoginWeekly     LoginFrequency = "weekly"
	LoginOccasional LoginFrequency = "occasional"
	LoginRare       LoginFrequency = "rare"
)

// ProductivityTrend compares recent output with the preceding period
type ProductivityTrend string

const (
	TrendIncreasing ProductivityTrend = "increasing"
	TrendStable     ProductivityTrend = "stable"
	TrendDecreasing ProductivityTrend = "decreasing"
)

// SkillLevel is the inferred proficiency of a user
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// CollaborationLevel tells whether the user works alone or with a team
type CollaborationLevel string

const (
	CollaborationSolo CollaborationLevel = "solo"
	CollaborationTeam CollaborationLevel = "team"
)

// DeviceType is the form factor of the requesting device
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// MessagePreferences are the user's explicit or default message settings
type MessagePreferences struct {
	PreferredTypes    []MessageType     `json:"preferred_types"`
	PreferredTimes    []TimeOfDay       `json:"preferred_times"`
	FrequencyLimit    int               `json:"frequency_limit"`
	BlockedCategories []MessageCategory `json:"blocked_categories,omitempty"`
}

// DefaultMessagePreferences returns the preferences used when none are stored
func DefaultMessagePreferences() MessagePreferences {
	return MessagePreferences{
		PreferredTypes: []MessageType{MessageTypeWelcome, MessageTypeTip, MessageTypeAchievement},
		PreferredTimes: []TimeOfDay{TimeMorning, TimeEvening},
		FrequencyLimit: 3,
	}
}

// MilestoneProgress tracks progress toward a usage milestone
type MilestoneProgress struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Current  int     `json:"current"`
	Target   int     `json:"target"`
	Progress float64 `json:"progress"`
}

// Achievement is an unlocked accomplishment
type Achievement struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// PlanningSummary condenses external calendar and goal data
type PlanningSummary struct {
	UpcomingEvents int            `json:"upcoming_events"`
	OverdueEvents  int            `json:"overdue_events"`
	ActiveGoals    int            `json:"active_goals"`
	NextEvent      *PlanningEvent `json:"next_event,omitempty"`
}

// UserContext is an immutable snapshot of a user's state used for one generation request.
// Consumers must treat it as read-only.
type UserContext struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Email    string `json:"email,omitempty"`

	IsFirstLogin       bool           `json:"is_first_login"`
	IsReturningUser    bool           `json:"is_returning_user"`
	DaysSinceLastLogin int            `json:"days_since_last_login"`
	LoginFrequency     LoginFrequency `json:"login_frequency"`

	ContentCount         int      `json:"content_count"`
	RecordingsCount      int      `json:"recordings_count"`
	TotalWordsWritten    int      `json:"total_words_written"`
	AverageContentLength int      `json:"average_content_length"`
	FavoriteCount        int      `json:"favorite_count"`
	MostUsedTopics       []string `json:"most_used_topics,omitempty"`
	ContentQualityScore  int      `json:"content_quality_score"`

	ConsecutiveDays int            `json:"consecutive_days"`
	TotalDaysActive int            `json:"total_days_active"`
	EngagementScore int            `json:"engagement_score"`
	FeatureUsage    map[string]int `json:"feature_usage,omitempty"`

	TimeOfDay TimeOfDay    `json:"time_of_day"`
	DayOfWeek time.Weekday `json:"day_of_week"`
	Season    Season       `json:"season"`
	IsHoliday bool         `json:"is_holiday"`
	Timezone  string       `json:"timezone"`

	PreferredLanguage  string             `json:"preferred_language"`
	PreferredTone      Tone               `json:"preferred_tone"`
	MessagePreferences MessagePreferences `json:"message_preferences"`

	InteractionHistory []MessageInteraction `json:"interaction_history,omitempty"`

	ProductivityTrend  ProductivityTrend   `json:"productivity_trend"`
	SkillLevel         SkillLevel          `json:"skill_level"`
	CollaborationLevel CollaborationLevel  `json:"collaboration_level"`
	MilestoneProgress  []MilestoneProgress `json:"milestone_progress,omitempty"`
	Achievements       []Achievement       `json:"achievements,omitempty"`

	DeviceType DeviceType `json:"device_type"`
	Platform   string     `json:"platform,omitempty"`
	AppVersion string     `json:"app_version,omitempty"`

	Planning *PlanningSummary `json:"planning,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GuestUserID identifies a context built without a known user
const GuestUserID = "guest"

// DefaultUserContext is the degraded context used when building fails
func DefaultUserContext(userID string, now time.Time) *UserContext {
	if userID == "" {
		userID = GuestUserID
	}
	return &UserContext{
		UserID:             userID,
		IsFirstLogin:       true,
		LoginFrequency:     LoginOccasional,
		FeatureUsage:       map[string]int{},
		TimeOfDay:          TimeOfDayFor(now.Hour()),
		DayOfWeek:          now.Weekday(),
		Season:             SeasonFor(now.Month()),
		Timezone:           now.Location().String(),
		PreferredLanguage:  "en",
		PreferredTone:      ToneCasual,
		MessagePreferences: DefaultMessagePreferences(),
		ProductivityTrend:  TrendStable,
		SkillLevel:         SkillBeginner,
		CollaborationLevel: CollaborationSolo,
		DeviceType:         DeviceMobile,
		GeneratedAt:        now,
	}
}

// IsWeekend reports whether the snapshot falls on Saturday or Sunday
func (c *UserContext) IsWeekend() bool {
	return c.DayOfWeek == time.Saturday || c.DayOfWeek == time.Sunday
}

// NearMilestone reports whether any milestone progress lies strictly between lo and hi
func (c *UserContext) NearMilestone(lo, hi float64) bool {
	for _, m := range c.MilestoneProgress {
		if m.Progress > lo && m.Progress < hi {
			return true
		}
	}
	return false
}

// Tags returns the context tags matched against message tags during ranking
func (c *UserContext) Tags() []string {
	var tags []string
	if c.IsFirstLogin {
		tags = append(tags, "new_user", "onboarding")
	}
	if c.ConsecutiveDays > 7 {
		tags = append(tags, "engaged", "regular")
	}
	if c.ContentCount > 10 {
		tags = append(tags, "productive", "experienced")
	}
	switch c.SkillLevel {
	case SkillBeginner:
		tags = append(tags, "beginner")
	case SkillExpert:
		tags = append(tags, "advanced", "power_user")
	}
	return tags
}
