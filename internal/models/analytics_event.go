package models

import "time"

// AnalyticsEventKind distinguishes generation from interaction events
type AnalyticsEventKind string

const (
	EventGeneration  AnalyticsEventKind = "generation"
	EventInteraction AnalyticsEventKind = "interaction"
)

// EventContext is the slice of UserContext recorded with each event
type EventContext struct {
	SkillLevel      SkillLevel   `json:"skill_level,omitempty"`
	TimeOfDay       TimeOfDay    `json:"time_of_day,omitempty"`
	DayOfWeek       time.Weekday `json:"day_of_week"`
	EngagementScore int          `json:"engagement_score"`
	ContentCount    int          `json:"content_count"`
}

// AnalyticsEvent is one entry of the day-partitioned analytics log
type AnalyticsEvent struct {
	ID                 string             `json:"id"`
	Kind               AnalyticsEventKind `json:"kind"`
	Timestamp          time.Time          `json:"timestamp"`
	UserID             string             `json:"user_id"`
	MessageID          string             `json:"message_id"`
	MessageType        MessageType        `json:"message_type,omitempty"`
	Category           MessageCategory    `json:"category,omitempty"`
	Source             MessageSource      `json:"source,omitempty"`
	TotalScore         float64            `json:"total_score,omitempty"`
	Action             InteractionAction  `json:"action,omitempty"`
	EngagementDuration time.Duration      `json:"engagement_duration,omitempty"`
	Feedback           *Feedback          `json:"feedback,omitempty"`
	Experiment         *Experiment        `json:"experiment,omitempty"`
	Context            *EventContext      `json:"context,omitempty"`
}
