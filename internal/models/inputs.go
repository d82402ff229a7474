package models

import "time"

// RawUser is the identity record supplied by the host application
type RawUser struct {
	ID       string `json:"id" validate:"required,max=128"`
	Name     string `json:"name,omitempty" validate:"max=200"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	PhotoURL string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// ContentItem is one piece of user-authored content
type ContentItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsFavorite bool      `json:"is_favorite"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordingItem is one audio/video recording made by the user
type RecordingItem struct {
	ID        string        `json:"id"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// DeviceInfo describes the requesting device
type DeviceInfo struct {
	Platform   string `json:"platform,omitempty" validate:"max=32"`
	IsTablet   bool   `json:"is_tablet"`
	IsDesktop  bool   `json:"is_desktop"`
	AppVersion string `json:"app_version,omitempty" validate:"max=32"`
	Language   string `json:"language,omitempty" validate:"max=35"`
	Timezone   string `json:"timezone,omitempty" validate:"max=64"`
}

// PlanningEvent is a calendar entry from an external planning source
type PlanningEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	Completed bool      `json:"completed"`
}

// Goal is a tracked objective from an external planning source
type Goal struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

// PrecomputedAnalytics are optional usage aggregates computed elsewhere
type PrecomputedAnalytics struct {
	UniqueFeatures int            `json:"unique_features"`
	FeatureUsage   map[string]int `json:"feature_usage,omitempty"`
}
