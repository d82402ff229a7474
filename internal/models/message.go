package models

import (
	"math"
	"slices"
	"time"
)

// MessageType is the kind of nudge a message represents
type MessageType string

const (
	MessageTypeWelcome          MessageType = "welcome"
	MessageTypeMotivation       MessageType = "motivation"
	MessageTypeTip              MessageType = "tip"
	MessageTypeAchievement      MessageType = "achievement"
	MessageTypeReminder         MessageType = "reminder"
	MessageTypeCelebration      MessageType = "celebration"
	MessageTypeEducational      MessageType = "educational"
	MessageTypeFeatureDiscovery MessageType = "feature_discovery"
	MessageTypeMilestone        MessageType = "milestone"
	MessageTypeFeedbackRequest  MessageType = "feedback_request"
	MessageTypeReEngagement     MessageType = "re_engagement"
	MessageTypeSeasonal         MessageType = "seasonal"
)

// AllMessageTypes lists every message type in priority-table order.
var AllMessageTypes = []MessageType{
	MessageTypeWelcome,
	MessageTypeAchievement,
	MessageTypeReEngagement,
	MessageTypeMilestone,
	MessageTypeMotivation,
	MessageTypeEducational,
	MessageTypeTip,
	MessageTypeSeasonal,
	MessageTypeFeatureDiscovery,
	MessageTypeReminder,
	MessageTypeCelebration,
	MessageTypeFeedbackRequest,
}

// IsValid reports whether t is one of the known message types
func (t MessageType) IsValid() bool {
	return slices.Contains(AllMessageTypes, t)
}

// Priority orders messages for display urgency
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// MessageCategory groups message types for preference blocking and reporting
type MessageCategory string

const (
	CategoryOnboarding   MessageCategory = "onboarding"
	CategoryEngagement   MessageCategory = "engagement"
	CategoryEducation    MessageCategory = "education"
	CategoryAchievement  MessageCategory = "achievement"
	CategoryProductivity MessageCategory = "productivity"
	CategorySeasonal     MessageCategory = "seasonal"
	CategoryFeature      MessageCategory = "feature"
	CategoryFeedback     MessageCategory = "feedback"
)

// CategoryFor returns the default category of a message type
func CategoryFor(t MessageType) MessageCategory {
	switch t {
	case MessageTypeWelcome:
		return CategoryOnboarding
	case MessageTypeMotivation, MessageTypeReEngagement:
		return CategoryEngagement
	case MessageTypeTip, MessageTypeEducational:
		return CategoryEducation
	case MessageTypeAchievement, MessageTypeMilestone, MessageTypeCelebration:
		return CategoryAchievement
	case MessageTypeReminder:
		return CategoryProductivity
	case MessageTypeSeasonal:
		return CategorySeasonal
	case MessageTypeFeatureDiscovery:
		return CategoryFeature
	case MessageTypeFeedbackRequest:
		return CategoryFeedback
	default:
		return CategoryEngagement
	}
}

// Tone is the voice a message is written in
type Tone string

const (
	ToneFormal       Tone = "formal"
	ToneCasual       Tone = "casual"
	ToneMotivational Tone = "motivational"
	ToneEducational  Tone = "educational"
)

// Length classifies message body length
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// MessageSource records which generator produced a candidate
type MessageSource string

const (
	SourceAI       MessageSource = "ai"
	SourceTemplate MessageSource = "template"
	SourceHybrid   MessageSource = "hybrid"
	SourceFallback MessageSource = "fallback"
)

// Experiment assigns a message to one arm of an A/B test
type Experiment struct {
	TestID    string `json:"test_id" validate:"required,max=128"`
	VariantID string `json:"variant_id" validate:"required,max=128"`
}

// MessageMetadata carries lifecycle bookkeeping for a message
type MessageMetadata struct {
	CreatedAt       time.Time     `json:"created_at"`
	LastShown       *time.Time    `json:"last_shown,omitempty"`
	ShowCount       int           `json:"show_count"`
	Effectiveness   float64       `json:"effectiveness"`
	TargetAudience  []string      `json:"target_audience,omitempty"`
	ExcludeAudience []string      `json:"exclude_audience,omitempty"`
	ExpiresAt       *time.Time    `json:"expires_at,omitempty"`
	Source          MessageSource `json:"source"`
	TemplateID      string        `json:"template_id,omitempty"`
	Experiment      *Experiment   `json:"experiment,omitempty"`
}

// MessageVariation is an alternate tone/length rendering of a message
type MessageVariation struct {
	ID     string `json:"id"`
	Tone   Tone   `json:"tone"`
	Length Length `json:"length"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body"`
}

// ContextualMessage is a candidate or finalized personalized message
type ContextualMessage struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Body       string             `json:"body"`
	Icon       string             `json:"icon,omitempty"`
	Type       MessageType        `json:"type"`
	Priority   Priority           `json:"priority"`
	Category   MessageCategory    `json:"category"`
	Tags       []string           `json:"tags,omitempty"`
	Metadata   MessageMetadata    `json:"metadata"`
	Tokens     map[string]string  `json:"tokens,omitempty"`
	Variations []MessageVariation `json:"variations,omitempty"`
	Conditions []MessageCondition `json:"conditions,omitempty"`
	Score      *MessageScore      `json:"score,omitempty"`

	// Tone of the variation chosen at finalization
	SelectedTone Tone `json:"selected_tone,omitempty"`
}

// HasTag reports whether the message carries tag
func (m *ContextualMessage) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// HasVariation reports whether any variation matches the predicate
func (m *ContextualMessage) HasVariation(match func(MessageVariation) bool) bool {
	return slices.ContainsFunc(m.Variations, match)
}

// Clone returns a deep copy so cached messages are never shared with callers
func (m *ContextualMessage) Clone() *ContextualMessage {
	if m == nil {
		return nil
	}
	c := *m
	c.Tags = slices.Clone(m.Tags)
	c.Variations = slices.Clone(m.Variations)
	c.Conditions = slices.Clone(m.Conditions)
	c.Metadata.TargetAudience = slices.Clone(m.Metadata.TargetAudience)
	c.Metadata.ExcludeAudience = slices.Clone(m.Metadata.ExcludeAudience)
	if m.Metadata.LastShown != nil {
		t := *m.Metadata.LastShown
		c.Metadata.LastShown = &t
	}
	if m.Metadata.ExpiresAt != nil {
		t := *m.Metadata.ExpiresAt
		c.Metadata.ExpiresAt = &t
	}
	if m.Metadata.Experiment != nil {
		e := *m.Metadata.Experiment
		c.Metadata.Experiment = &e
	}
	if m.Tokens != nil {
		c.Tokens = make(map[string]string, len(m.Tokens))
		for k, v := range m.Tokens {
			c.Tokens[k] = v
		}
	}
	if m.Score != nil {
		s := *m.Score
		c.Score = &s
	}
	return &c
}

// TotalScore returns the computed score or 0 when unscored
func (m *ContextualMessage) TotalScore() float64 {
	if m.Score == nil {
		return 0
	}
	return m.Score.TotalScore
}

// ScoreFactor is one weighted, explained component of a MessageScore
type ScoreFactor struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
}

// MessageScore holds the six scoring factors and their weighted total
type MessageScore struct {
	Relevance   ScoreFactor `json:"relevance"`
	Engagement  ScoreFactor `json:"engagement"`
	Personality ScoreFactor `json:"personality"`
	Timing      ScoreFactor `json:"timing"`
	Context     ScoreFactor `json:"context"`
	Novelty     ScoreFactor `json:"novelty"`
	TotalScore  float64     `json:"total_score"`

	// DiversityPenalty is 1 unless ranking demoted the message for type repetition
	DiversityPenalty float64 `json:"diversity_penalty"`
}

// Factors returns the six factors in canonical order
func (s *MessageScore) Factors() []ScoreFactor {
	return []ScoreFactor{s.Relevance, s.Engagement, s.Personality, s.Timing, s.Context, s.Novelty}
}

// WeightedSum recomputes the undiversified total from the factors
func (s *MessageScore) WeightedSum() float64 {
	var sum float64
	for _, f := range s.Factors() {
		sum += f.Value * f.Weight
	}
	return math.Max(0, math.Min(1, sum))
}
