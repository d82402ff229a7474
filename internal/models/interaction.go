package models

import "time"

// InteractionAction is what the user did with a displayed message
type InteractionAction string

const (
	ActionViewed    InteractionAction = "viewed"
	ActionClicked   InteractionAction = "clicked"
	ActionDismissed InteractionAction = "dismissed"
	ActionRated     InteractionAction = "rated"
)

// IsValid reports whether a is a known action
func (a InteractionAction) IsValid() bool {
	switch a {
	case ActionViewed, ActionClicked, ActionDismissed, ActionRated:
		return true
	default:
		return false
	}
}

// Feedback is optional explicit user feedback on a message
type Feedback struct {
	Rating  int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Helpful bool   `json:"helpful"`
	Comment string `json:"comment,omitempty" validate:"max=1000"`
}

// MessageInteraction is one entry of a user's interaction ledger
type MessageInteraction struct {
	MessageID          string            `json:"message_id"`
	MessageType        MessageType       `json:"message_type,omitempty"`
	Tone               Tone              `json:"tone,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
	Action             InteractionAction `json:"action"`
	EngagementDuration time.Duration     `json:"engagement_duration,omitempty"`
	Feedback           *Feedback         `json:"feedback,omitempty"`
}

// IsPositive reports whether the interaction signals the message landed well
func (i MessageInteraction) IsPositive() bool {
	switch i.Action {
	case ActionClicked:
		return true
	case ActionRated:
		return i.Feedback != nil && (i.Feedback.Rating >= 4 || i.Feedback.Helpful)
	default:
		return false
	}
}
