package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-nudge/internal/models"
)

// JobType names what a job carries
type JobType string

// JobTypeAnalyticsEvent applies one analytics event to the durable log
const JobTypeAnalyticsEvent JobType = "analytics_event"

// DefaultMaxAttempts bounds deliveries before a job is dead-lettered
const DefaultMaxAttempts = 4

// Job is the wire form of a queued unit of work
type Job struct {
	ID          uuid.UUID              `json:"id"`
	Type        JobType                `json:"type"`
	UserID      string                 `json:"user_id"`
	Event       *models.AnalyticsEvent `json:"event,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Attempt     int                    `json:"attempt"`
	MaxAttempts int                    `json:"max_attempts"`
}

// NewEventJob wraps an analytics event for its first delivery
func NewEventJob(event *models.AnalyticsEvent) *Job {
	return &Job{
		ID:          uuid.New(),
		Type:        JobTypeAnalyticsEvent,
		UserID:      event.UserID,
		Event:       event,
		CreatedAt:   time.Now().UTC(),
		Attempt:     1,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Validate checks the job carries what its type needs
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeAnalyticsEvent:
		if j.Event == nil {
			return errors.New("analytics event job has no event")
		}
		return nil
	default:
		return fmt.Errorf("unknown job type: %q", j.Type)
	}
}

// Exhausted reports whether no delivery attempts remain after this one
func (j *Job) Exhausted() bool {
	return j.Attempt >= j.MaxAttempts
}

// NextAttempt returns a copy of j for its following delivery
func (j *Job) NextAttempt() *Job {
	next := *j
	next.Attempt++
	return &next
}
