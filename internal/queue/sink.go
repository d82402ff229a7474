package queue

import (
	"context"
	"fmt"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/models"
)

// EventSink hands analytics events to the worker through a JobQueue
type EventSink struct {
	queue JobQueue
}

var _ analytics.Sink = (*EventSink)(nil)

// NewEventSink creates a sink publishing to q
func NewEventSink(q JobQueue) *EventSink {
	return &EventSink{queue: q}
}

// Apply implements analytics.Sink
func (s *EventSink) Apply(ctx context.Context, event *models.AnalyticsEvent) error {
	if event == nil {
		return nil
	}
	if err := s.queue.Publish(ctx, NewEventJob(event)); err != nil {
		return fmt.Errorf("failed to publish analytics event: %w", err)
	}
	return nil
}
