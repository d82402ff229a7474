package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
)

var (
	// ErrMissingMessageID is returned when no message id is given
	ErrMissingMessageID = errors.New("message id is required")
	// ErrInvalidAction is returned for an unknown interaction action
	ErrInvalidAction = errors.New("invalid interaction action")
	// ErrInvalidRating is returned for a rating outside 1-5 or a rated action without one
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrUnknownRecipient is returned when the user of a message cannot be resolved
	ErrUnknownRecipient = errors.New("message recipient is unknown")
)

// Extra carries the optional details of an interaction
type Extra struct {
	// UserID overrides the recipient remembered for the message
	UserID             string
	EngagementDuration time.Duration
	Feedback           *models.Feedback
}

func validateInteraction(messageID string, action models.InteractionAction, fb *models.Feedback) error {
	if messageID == "" {
		return ErrMissingMessageID
	}
	if !action.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if fb != nil && fb.Rating != 0 && (fb.Rating < 1 || fb.Rating > 5) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, fb.Rating)
	}
	if action == models.ActionRated && (fb == nil || fb.Rating == 0) {
		return fmt.Errorf("%w: rated interaction without a rating", ErrInvalidRating)
	}
	return nil
}

// RecordInteraction records what a user did with a displayed message. Only
// invalid input is reported; storage and analytics failures are logged.
func (s *Service) RecordInteraction(ctx context.Context, messageID string, action models.InteractionAction, extra Extra) error {
	ctx, span := s.tracer.Start(ctx, "engine.RecordInteraction",
		trace.WithAttributes(attribute.String("nudge.action", string(action))))
	defer span.End()

	if err := validateInteraction(messageID, action, extra.Feedback); err != nil {
		span.SetStatus(codes.Error, "invalid interaction")
		return err
	}

	entry, known := s.index.get(messageID)
	userID := extra.UserID
	if userID == "" {
		if !known {
			span.SetStatus(codes.Error, "unknown recipient")
			return fmt.Errorf("%w: %s", ErrUnknownRecipient, messageID)
		}
		userID = entry.userID
	}
	if known && entry.userID != userID {
		entry = issued{}
	}

	interaction := models.MessageInteraction{
		MessageID:          messageID,
		MessageType:        entry.typ,
		Tone:               entry.tone,
		Timestamp:          s.now(),
		Action:             action,
		EngagementDuration: max(0, extra.EngagementDuration),
	}
	if extra.Feedback != nil {
		fb := *extra.Feedback
		interaction.Feedback = &fb
	}

	if userID != models.GuestUserID {
		if err := s.ledger.Append(ctx, userID, interaction); err != nil {
			span.RecordError(err)
			s.logger.Warn("interaction_not_persisted",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("message_id", logger.SanitizeString(messageID, 128)),
				zap.String("error", logger.SanitizeError(err)))
		}
	}

	category := entry.category
	if category == "" && entry.typ != "" {
		category = models.CategoryFor(entry.typ)
	}
	s.track(ctx, analytics.NewInteractionEvent(userID, interaction, category, entry.experiment))

	s.logger.Debug("interaction_recorded",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("message_id", logger.SanitizeString(messageID, 128)),
		zap.String("action", string(action)))
	return nil
}
