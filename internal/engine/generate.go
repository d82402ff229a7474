package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/contextbuilder"
	"github.com/benvon/smart-nudge/internal/generator"
	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/templates"
)

const (
	maxTitleRunes = 120
	maxBodyRunes  = 600

	// recentTypesWindow is how many past types the diversification pass sees
	recentTypesWindow = 5
)

var errNoCandidates = errors.New("no candidate messages")

// Options control one generation call
type Options struct {
	PreferAI      bool
	MessageType   models.MessageType
	MaxCandidates int
	UseCache      bool

	// Context skips the context build when set
	Context *models.UserContext

	Device     *models.DeviceInfo
	Analytics  *models.PrecomputedAnalytics
	Experiment *models.Experiment
}

// GenerateOptimalMessage returns the best message for the user. It never fails:
// when no message can be produced an emergency message in the user's language
// is returned instead.
func (s *Service) GenerateOptimalMessage(ctx context.Context, user *models.RawUser, content []models.ContentItem, recordings []models.RecordingItem, opts Options) (msg *models.ContextualMessage) {
	ctx, span := s.tracer.Start(ctx, "engine.GenerateOptimalMessage",
		trace.WithAttributes(
			attribute.Bool("nudge.prefer_ai", opts.PreferAI),
			attribute.Bool("nudge.use_cache", opts.UseCache),
			attribute.String("nudge.requested_type", string(opts.MessageType)),
		))
	defer span.End()

	userID := models.GuestUserID
	if user != nil && user.ID != "" {
		userID = user.ID
	}
	var uc *models.UserContext

	defer func() {
		if r := recover(); r != nil {
			msg = s.emergency(span, userID, languageOf(uc, opts), fmt.Errorf("panic: %v", r))
		}
	}()

	uc = s.userContext(ctx, user, content, recordings, opts)
	userID = uc.UserID

	msg, err := s.generate(ctx, uc, opts)
	if err != nil {
		return s.emergency(span, userID, uc.PreferredLanguage, err)
	}

	span.SetAttributes(
		attribute.String("nudge.message_type", string(msg.Type)),
		attribute.String("nudge.source", string(msg.Metadata.Source)),
		attribute.Float64("nudge.score", msg.TotalScore()),
	)
	return msg
}

func (s *Service) userContext(ctx context.Context, user *models.RawUser, content []models.ContentItem, recordings []models.RecordingItem, opts Options) *models.UserContext {
	if opts.Context != nil {
		return opts.Context
	}
	return s.builder.Build(ctx, contextbuilder.Input{
		User:       user,
		Content:    content,
		Recordings: recordings,
		Analytics:  opts.Analytics,
		Device:     opts.Device,
	})
}

func (s *Service) generate(ctx context.Context, uc *models.UserContext, opts Options) (*models.ContextualMessage, error) {
	if opts.UseCache {
		if cached, ok := s.cache.Get(uc); ok {
			s.logger.Debug("message_cache_hit",
				zap.String("user_id", logger.SanitizeUserID(uc.UserID)),
				zap.String("message_id", cached.ID))
			return s.present(ctx, uc, cached, opts), nil
		}
	}

	var history []models.MessageInteraction
	if uc.UserID != models.GuestUserID {
		h, err := s.ledger.Load(ctx, uc.UserID)
		if err != nil {
			s.logger.Warn("interaction_history_unavailable",
				zap.String("user_id", logger.SanitizeUserID(uc.UserID)),
				zap.String("error", logger.SanitizeError(err)))
		}
		history = h
	}

	candidates := s.generator.Generate(ctx, uc, generator.Options{
		PreferAI:      opts.PreferAI,
		Type:          opts.MessageType,
		MaxCandidates: opts.MaxCandidates,
	})
	ranked := s.scorer.Rank(candidates, uc, history, s.ledger.RecentTypes(uc.UserID, recentTypesWindow))
	if len(ranked) == 0 {
		return nil, errNoCandidates
	}

	winner := pickWinner(ranked)
	if opts.Experiment != nil {
		exp := *opts.Experiment
		winner.Metadata.Experiment = &exp
	}
	s.track(ctx, analytics.NewGenerationEvent(winner, uc, s.now()))

	if opts.UseCache {
		s.cache.Put(uc, winner)
	}

	s.logger.Debug("message_selected",
		zap.String("user_id", logger.SanitizeUserID(uc.UserID)),
		zap.String("message_id", winner.ID),
		zap.String("type", string(winner.Type)),
		zap.String("source", string(winner.Metadata.Source)),
		zap.Int("candidates", len(ranked)),
		zap.Float64("score", winner.TotalScore()))

	return s.present(ctx, uc, winner, opts), nil
}

// pickWinner returns the top-ranked candidate unless a critical candidate ranks below it
func pickWinner(ranked []*models.ContextualMessage) *models.ContextualMessage {
	top := ranked[0]
	if top.Priority == models.PriorityCritical {
		return top
	}
	for _, c := range ranked[1:] {
		if c.Priority == models.PriorityCritical {
			return c
		}
	}
	return top
}

// present finalizes msg for display and records the impression
func (s *Service) present(ctx context.Context, uc *models.UserContext, msg *models.ContextualMessage, opts Options) *models.ContextualMessage {
	if opts.Experiment != nil && msg.Metadata.Experiment == nil {
		exp := *opts.Experiment
		msg.Metadata.Experiment = &exp
	}
	s.finalize(msg, uc)
	if opts.UseCache {
		s.cache.Update(msg)
	}

	s.index.put(issued{
		messageID:  msg.ID,
		userID:     uc.UserID,
		typ:        msg.Type,
		category:   msg.Category,
		tone:       msg.SelectedTone,
		experiment: msg.Metadata.Experiment,
	})

	impression := models.MessageInteraction{
		MessageID:   msg.ID,
		MessageType: msg.Type,
		Tone:        msg.SelectedTone,
		Timestamp:   s.now(),
		Action:      models.ActionViewed,
	}
	if uc.UserID != models.GuestUserID {
		if err := s.ledger.Append(ctx, uc.UserID, impression); err != nil {
			s.logger.Warn("impression_not_recorded",
				zap.String("user_id", logger.SanitizeUserID(uc.UserID)),
				zap.String("error", logger.SanitizeError(err)))
		}
	}
	s.track(ctx, analytics.NewInteractionEvent(uc.UserID, impression, msg.Category, msg.Metadata.Experiment))
	return msg
}

// finalize selects the display variation, substitutes tokens, cleans the text
// and counts the display
func (s *Service) finalize(msg *models.ContextualMessage, uc *models.UserContext) {
	msg.SelectedTone = uc.PreferredTone
	if v, ok := selectVariation(msg.Variations, uc); ok {
		msg.Body = v.Body
		if v.Title != "" {
			msg.Title = v.Title
		}
		msg.SelectedTone = v.Tone
	}

	tokens := templates.Tokens(uc)
	for k, v := range msg.Tokens {
		if _, ok := tokens[k]; !ok {
			tokens[k] = v
		}
	}
	msg.Title = sanitizeText(templates.Substitute(msg.Title, tokens), maxTitleRunes)
	msg.Body = sanitizeText(templates.Substitute(msg.Body, tokens), maxBodyRunes)

	shown := s.now()
	msg.Metadata.ShowCount++
	msg.Metadata.LastShown = &shown
}

// selectVariation prefers the user's tone, then a short rendering on mobile.
// Ties keep the earlier variation.
func selectVariation(vars []models.MessageVariation, uc *models.UserContext) (models.MessageVariation, bool) {
	if len(vars) == 0 {
		return models.MessageVariation{}, false
	}
	best, bestScore := 0, -1
	for i, v := range vars {
		score := 0
		if v.Tone == uc.PreferredTone {
			score += 2
		}
		if uc.DeviceType == models.DeviceMobile && v.Length == models.LengthShort {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return vars[best], true
}

// sanitizeText drops control characters, collapses whitespace and bounds the length
func sanitizeText(s string, maxRunes int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxRunes-1])) + "…"
	}
	return s
}

func languageOf(uc *models.UserContext, opts Options) string {
	switch {
	case uc != nil:
		return uc.PreferredLanguage
	case opts.Context != nil:
		return opts.Context.PreferredLanguage
	case opts.Device != nil:
		return opts.Device.Language
	default:
		return ""
	}
}

func (s *Service) emergency(span trace.Span, userID, lang string, cause error) *models.ContextualMessage {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "message generation failed")
	s.logger.Error("message_generation_failed",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("error", logger.SanitizeError(cause)))

	msg := emergencyMessage(userID, lang, s.now())
	s.index.put(issued{
		messageID: msg.ID,
		userID:    userID,
		typ:       msg.Type,
		category:  msg.Category,
		tone:      msg.SelectedTone,
	})
	return msg
}
