// Package generator assembles the candidate set for one message request from AI
// completions, the template bank, and AI-restyled templates.
package generator

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/services/ai"
	"github.com/benvon/smart-nudge/internal/templates"
)

const (
	// DefaultMaxCandidates bounds the candidate set when the caller sets no limit
	DefaultMaxCandidates = 5

	minTemplateSlots = 3
	maxTokens        = 200
	aiTag            = "ai_generated"
)

// aiTemperatures are the sampling temperatures of the concurrent AI completions;
// nil keeps the provider default
var aiTemperatures = []*float64{nil, ai.Temperature(0.9), ai.Temperature(0.7)}

// Options select what to generate
type Options struct {
	PreferAI      bool
	Type          models.MessageType
	MaxCandidates int
}

// Generator produces candidate messages
type Generator struct {
	bank   *templates.Bank
	text   ai.TextGenerator
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithTextGenerator enables AI and hybrid candidates
func WithTextGenerator(t ai.TextGenerator) Option {
	return func(g *Generator) { g.text = t }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the clock used for candidate timestamps
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a Generator over bank
func New(bank *templates.Bank, opts ...Option) *Generator {
	g := &Generator{
		bank:   bank,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HasTextGenerator reports whether AI candidates are enabled
func (g *Generator) HasTextGenerator() bool { return g.text != nil }

// Generate returns between one and MaxCandidates candidates for uc
func (g *Generator) Generate(ctx context.Context, uc *models.UserContext, opts Options) []*models.ContextualMessage {
	limit := opts.MaxCandidates
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}

	var candidates []*models.ContextualMessage

	if g.text != nil && (opts.PreferAI || opts.Type == "") {
		typ := opts.Type
		if typ == "" {
			typ = g.bank.SelectOptimalType(uc)
		}
		candidates = append(candidates, g.aiCandidates(ctx, uc, typ)...)
	}

	slots := max(minTemplateSlots, limit-len(candidates))
	candidates = append(candidates, g.templateCandidates(uc, opts.Type, slots)...)

	if len(candidates) < limit && g.text != nil {
		if h := g.hybridCandidate(ctx, uc, opts.Type); h != nil {
			candidates = append(candidates, h)
		}
	}

	if len(candidates) == 0 {
		if f := g.fallbackCandidate(uc, opts.Type); f != nil {
			candidates = append(candidates, f)
		}
	}

	for _, c := range candidates {
		addShortVariation(c, uc)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	g.logger.Debug("candidates_generated",
		zap.String("user_id", logger.SanitizeUserID(uc.UserID)),
		zap.Int("count", len(candidates)),
		zap.Strings("sources", sources(candidates)))
	return candidates
}

// aiCandidates issues the completions concurrently; a failed call only loses its own candidate
func (g *Generator) aiCandidates(ctx context.Context, uc *models.UserContext, typ models.MessageType) []*models.ContextualMessage {
	prompt := buildPrompt(uc, typ)
	ctx = ai.WithMessageType(ai.WithUserID(ctx, uc.UserID), string(typ))

	results := make([]*models.ContextualMessage, len(aiTemperatures))
	var eg errgroup.Group
	for i, temp := range aiTemperatures {
		eg.Go(func() error {
			out, err := g.text.Complete(ctx, prompt, ai.CompletionOptions{
				Temperature:  temp,
				MaxTokens:    maxTokens,
				SystemPrompt: systemPrompt,
			})
			if err != nil {
				g.logger.Warn("ai_candidate_failed",
					zap.Int("attempt", i),
					zap.String("user_id", logger.SanitizeUserID(uc.UserID)),
					zap.String("class", ai.Classify(err)),
					zap.String("error", logger.SanitizeError(err)))
				return nil
			}
			c, ok := parseCompletion(out)
			if !ok {
				g.logger.Warn("ai_candidate_unparseable",
					zap.Int("attempt", i),
					zap.String("response", logger.SanitizeString(out, 200)))
				return nil
			}
			results[i] = g.aiMessage(uc, typ, c)
			return nil
		})
	}
	_ = eg.Wait()

	var out []*models.ContextualMessage
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (g *Generator) aiMessage(uc *models.UserContext, typ models.MessageType, c completion) *models.ContextualMessage {
	title := c.Title
	if title == "" {
		title = defaultTitle(typ)
	}
	id := uuid.NewString()
	return &models.ContextualMessage{
		ID:       id,
		Title:    title,
		Body:     c.Message,
		Icon:     c.Icon,
		Type:     typ,
		Priority: templates.PriorityFor(typ, uc),
		Category: models.CategoryFor(typ),
		Tags:     []string{aiTag, string(typ)},
		Metadata: models.MessageMetadata{
			CreatedAt:      g.now(),
			TargetAudience: []string{string(uc.SkillLevel)},
			Source:         models.SourceAI,
		},
		Tokens: templates.Tokens(uc),
		Variations: []models.MessageVariation{{
			ID:     id + "_default",
			Tone:   uc.PreferredTone,
			Length: templates.LengthOf(c.Message),
			Title:  title,
			Body:   c.Message,
		}},
	}
}

// templateCandidates instantiates up to slots eligible templates of typ, or of
// every appropriate type when typ is empty, in shuffled order
func (g *Generator) templateCandidates(uc *models.UserContext, typ models.MessageType, slots int) []*models.ContextualMessage {
	types := []models.MessageType{typ}
	if typ == "" {
		types = g.bank.AppropriateTypes(uc)
	}

	seen := map[string]bool{}
	var eligible []models.MessageTemplate
	for _, t := range types {
		for _, tmpl := range g.bank.GetEligible(uc, t) {
			if !seen[tmpl.ID] {
				seen[tmpl.ID] = true
				eligible = append(eligible, tmpl)
			}
		}
	}
	g.bank.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })

	out := make([]*models.ContextualMessage, 0, min(slots, len(eligible)))
	for _, tmpl := range eligible {
		if len(out) == slots {
			break
		}
		if msg := g.bank.Instantiate(tmpl, uc); msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

// hybridCandidate restyles the best eligible template with the text generator
// and keeps the template's metadata
func (g *Generator) hybridCandidate(ctx context.Context, uc *models.UserContext, typ models.MessageType) *models.ContextualMessage {
	if typ == "" {
		typ = g.bank.SelectOptimalType(uc)
	}
	tmpl, ok := g.bank.Best(uc, typ)
	if !ok {
		if tmpl, ok = g.bank.Best(uc, ""); !ok {
			return nil
		}
	}
	base := g.bank.Instantiate(tmpl, uc)
	if base == nil {
		return nil
	}

	ctx = ai.WithMessageType(ai.WithUserID(ctx, uc.UserID), string(base.Type))
	out, err := g.text.Complete(ctx, buildRestylePrompt(uc, base), ai.CompletionOptions{
		Temperature:  ai.Temperature(0.7),
		MaxTokens:    maxTokens,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		g.logger.Warn("hybrid_candidate_failed",
			zap.String("template_id", tmpl.ID),
			zap.String("class", ai.Classify(err)),
			zap.String("error", logger.SanitizeError(err)))
		return nil
	}
	c, ok := parseCompletion(out)
	if !ok {
		return nil
	}

	h := base.Clone()
	h.ID = uuid.NewString()
	if c.Title != "" {
		h.Title = c.Title
	}
	h.Body = c.Message
	if c.Icon != "" {
		h.Icon = c.Icon
	}
	h.Tags = append(h.Tags, aiTag)
	h.Metadata.Source = models.SourceHybrid
	h.Variations = []models.MessageVariation{{
		ID:     h.ID + "_default",
		Tone:   uc.PreferredTone,
		Length: templates.LengthOf(h.Body),
		Title:  h.Title,
		Body:   h.Body,
	}}
	return h
}

func (g *Generator) fallbackCandidate(uc *models.UserContext, typ models.MessageType) *models.ContextualMessage {
	tmpl, ok := g.bank.Fallback(typ)
	if !ok {
		return nil
	}
	msg := g.bank.Instantiate(tmpl, uc)
	if msg == nil {
		return nil
	}
	msg.Metadata.Source = models.SourceFallback
	g.logger.Debug("fallback_candidate_used",
		zap.String("template_id", tmpl.ID),
		zap.String("user_id", logger.SanitizeUserID(uc.UserID)))
	return msg
}

// addShortVariation adds a one-sentence variation when the body has several sentences
func addShortVariation(msg *models.ContextualMessage, uc *models.UserContext) {
	short, more := firstSentence(msg.Body)
	if !more {
		return
	}
	if msg.HasVariation(func(v models.MessageVariation) bool { return v.Length == models.LengthShort && v.Body == short }) {
		return
	}
	msg.Variations = append(msg.Variations, models.MessageVariation{
		ID:     msg.ID + "_short",
		Tone:   uc.PreferredTone,
		Length: models.LengthShort,
		Title:  msg.Title,
		Body:   short,
	})
}

var defaultTitles = map[models.MessageType]string{
	models.MessageTypeWelcome:          "Welcome!",
	models.MessageTypeMotivation:       "Keep going",
	models.MessageTypeTip:              "Quick tip",
	models.MessageTypeAchievement:      "Well done!",
	models.MessageTypeReminder:         "Reminder",
	models.MessageTypeCelebration:      "Let's celebrate",
	models.MessageTypeEducational:      "Did you know?",
	models.MessageTypeSeasonal:         "Season's greetings",
	models.MessageTypeMilestone:        "Almost there",
	models.MessageTypeFeatureDiscovery: "Try something new",
	models.MessageTypeReEngagement:     "Welcome back",
	models.MessageTypeFeedbackRequest:  "Your opinion matters",
}

func defaultTitle(typ models.MessageType) string {
	if t, ok := defaultTitles[typ]; ok {
		return t
	}
	return "For you"
}

// sources lists the distinct sources of a candidate set, for logging
func sources(cands []*models.ContextualMessage) []string {
	var out []string
	for _, c := range cands {
		s := string(c.Metadata.Source)
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
