// Package scoring rates candidate messages against a user context and ranks them.
package scoring

import (
	"slices"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
)

const (
	noveltyWindow   = 10
	diversityWindow = 5

	diversityPenalty    = 0.9
	diversityNoveltyCut = 0.8
)

// Engine computes MessageScores
type Engine struct {
	weights Weights
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithWeights sets the factor weights; they are normalized to sum to 1
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w.Normalized() }
}

// WithClock overrides the clock used for recency penalties
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates a scoring engine with the default weights
func New(opts ...Option) *Engine {
	e := &Engine{weights: DefaultWeights(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the normalized weights in use
func (e *Engine) Weights() Weights { return e.weights }

// Score rates msg for uc given the user's interaction history. It has no side effects.
func (e *Engine) Score(msg *models.ContextualMessage, uc *models.UserContext, history []models.MessageInteraction) models.MessageScore {
	w := e.weights

	relevance := e.relevance(msg, uc)
	engagement := e.engagement(msg, uc, history)
	personality := e.personality(msg, uc)
	timing := e.timing(msg, uc, history)
	ctxScore := e.context(msg, uc)
	novelty := e.novelty(msg, history)

	s := models.MessageScore{
		Relevance: models.ScoreFactor{
			Name: "relevance", Value: relevance, Weight: w.Relevance,
			Reason: band(relevance,
				"Highly relevant to the user's profile and current activity",
				"Relevant to the user's experience level",
				"Partially relevant",
				"Limited relevance in the current context"),
		},
		Engagement: models.ScoreFactor{
			Name: "engagement", Value: engagement, Weight: w.Engagement,
			Reason: band(engagement,
				"Strong interaction likelihood based on history",
				"Good engagement potential",
				"Moderate engagement expected",
				"Low engagement likelihood"),
		},
		Personality: models.ScoreFactor{
			Name: "personality", Value: personality, Weight: w.Personality,
			Reason: band(personality,
				"Matches the preferred "+string(uc.PreferredTone)+" tone",
				"Fits the user's preferences well",
				"Partial match with preferences",
				"Style does not fit preferences"),
		},
		Timing: models.ScoreFactor{
			Name: "timing", Value: timing, Weight: w.Timing,
			Reason: band(timing,
				"Ideal moment for this message type",
				"Good timing",
				"Acceptable timing",
				"Poor timing"),
		},
		Context: models.ScoreFactor{
			Name: "context", Value: ctxScore, Weight: w.Context,
			Reason: band(ctxScore,
				"Closely aligned with the current situation",
				"Well suited to the current situation",
				"Partially relevant context",
				"Weak fit with the current context"),
		},
		Novelty: models.ScoreFactor{
			Name: "novelty", Value: novelty, Weight: w.Novelty,
			Reason: band(novelty,
				"New and diverse message",
				"Relatively new",
				"Seen before but not recently",
				"Frequently shown"),
		},
		DiversityPenalty: 1,
	}
	s.TotalScore = s.WeightedSum()
	return s
}

// Rank scores every candidate, sorts by total score descending, then applies a
// single diversification pass: a top candidate whose type is among the last
// recorded types is demoted once and the list re-sorted.
func (e *Engine) Rank(cands []*models.ContextualMessage, uc *models.UserContext, history []models.MessageInteraction, recentTypes []models.MessageType) []*models.ContextualMessage {
	ranked := make([]*models.ContextualMessage, 0, len(cands))
	for _, c := range cands {
		if c == nil {
			continue
		}
		s := e.Score(c, uc, history)
		c.Score = &s
		ranked = append(ranked, c)
	}
	if len(ranked) == 0 {
		return ranked
	}
	sortByScore(ranked)

	if len(recentTypes) > diversityWindow {
		recentTypes = recentTypes[len(recentTypes)-diversityWindow:]
	}
	top := ranked[0]
	if slices.Contains(recentTypes, top.Type) {
		top.Score.TotalScore *= diversityPenalty
		top.Score.Novelty.Value *= diversityNoveltyCut
		top.Score.DiversityPenalty = diversityPenalty
		sortByScore(ranked)
	}
	return ranked
}

func sortByScore(msgs []*models.ContextualMessage) {
	slices.SortStableFunc(msgs, func(a, b *models.ContextualMessage) int {
		switch {
		case a.TotalScore() > b.TotalScore():
			return -1
		case a.TotalScore() < b.TotalScore():
			return 1
		default:
			return 0
		}
	})
}
