// Package templates holds the static, condition-gated message templates and the
// rules that pick which message types fit a user.
package templates

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-nudge/internal/conditions"
	"github.com/benvon/smart-nudge/internal/models"
)

// Rand is the random source used for variant choice and shuffling.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) IntN(n int) int                     { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

type entry struct {
	tmpl  models.MessageTemplate
	conds []conditions.Compiled
}

// Bank is a registry of compiled templates
type Bank struct {
	entries   []entry
	threshold float64
	weights   map[models.MessageType]PriorityWeight
	now       func() time.Time

	mu  sync.Mutex
	rnd Rand
}

// Option configures a Bank
type Option func(*Bank)

// WithRand injects the random source
func WithRand(r Rand) Option {
	return func(b *Bank) {
		if r != nil {
			b.rnd = r
		}
	}
}

// WithThreshold overrides the weighted eligibility threshold
func WithThreshold(t float64) Option {
	return func(b *Bank) {
		if t > 0 && t <= 1 {
			b.threshold = t
		}
	}
}

// WithPriorityWeights overrides entries of the type priority table
func WithPriorityWeights(w map[models.MessageType]PriorityWeight) Option {
	return func(b *Bank) {
		for k, v := range w {
			b.weights[k] = v
		}
	}
}

// WithClock overrides the clock used for metadata timestamps
func WithClock(now func() time.Time) Option {
	return func(b *Bank) {
		if now != nil {
			b.now = now
		}
	}
}

// New compiles the templates. An unknown condition property or operator is an error.
func New(tmpls []models.MessageTemplate, opts ...Option) (*Bank, error) {
	b := &Bank{
		threshold: conditions.DefaultThreshold,
		weights:   DefaultPriorityWeights(),
		now:       time.Now,
		rnd:       globalRand{},
	}
	for _, opt := range opts {
		opt(b)
	}

	seen := make(map[string]bool, len(tmpls))
	for _, t := range tmpls {
		if t.ID == "" {
			return nil, fmt.Errorf("template of type %s has no id", t.Type)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		if !t.Type.IsValid() {
			return nil, fmt.Errorf("template %s: unknown message type %q", t.ID, t.Type)
		}
		if len(t.Variants) == 0 {
			return nil, fmt.Errorf("template %s has no variants", t.ID)
		}
		compiled, err := conditions.CompileAll(t.Conditions)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		if t.Category == "" {
			t.Category = models.CategoryFor(t.Type)
		}
		seen[t.ID] = true
		b.entries = append(b.entries, entry{tmpl: t, conds: compiled})
	}
	return b, nil
}

// NewDefault builds a bank from DefaultTemplates
func NewDefault(opts ...Option) *Bank {
	b, err := New(DefaultTemplates(), opts...)
	if err != nil {
		panic(fmt.Sprintf("built-in templates failed to compile: %v", err))
	}
	return b
}

// Templates returns all registered templates in registration order
func (b *Bank) Templates() []models.MessageTemplate {
	out := make([]models.MessageTemplate, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.tmpl
	}
	return out
}

// Threshold returns the eligibility threshold in use
func (b *Bank) Threshold() float64 { return b.threshold }

// GetEligible returns templates of typ (any type when typ is empty) whose
// weighted condition satisfaction meets the threshold
func (b *Bank) GetEligible(uc *models.UserContext, typ models.MessageType) []models.MessageTemplate {
	var out []models.MessageTemplate
	for _, e := range b.entries {
		if typ != "" && e.tmpl.Type != typ {
			continue
		}
		if conditions.Eligible(e.conds, uc, b.threshold) {
			out = append(out, e.tmpl)
		}
	}
	return out
}

// Best returns the eligible template that best fits uc, ranked by base weight,
// tag overlap, and condition satisfaction
func (b *Bank) Best(uc *models.UserContext, typ models.MessageType) (models.MessageTemplate, bool) {
	tags := uc.Tags()
	var (
		best      models.MessageTemplate
		bestScore float64
		found     bool
	)
	for _, e := range b.entries {
		if typ != "" && e.tmpl.Type != typ {
			continue
		}
		if !conditions.Eligible(e.conds, uc, b.threshold) {
			continue
		}
		score := e.tmpl.Weight + 0.3*conditions.WeightedFraction(e.conds, uc)
		for _, tag := range e.tmpl.Tags {
			if slices.Contains(tags, tag) {
				score += 0.1
			}
		}
		if !found || score > bestScore {
			best, bestScore, found = e.tmpl, score, true
		}
	}
	return best, found
}

// Fallback returns the highest-weight template of typ, or of any type when typ
// has none, ignoring conditions
func (b *Bank) Fallback(typ models.MessageType) (models.MessageTemplate, bool) {
	pick := func(match func(models.MessageTemplate) bool) (models.MessageTemplate, bool) {
		var (
			best  models.MessageTemplate
			found bool
		)
		for _, e := range b.entries {
			if !match(e.tmpl) {
				continue
			}
			if !found || e.tmpl.Weight > best.Weight {
				best, found = e.tmpl, true
			}
		}
		return best, found
	}
	if typ != "" {
		if t, ok := pick(func(t models.MessageTemplate) bool { return t.Type == typ }); ok {
			return t, true
		}
	}
	return pick(func(models.MessageTemplate) bool { return true })
}

// Instantiate renders a template into a candidate message. The chosen variant's
// text keeps its {tokens}; substitution happens when the message is finalized.
func (b *Bank) Instantiate(t models.MessageTemplate, uc *models.UserContext) *models.ContextualMessage {
	if len(t.Variants) == 0 {
		return nil
	}
	v := t.Variants[b.intN(len(t.Variants))]

	return &models.ContextualMessage{
		ID:       uuid.NewString(),
		Title:    v.Title,
		Body:     v.Message,
		Icon:     v.Icon,
		Type:     t.Type,
		Priority: PriorityFor(t.Type, uc),
		Category: t.Category,
		Tags:     slices.Clone(t.Tags),
		Metadata: models.MessageMetadata{
			CreatedAt:      b.now(),
			TargetAudience: []string{string(uc.SkillLevel)},
			Source:         models.SourceTemplate,
			TemplateID:     t.ID,
		},
		Tokens: Tokens(uc),
		Variations: []models.MessageVariation{{
			ID:     t.ID + "_default",
			Tone:   uc.PreferredTone,
			Length: LengthOf(v.Message),
			Title:  v.Title,
			Body:   v.Message,
		}},
		Conditions: slices.Clone(t.Conditions),
	}
}

// Shuffle permutes n elements with the bank's random source
func (b *Bank) Shuffle(n int, swap func(i, j int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rnd.Shuffle(n, swap)
}

func (b *Bank) intN(n int) int {
	if n <= 1 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rnd.IntN(n)
}
