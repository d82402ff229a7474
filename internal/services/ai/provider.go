package ai

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// TextGenerator produces a single text completion for a prompt
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// CompletionOptions tune one completion request
type CompletionOptions struct {
	// Temperature is left to the model default when nil
	Temperature  *float64
	MaxTokens    int
	SystemPrompt string
}

// Temperature returns a pointer to t for CompletionOptions
func Temperature(t float64) *float64 {
	return &t
}

// ProviderConfig carries the settings a provider factory needs
type ProviderConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	DebugMode bool
	Logger    *zap.Logger
}

// ProviderFactory creates a text generator from its configuration
type ProviderFactory func(cfg ProviderConfig) (TextGenerator, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// NewDefaultRegistry returns a registry with the openai and openai-compatible providers
func NewDefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterOpenAI(r)
	RegisterCompatible(r)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// Names lists the registered providers in sorted order
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, cfg ProviderConfig) (TextGenerator, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	gen, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
	}
	return gen, nil
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}

type deadlineGenerator struct {
	next    TextGenerator
	timeout time.Duration
}

func (g deadlineGenerator) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.next.Complete(ctx, prompt, opts)
}

// WithTimeout bounds every completion of gen by d. A non-positive d returns gen unchanged.
func WithTimeout(gen TextGenerator, d time.Duration) TextGenerator {
	if gen == nil || d <= 0 {
		return gen
	}
	return deadlineGenerator{next: gen, timeout: d}
}
