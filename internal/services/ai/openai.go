package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds a single HTTP exchange with a provider
	DefaultTimeout = 30 * time.Second
	// DefaultMaxTokens caps a completion when the caller sets no limit
	DefaultMaxTokens = 300
)

// OpenAIProvider generates text with the official OpenAI client
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

var _ TextGenerator = (*OpenAIProvider)(nil)

// NewOpenAIProvider targets the public OpenAI API
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger targets baseURL and logs every call at debug level
// when debugMode is set. Empty model and baseURL select the defaults.
func NewOpenAIProviderWithLogger(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	// The generator falls back to templates on failure, so a throttled call
	// is surfaced at once instead of being retried by the client.
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

func (p *OpenAIProvider) buildCompletionParams(prompt string, opts CompletionOptions) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens(opts))),
	}
	// some models only accept their default temperature
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	return params
}

// Complete sends prompt as a single-turn chat completion and returns the reply text
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	params := p.buildCompletionParams(prompt, opts)
	return debugCall(ctx, p.logger, p.debugMode, "openai", p.model, prompt, func() (string, error) {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", wrapCompletionError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}
		return resp.Choices[0].Message.Content, nil
	})
}

func maxTokens(opts CompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return DefaultMaxTokens
}

func wrapCompletionError(err error) error {
	if apiErr := ExtractAPIError(err); apiErr != nil {
		return fmt.Errorf("failed to complete prompt: %w", apiErr)
	}
	return fmt.Errorf("failed to complete prompt: %w", err)
}

// RegisterOpenAI registers the "openai" provider, which requires an API key
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(cfg ProviderConfig) (TextGenerator, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}
		return NewOpenAIProviderWithLogger(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Logger, cfg.DebugMode), nil
	})
}
