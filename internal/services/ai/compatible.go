package ai

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultCompatibleBaseURL targets a local OpenAI-compatible server
const DefaultCompatibleBaseURL = "http://localhost:11434/v1"

// CompatibleProvider implements TextGenerator against any OpenAI-compatible
// chat completions endpoint (local model servers, gateways)
type CompatibleProvider struct {
	client    *openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

var _ TextGenerator = (*CompatibleProvider)(nil)

// NewCompatibleProvider creates a provider for baseURL. apiKey may be empty for
// servers that do not authenticate.
func NewCompatibleProvider(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *CompatibleProvider {
	if baseURL == "" {
		baseURL = DefaultCompatibleBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}

	return &CompatibleProvider{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

func (p *CompatibleProvider) buildRequest(prompt string, opts CompletionOptions) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: maxTokens(opts),
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	return req
}

// Complete sends prompt as a single-turn chat completion
func (p *CompatibleProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	req := p.buildRequest(prompt, opts)
	return debugCall(ctx, p.logger, p.debugMode, "openai-compatible", p.model, prompt, func() (string, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", wrapCompletionError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// RegisterCompatible registers the openai-compatible provider with the registry
func RegisterCompatible(registry *ProviderRegistry) {
	registry.Register("openai-compatible", func(cfg ProviderConfig) (TextGenerator, error) {
		if cfg.Model == "" {
			return nil, fmt.Errorf("openai-compatible model is required")
		}
		return NewCompatibleProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Logger, cfg.DebugMode), nil
	})
}
