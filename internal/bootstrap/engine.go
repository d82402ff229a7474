package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/config"
	"github.com/benvon/smart-nudge/internal/engine"
	"github.com/benvon/smart-nudge/internal/queue"
	"github.com/benvon/smart-nudge/internal/services/ai"
)

const queueConnectAttempts = 10

// NewTextGenerator builds the configured AI provider. It returns nil, nil
// when AI is not configured.
func NewTextGenerator(cfg *config.Config, log *zap.Logger, debugMode bool) (ai.TextGenerator, error) {
	if !cfg.AIEnabled() {
		return nil, nil
	}
	gen, err := ai.NewDefaultRegistry().GetProvider(cfg.AIProvider, ai.ProviderConfig{
		APIKey:    cfg.OpenAIKey,
		Model:     cfg.AIModel,
		BaseURL:   cfg.AIBaseURL,
		DebugMode: debugMode,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}
	return ai.WithTimeout(gen, cfg.AITimeout), nil
}

// ConnectQueue connects to RabbitMQ, retrying while the broker starts up.
// It returns nil, nil when RABBITMQ_URL is not set.
func ConnectQueue(ctx context.Context, cfg *config.Config, log *zap.Logger) (*queue.RabbitMQQueue, error) {
	if cfg.RabbitMQURL == "" {
		return nil, nil
	}
	q, err := Retry(ctx, log, "rabbitmq", queueConnectAttempts, func() (*queue.RabbitMQQueue, error) {
		return queue.NewRabbitMQQueue(cfg.RabbitMQURL, cfg.RabbitMQPrefix, log)
	})
	if err != nil {
		return nil, err
	}
	log.Info("connected_to_rabbitmq")
	return q, nil
}

// NewEngine loads the tuning file and assembles the engine over backend.
// Analytics events go to jobQueue when it is non-nil and are applied in
// process otherwise.
func NewEngine(cfg *config.Config, backend *Backend, text ai.TextGenerator, jobQueue queue.JobQueue, log *zap.Logger, opts ...engine.Option) (*engine.Service, error) {
	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, err
	}
	if jobQueue != nil {
		opts = append(opts, engine.WithSink(queue.NewEventSink(jobQueue)))
	}
	return engine.Assemble(backend.Store, text, tuning.Settings(cfg), log, opts...)
}

// FlushTimeout bounds how long shutdown waits for in-flight analytics
const FlushTimeout = 10 * time.Second
