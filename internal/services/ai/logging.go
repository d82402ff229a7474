package ai

import (
	"context"
	"time"

	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/request"
	"go.uber.org/zap"
)

type contextKey int

const (
	userIDKey contextKey = iota
	messageTypeKey
)

// WithUserID annotates ctx with the user a completion is for
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithMessageType annotates ctx with the message type being generated
func WithMessageType(ctx context.Context, messageType string) context.Context {
	return context.WithValue(ctx, messageTypeKey, messageType)
}

func contextString(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// callFields identify one completion in the logs
func callFields(ctx context.Context, provider, model string) []zap.Field {
	return []zap.Field{
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("request_id", request.RequestID(ctx)),
		zap.String("user_id", logger.SanitizeUserID(contextString(ctx, userIDKey))),
		zap.String("message_type", contextString(ctx, messageTypeKey)),
	}
}

// debugCall runs call, logging the prompt, the outcome and the latency when debug is set
func debugCall(ctx context.Context, log *zap.Logger, debug bool, provider, model, prompt string, call func() (string, error)) (string, error) {
	if log == nil || !debug {
		return call()
	}

	fields := callFields(ctx, provider, model)
	log.Debug("llm_api_request", append(fields,
		zap.Int("prompt_length", len(prompt)),
		zap.String("prompt_preview", logger.SanitizeDebugContent(prompt)),
	)...)

	start := time.Now()
	out, err := call()
	fields = append(fields, zap.Duration("latency", time.Since(start)))
	if err != nil {
		log.Debug("llm_api_error", append(fields, zap.String("class", Classify(err)), zap.Error(err))...)
		return out, err
	}
	log.Debug("llm_api_response", append(fields,
		zap.Int("response_length", len(out)),
		zap.String("response_preview", logger.SanitizeDebugContent(out)),
	)...)
	return out, nil
}
