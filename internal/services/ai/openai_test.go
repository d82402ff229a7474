package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/smart-nudge/internal/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const chatCompletionResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [
    {"index": 0, "message": {"role": "assistant", "content": "Keep going!"}, "finish_reason": "stop"}
  ],
  "usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
}`

type capturedRequest struct {
	Path        string
	Model       string           `json:"model"`
	Messages    []map[string]any `json:"messages"`
	Temperature *float64         `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

func newCompletionServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Path = r.URL.Path
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := newCompletionServer(t, http.StatusOK, chatCompletionResponse, &got)
	p := NewOpenAIProviderWithLogger("sk-test", srv.URL+"/v1", "test-model", nil, false)

	out, err := p.Complete(context.Background(), "Write a nudge", CompletionOptions{
		Temperature:  Temperature(0.9),
		MaxTokens:    120,
		SystemPrompt: "You write short messages.",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "Keep going!" {
		t.Errorf("Complete() = %q, want %q", out, "Keep going!")
	}

	if !strings.HasSuffix(got.Path, "/chat/completions") {
		t.Errorf("request path = %q", got.Path)
	}
	if got.Model != "test-model" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0]["role"] != "system" || got.Messages[1]["role"] != "user" {
		t.Errorf("messages = %v", got.Messages)
	}
	if got.Temperature == nil || *got.Temperature != 0.9 {
		t.Errorf("temperature = %v, want 0.9", got.Temperature)
	}
	if got.MaxTokens != 120 {
		t.Errorf("max_tokens = %d, want 120", got.MaxTokens)
	}
}

func TestOpenAIProvider_BuildCompletionParams(t *testing.T) {
	t.Parallel()

	p := NewOpenAIProvider("sk-test", "")
	if p.model != DefaultOpenAIModel {
		t.Errorf("model = %q, want default", p.model)
	}

	req := p.buildCompletionParams("hello", CompletionOptions{})
	if len(req.Messages) != 1 {
		t.Errorf("Expected only the user message without a system prompt, got %d", len(req.Messages))
	}
	if req.Temperature.Valid() {
		t.Error("Expected temperature to be omitted when not requested")
	}
	if req.MaxTokens.Value != DefaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", req.MaxTokens.Value, DefaultMaxTokens)
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	t.Parallel()

	srv := newCompletionServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil)
	p := NewOpenAIProviderWithLogger("sk-test", srv.URL+"/v1", "m", nil, false)

	if _, err := p.Complete(context.Background(), "hi", CompletionOptions{}); !errors.Is(err, ErrNoChoices) {
		t.Errorf("Complete() error = %v, want %v", err, ErrNoChoices)
	}
}

func TestOpenAIProvider_RateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAIProviderWithLogger("sk-test", srv.URL+"/v1", "m", nil, false)
	_, err := p.Complete(context.Background(), "hi", CompletionOptions{})
	if !IsRateLimitError(err) {
		t.Fatalf("Complete() error = %v, want rate limit", err)
	}
	if apiErr := ExtractAPIError(err); apiErr == nil || apiErr.RetryAfter != 7*time.Second {
		t.Errorf("ExtractAPIError() = %+v, want RetryAfter 7s", apiErr)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d calls, want 1", n)
	}
}

func TestOpenAIProvider_DebugLogging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	srv := newCompletionServer(t, http.StatusOK, chatCompletionResponse, nil)
	p := NewOpenAIProviderWithLogger("sk-test", srv.URL+"/v1", "test-model", zap.New(core), true)

	ctx := WithMessageType(WithUserID(request.WithRequestID(context.Background(), "req-1"), "user-1"), "encouragement")
	if _, err := p.Complete(ctx, "Write a nudge", CompletionOptions{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if n := logs.FilterMessage("llm_api_request").Len(); n != 1 {
		t.Fatalf("llm_api_request entries = %d, want 1", n)
	}
	resp := logs.FilterMessage("llm_api_response").All()
	if len(resp) != 1 {
		t.Fatalf("llm_api_response entries = %d, want 1", len(resp))
	}
	fields := resp[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["message_type"] != "encouragement" || fields["provider"] != "openai" {
		t.Errorf("response fields = %v", fields)
	}
	if fields["response_length"] != int64(len("Keep going!")) {
		t.Errorf("response_length = %v", fields["response_length"])
	}
}
