package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestCompatibleProvider_Complete(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := newCompletionServer(t, http.StatusOK, chatCompletionResponse, &got)
	p := NewCompatibleProvider("", srv.URL+"/v1", "llama3", nil, false)

	out, err := p.Complete(context.Background(), "Write a nudge", CompletionOptions{Temperature: Temperature(0.7)})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "Keep going!" {
		t.Errorf("Complete() = %q", out)
	}
	if got.Path != "/v1/chat/completions" {
		t.Errorf("request path = %q", got.Path)
	}
	if got.Model != "llama3" || len(got.Messages) != 1 {
		t.Errorf("request = %+v", got)
	}
	if got.MaxTokens != DefaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", got.MaxTokens, DefaultMaxTokens)
	}
}

func TestCompatibleProvider_RateLimitAndQuota(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		rateLimit bool
		quota     bool
	}{
		{
			name:      "rate limited",
			body:      `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`,
			rateLimit: true,
		},
		{
			name:  "quota exhausted",
			body:  `{"error":{"message":"out of credit","type":"insufficient_quota","code":"insufficient_quota"}}`,
			quota: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newCompletionServer(t, http.StatusTooManyRequests, tt.body, nil)
			p := NewCompatibleProvider("key", srv.URL+"/v1", "m", nil, false)

			_, err := p.Complete(context.Background(), "hi", CompletionOptions{})
			if err == nil {
				t.Fatal("Expected an error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %T", err)
			}
			if IsRateLimitError(err) != tt.rateLimit {
				t.Errorf("IsRateLimitError() = %v, want %v", IsRateLimitError(err), tt.rateLimit)
			}
			if IsQuotaError(err) != tt.quota {
				t.Errorf("IsQuotaError() = %v, want %v", IsQuotaError(err), tt.quota)
			}
			if apiErr.RetryAfter <= 0 {
				t.Error("Expected a retry-after estimate")
			}
		})
	}
}
