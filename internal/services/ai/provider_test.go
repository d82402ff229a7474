package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProviderRegistry(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry()
	names := r.Names()
	if len(names) != 2 || names[0] != "openai" || names[1] != "openai-compatible" {
		t.Errorf("Names() = %v", names)
	}

	tests := []struct {
		name     string
		provider string
		cfg      ProviderConfig
		wantErr  bool
		notFound bool
	}{
		{name: "openai", provider: "openai", cfg: ProviderConfig{APIKey: "sk-test"}},
		{name: "openai without key", provider: "openai", wantErr: true},
		{name: "compatible", provider: "openai-compatible", cfg: ProviderConfig{Model: "llama3"}},
		{name: "compatible without model", provider: "openai-compatible", wantErr: true},
		{name: "unknown", provider: "nope", wantErr: true, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gen, err := r.GetProvider(tt.provider, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && gen == nil {
				t.Error("Expected a generator")
			}
			var nf *ErrProviderNotFound
			if errors.As(err, &nf) != tt.notFound {
				t.Errorf("ErrProviderNotFound match = %v, want %v", !tt.notFound, tt.notFound)
			}
		})
	}
}

type blockingGenerator struct{}

func (blockingGenerator) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	if WithTimeout(nil, time.Second) != nil {
		t.Error("Expected nil generator to stay nil")
	}
	var gen TextGenerator = blockingGenerator{}
	if WithTimeout(gen, 0) != gen {
		t.Error("Expected zero timeout to return the generator unchanged")
	}

	_, err := WithTimeout(gen, 10*time.Millisecond).Complete(context.Background(), "hi", CompletionOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
