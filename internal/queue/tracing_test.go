package queue

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTracePropagation(t *testing.T) {
	t.Parallel()

	prop := propagation.TraceContext{}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0xf7, 0x65, 0x19},
		SpanID:     trace.SpanID{0xb7, 0xad, 0x6b},
		TraceFlags: trace.FlagsSampled,
	})

	headers := injectTrace(trace.ContextWithSpanContext(context.Background(), sc), prop)
	if _, ok := headers["traceparent"].(string); !ok {
		t.Fatalf("Expected a traceparent header, got %v", headers)
	}

	msg := &Message{headers: headers, propagator: prop}
	got := trace.SpanContextFromContext(msg.Context(context.Background()))
	if got.TraceID() != sc.TraceID() || got.SpanID() != sc.SpanID() || !got.IsRemote() {
		t.Errorf("Expected the published span context back, got %+v", got)
	}
}

type parentKey struct{}

func TestTracePropagation_NoSpan(t *testing.T) {
	t.Parallel()

	if headers := injectTrace(context.Background(), propagation.TraceContext{}); headers != nil {
		t.Errorf("Expected no headers without a span, got %v", headers)
	}

	ctx := context.WithValue(context.Background(), parentKey{}, "parent")
	msg := &Message{}
	if got := msg.Context(ctx); got != ctx {
		t.Error("Expected the parent context back without a propagator")
	}
	untraced := &Message{headers: amqp.Table{"x-death": []any{}}, propagator: propagation.TraceContext{}}
	if trace.SpanContextFromContext(untraced.Context(ctx)).IsValid() {
		t.Error("Expected no span context from headers without traceparent")
	}
}

func TestHeaderCarrier(t *testing.T) {
	t.Parallel()

	c := headerCarrier(amqp.Table{"count": int64(2)})
	c.Set("traceparent", "00-abc")
	if c.Get("traceparent") != "00-abc" || c.Get("count") != "" || c.Get("missing") != "" {
		t.Errorf("Unexpected carrier reads: %v", amqp.Table(c))
	}
	if len(c.Keys()) != 2 {
		t.Errorf("Expected 2 keys, got %v", c.Keys())
	}
}
