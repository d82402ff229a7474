package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/queue"
	"github.com/benvon/smart-nudge/internal/storage"
)

type mockMessage struct {
	job     *queue.Job
	remote  trace.SpanContext
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error { m.acked = true; return nil }

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) Job() *queue.Job { return m.job }

func (m *mockMessage) Context(parent context.Context) context.Context {
	if m.remote.IsValid() {
		return trace.ContextWithRemoteSpanContext(parent, m.remote)
	}
	return parent
}

type mockSink struct {
	applyFunc func(ctx context.Context, event *models.AnalyticsEvent) error
	applied   []*models.AnalyticsEvent
}

func (m *mockSink) Apply(ctx context.Context, event *models.AnalyticsEvent) error {
	m.applied = append(m.applied, event)
	if m.applyFunc != nil {
		return m.applyFunc(ctx, event)
	}
	return nil
}

type mockJobQueue struct {
	retryFunc func(ctx context.Context, job *queue.Job, delay time.Duration) error
	retried   []*queue.Job
	delays    []time.Duration
}

func (m *mockJobQueue) Publish(context.Context, *queue.Job) error {
	return errors.New("not implemented")
}

func (m *mockJobQueue) Retry(ctx context.Context, job *queue.Job, delay time.Duration) error {
	m.retried = append(m.retried, job)
	m.delays = append(m.delays, delay)
	if m.retryFunc != nil {
		return m.retryFunc(ctx, job, delay)
	}
	return nil
}

func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)

func eventJob() *queue.Job {
	return queue.NewEventJob(&models.AnalyticsEvent{
		ID:        "ev-1",
		Kind:      models.EventInteraction,
		Timestamp: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		UserID:    "u1",
		MessageID: "m1",
		Action:    models.ActionClicked,
	})
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{-1, 2 * time.Second},
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{3, 16 * time.Second},
		{8, maxRetryDelay},
		{40, maxRetryDelay},
	}
	for _, tt := range tests {
		if got := RetryDelay(tt.retry); got != tt.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestProcessJob_Success(t *testing.T) {
	t.Parallel()

	sink := &mockSink{}
	w := NewAnalyticsWorker(sink, &mockJobQueue{}, nil)
	msg := &mockMessage{job: eventJob()}

	if err := w.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Errorf("Expected ack only, got acked=%v nacked=%v", msg.acked, msg.nacked)
	}
	if len(sink.applied) != 1 || sink.applied[0].ID != "ev-1" {
		t.Errorf("Expected the event to be applied once, got %v", sink.applied)
	}
}

func TestProcessJob_InvalidJobDeadLettered(t *testing.T) {
	t.Parallel()

	sink := &mockSink{}
	w := NewAnalyticsWorker(sink, &mockJobQueue{}, nil)
	msg := &mockMessage{job: &queue.Job{Type: queue.JobTypeAnalyticsEvent}}

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for a job without an event")
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("Expected nack without requeue, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
	}
	if len(sink.applied) != 0 {
		t.Error("Expected nothing to be applied")
	}
}

func TestProcessJob_FailureReschedules(t *testing.T) {
	t.Parallel()

	sink := &mockSink{applyFunc: func(context.Context, *models.AnalyticsEvent) error { return errors.New("store unavailable") }}
	q := &mockJobQueue{}
	w := NewAnalyticsWorker(sink, q, nil)

	job := eventJob()
	job.Attempt = 2
	msg := &mockMessage{job: job}

	if err := w.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("Expected a rescheduled job to be handled, got %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Errorf("Expected the original message to be acked, got acked=%v nacked=%v", msg.acked, msg.nacked)
	}
	if len(q.retried) != 1 {
		t.Fatalf("Expected 1 retry, got %d", len(q.retried))
	}
	retry := q.retried[0]
	if retry.ID != job.ID || retry.Attempt != 3 {
		t.Errorf("Expected same job id on attempt 3, got %s / %d", retry.ID, retry.Attempt)
	}
	if q.delays[0] != 4*time.Second {
		t.Errorf("Expected a 4s backoff, got %v", q.delays[0])
	}
	if job.Attempt != 2 {
		t.Error("Expected the original job to be left untouched")
	}
}

func TestProcessJob_RetryFailureRequeues(t *testing.T) {
	t.Parallel()

	sink := &mockSink{applyFunc: func(context.Context, *models.AnalyticsEvent) error { return errors.New("store unavailable") }}
	q := &mockJobQueue{retryFunc: func(context.Context, *queue.Job, time.Duration) error { return errors.New("broker down") }}
	w := NewAnalyticsWorker(sink, q, nil)
	msg := &mockMessage{job: eventJob()}

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error when scheduling the retry fails")
	}
	if msg.acked || !msg.nacked || !msg.requeue {
		t.Errorf("Expected nack with requeue, got acked=%v nacked=%v requeue=%v", msg.acked, msg.nacked, msg.requeue)
	}
}

func TestProcessJob_ExhaustedDeadLetters(t *testing.T) {
	t.Parallel()

	sink := &mockSink{applyFunc: func(context.Context, *models.AnalyticsEvent) error { return errors.New("store unavailable") }}
	q := &mockJobQueue{}
	w := NewAnalyticsWorker(sink, q, nil)
	job := eventJob()
	job.Attempt = job.MaxAttempts
	msg := &mockMessage{job: job}

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error once attempts are exhausted")
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("Expected nack without requeue, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
	}
	if len(q.retried) != 0 {
		t.Errorf("Expected no retry, got %d", len(q.retried))
	}
}

func TestProcessJob_NoQueueRequeues(t *testing.T) {
	t.Parallel()

	sink := &mockSink{applyFunc: func(context.Context, *models.AnalyticsEvent) error { return errors.New("store unavailable") }}
	w := NewAnalyticsWorker(sink, nil, nil)
	msg := &mockMessage{job: eventJob()}

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error")
	}
	if !msg.nacked || !msg.requeue {
		t.Errorf("Expected nack with requeue, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
	}
}

func TestProcessJob_CanceledRequeues(t *testing.T) {
	t.Parallel()

	sink := &mockSink{applyFunc: func(ctx context.Context, _ *models.AnalyticsEvent) error { return context.Canceled }}
	q := &mockJobQueue{}
	w := NewAnalyticsWorker(sink, q, nil)
	msg := &mockMessage{job: eventJob()}

	if err := w.ProcessJob(context.Background(), msg); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if !msg.nacked || !msg.requeue || len(q.retried) != 0 {
		t.Errorf("Expected plain requeue, got nacked=%v requeue=%v retried=%d", msg.nacked, msg.requeue, len(q.retried))
	}
}

func TestProcessJob_AppliesToAnalytics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	a := analytics.New(store, nil, analytics.WithClock(func() time.Time {
		return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	}))
	w := NewAnalyticsWorker(a, nil, nil)

	job := eventJob()
	job.Event.Action = models.ActionViewed
	if err := w.ProcessJob(ctx, &mockMessage{job: job}); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	m, err := a.Metrics(ctx, "m1")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m == nil || m.Impressions != 1 {
		t.Errorf("Expected 1 impression for m1, got %+v", m)
	}
}

func TestProcessJob_JoinsPublisherTrace(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	publisher := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03},
		SpanID:     trace.SpanID{0x0a, 0x0b},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	failing := &mockSink{applyFunc: func(context.Context, *models.AnalyticsEvent) error { return errors.New("store unavailable") }}
	tests := []struct {
		name      string
		sink      *mockSink
		attempt   int
		wantError bool
	}{
		{name: "applied", sink: &mockSink{}, attempt: 1},
		{name: "exhausted", sink: failing, attempt: queue.DefaultMaxAttempts, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()
			w := NewAnalyticsWorker(tt.sink, &mockJobQueue{}, nil)
			w.tracer = tp.Tracer("test")

			job := eventJob()
			job.Attempt = tt.attempt
			_ = w.ProcessJob(context.Background(), &mockMessage{job: job, remote: publisher})

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("Expected one span, got %d", len(spans))
			}
			span := spans[0]
			if span.SpanContext.TraceID() != publisher.TraceID() || span.Parent.SpanID() != publisher.SpanID() {
				t.Error("Expected the job span to continue the publisher's trace")
			}
			if span.SpanKind != trace.SpanKindConsumer {
				t.Errorf("Expected a consumer span, got %v", span.SpanKind)
			}
			if failed := span.Status.Code == codes.Error; failed != tt.wantError {
				t.Errorf("Span error status = %v, want %v", failed, tt.wantError)
			}
		})
	}
}
