// Package workers applies queued jobs on behalf of the API servers.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/queue"
)

const tracerName = "github.com/benvon/smart-nudge/internal/workers"

const (
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 5 * time.Minute
)

// RetryDelay is the exponential backoff before retry n+1, capped at five minutes
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= 16 {
		return maxRetryDelay
	}
	return min(baseRetryDelay<<retryCount, maxRetryDelay)
}

// AnalyticsWorker applies analytics event jobs to the durable analytics log
type AnalyticsWorker struct {
	sink     analytics.Sink
	jobQueue queue.JobQueue
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAnalyticsWorker creates a worker applying events to sink. Failed jobs are
// parked on jobQueue for a backoff delay; with a nil jobQueue they are
// requeued immediately.
func NewAnalyticsWorker(sink analytics.Sink, jobQueue queue.JobQueue, logger *zap.Logger) *AnalyticsWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsWorker{sink: sink, jobQueue: jobQueue, logger: logger, tracer: otel.Tracer(tracerName)}
}

// Run processes messages until ctx is done or msgs is closed
func (w *AnalyticsWorker) Run(ctx context.Context, msgs <-chan *queue.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Info("message_channel_closed")
				return
			}
			if err := w.ProcessJob(ctx, msg); err != nil {
				job := msg.Job()
				w.logger.Error("job_processing_failed",
					zap.Error(err),
					zap.String("job_id", job.ID.String()),
					zap.Int("attempt", job.Attempt),
				)
			}
		}
	}
}

// ProcessJob applies one job and settles its delivery. The span joins the
// trace of the request that published the job.
func (w *AnalyticsWorker) ProcessJob(ctx context.Context, d queue.Delivery) (err error) {
	job := d.Job()
	ctx, span := w.tracer.Start(d.Context(ctx), "workers.ProcessJob",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("job.type", string(job.Type)),
			attribute.Int("job.attempt", job.Attempt),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "job failed")
		}
		span.End()
	}()

	if err := job.Validate(); err != nil {
		w.settle(d, job, false)
		return fmt.Errorf("invalid job: %w", err)
	}

	if err := w.sink.Apply(ctx, job.Event); err != nil {
		return w.handleJobError(ctx, d, job, err)
	}
	if err := d.Ack(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	w.logger.Debug("analytics_event_applied",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Event.Kind)),
		zap.String("user_id", logger.SanitizeUserID(job.UserID)),
	)
	return nil
}

// settle nacks d, logging rather than returning a failed nack
func (w *AnalyticsWorker) settle(d queue.Delivery, job *queue.Job, requeue bool) {
	if err := d.Nack(requeue); err != nil {
		w.logger.Warn("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

// handleJobError schedules the next attempt after a backoff delay while
// attempts remain and dead-letters the job afterwards
func (w *AnalyticsWorker) handleJobError(ctx context.Context, d queue.Delivery, job *queue.Job, err error) error {
	if errors.Is(err, context.Canceled) {
		// shutting down; another consumer takes it
		w.settle(d, job, true)
		return fmt.Errorf("job interrupted: %w", err)
	}

	if job.Exhausted() {
		w.logger.Warn("job_dead_lettered",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempts", job.Attempt),
			zap.String("error", logger.SanitizeError(err)))
		w.settle(d, job, false)
		return fmt.Errorf("job failed after %d attempts: %w", job.Attempt, err)
	}

	if w.jobQueue == nil {
		w.settle(d, job, true)
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	delay := RetryDelay(job.Attempt - 1)
	next := job.NextAttempt()
	if retryErr := w.jobQueue.Retry(ctx, next, delay); retryErr != nil {
		w.settle(d, job, true)
		return fmt.Errorf("job failed, scheduling retry failed: %w", errors.Join(err, retryErr))
	}
	if ackErr := d.Ack(); ackErr != nil {
		w.logger.Warn("job_ack_failed", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
	}

	w.logger.Info("job_rescheduled",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", next.Attempt),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Duration("delay", delay))
	return nil
}
