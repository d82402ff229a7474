// Package queue moves analytics events from API servers to the worker over
// RabbitMQ, with delayed retries and a dead-letter queue.
package queue

import (
	"context"
	"time"
)

// Delivery is one consumed job awaiting settlement
type Delivery interface {
	Job() *Job
	// Context joins parent to the trace the job was published under
	Context(parent context.Context) context.Context
	Ack() error
	// Nack without requeue dead-letters the job
	Nack(requeue bool) error
}

// JobQueue publishes and consumes jobs
type JobQueue interface {
	Publish(ctx context.Context, job *Job) error
	// Retry republishes job so that it is redelivered after delay
	Retry(ctx context.Context, job *Job, delay time.Duration) error
	// Consume delivers jobs until ctx is done. Undecodable messages are
	// dead-lettered and reported on the error channel.
	Consume(ctx context.Context, prefetch int) (<-chan *Message, <-chan error, error)
	Close() error
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered jobs older than a retention period
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
