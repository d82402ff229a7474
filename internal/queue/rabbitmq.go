package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// RabbitMQQueue implements JobQueue on a single AMQP connection. Publishing
// shares one channel; each consumer and DLQ purge opens its own. Trace
// context travels in message headers.
type RabbitMQQueue struct {
	conn       *amqp.Connection
	topology   Topology
	propagator propagation.TextMapPropagator
	logger     *zap.Logger

	mu      sync.Mutex
	publish *amqp.Channel
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)

// NewRabbitMQQueue dials amqpURL and declares the topology for prefix
func NewRabbitMQQueue(amqpURL, prefix string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	topology := NewTopology(prefix)
	if err := topology.Declare(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &RabbitMQQueue{
		conn:       conn,
		topology:   topology,
		propagator: otel.GetTextMapPropagator(),
		logger:     logger,
		publish:    ch,
	}, nil
}

// Publish sends job to the work queue
func (q *RabbitMQQueue) Publish(ctx context.Context, job *Job) error {
	return q.send(ctx, keyEvent, job, 0)
}

// Retry parks job in the retry queue for delay before it returns to the work queue
func (q *RabbitMQQueue) Retry(ctx context.Context, job *Job, delay time.Duration) error {
	return q.send(ctx, keyRetry, job, delay)
}

func (q *RabbitMQQueue) send(ctx context.Context, key string, job *Job, ttl time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    time.Now().UTC(),
		Type:         string(job.Type),
		Headers:      injectTrace(ctx, q.propagator),
		Body:         body,
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.publish.PublishWithContext(ctx, q.topology.Exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.ID, err)
	}
	return nil
}

// Consume streams jobs from the work queue with manual acknowledgement.
// prefetch bounds the unacknowledged deliveries held by this consumer.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetch int) (<-chan *Message, <-chan error, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(q.topology.WorkQueue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgs := make(chan *Message, prefetch)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(msgs)
		defer func() { _ = ch.Close() }()

		for {
			var d amqp.Delivery
			var ok bool
			select {
			case <-ctx.Done():
				return
			case d, ok = <-deliveries:
			}
			if !ok {
				report(errs, errors.New("delivery channel closed"))
				return
			}

			job, err := decodeJob(d.Body)
			if err != nil {
				_ = d.Nack(false, false)
				report(errs, err)
				continue
			}
			select {
			case msgs <- &Message{job: job, tag: d.DeliveryTag, ch: ch, headers: d.Headers, propagator: q.propagator}:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			}
		}
	}()
	return msgs, errs, nil
}

func decodeJob(body []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

// report hands err to the consumer without blocking delivery
func report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// Close closes the publishing channel and the connection
func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return errors.Join(q.publish.Close(), q.conn.Close())
}

// HealthCheck verifies the connection and publishing channel are open
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publish.IsClosed() {
		return errors.New("rabbitmq channel is closed")
	}
	return nil
}

// PurgeOlderThan drops dead-lettered jobs that died more than retention ago
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open purge channel: %w", err)
	}
	// unacked younger messages return to the DLQ when the channel closes
	defer func() { _ = ch.Close() }()

	info, err := ch.QueueDeclarePassive(q.topology.DeadQueue, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	purged := 0
	for range info.Messages {
		if ctx.Err() != nil {
			break
		}
		d, ok, err := ch.Get(q.topology.DeadQueue, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			break
		}
		if !deadLetteredAt(d).Before(cutoff) {
			continue
		}
		if err := d.Ack(false); err != nil {
			return purged, fmt.Errorf("failed to ack purged job: %w", err)
		}
		purged++
	}
	return purged, nil
}

// deadLetteredAt reads the latest x-death time, falling back to the publish
// timestamp. Messages carrying neither count as arbitrarily old.
func deadLetteredAt(d amqp.Delivery) time.Time {
	if deaths, ok := d.Headers["x-death"].([]any); ok && len(deaths) > 0 {
		if death, ok := deaths[0].(amqp.Table); ok {
			if t, ok := death["time"].(time.Time); ok {
				return t
			}
		}
	}
	return d.Timestamp
}

// Message is a consumed job bound to the channel it arrived on
type Message struct {
	job        *Job
	tag        uint64
	ch         *amqp.Channel
	headers    amqp.Table
	propagator propagation.TextMapPropagator
}

var _ Delivery = (*Message)(nil)

// Job returns the decoded job
func (m *Message) Job() *Job { return m.job }

// Context returns parent joined to the trace the job was published under
func (m *Message) Context(parent context.Context) context.Context {
	if m.propagator == nil {
		return parent
	}
	return m.propagator.Extract(parent, headerCarrier(m.headers))
}

// Ack confirms the job was applied
func (m *Message) Ack() error { return m.ch.Ack(m.tag, false) }

// Nack rejects the job, dead-lettering it unless requeue is set
func (m *Message) Nack(requeue bool) error { return m.ch.Nack(m.tag, false, requeue) }
