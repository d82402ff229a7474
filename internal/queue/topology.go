package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultPrefix namespaces the exchange and queues
const DefaultPrefix = "nudge"

const (
	keyEvent = "event"
	keyRetry = "retry"
	keyDead  = "dead"
)

// Topology names the broker objects the analytics pipeline uses. Retries park
// in a queue without consumers until their per-message TTL expires, then
// dead-letter back onto the work queue. Rejected jobs land in the DLQ.
type Topology struct {
	Exchange   string
	WorkQueue  string
	RetryQueue string
	DeadQueue  string
}

// NewTopology derives object names from prefix
func NewTopology(prefix string) Topology {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topology{
		Exchange:   prefix + ".events",
		WorkQueue:  prefix + ".analytics",
		RetryQueue: prefix + ".analytics.retry",
		DeadQueue:  prefix + ".analytics.dlq",
	}
}

type queueDecl struct {
	name string
	key  string
	args amqp.Table
}

func (t Topology) queues() []queueDecl {
	return []queueDecl{
		{name: t.WorkQueue, key: keyEvent, args: amqp.Table{
			"x-dead-letter-exchange":    t.Exchange,
			"x-dead-letter-routing-key": keyDead,
		}},
		{name: t.RetryQueue, key: keyRetry, args: amqp.Table{
			"x-dead-letter-exchange":    t.Exchange,
			"x-dead-letter-routing-key": keyEvent,
		}},
		{name: t.DeadQueue, key: keyDead},
	}
}

// Declare creates the exchange, queues and bindings. It is idempotent.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", t.Exchange, err)
	}
	for _, q := range t.queues() {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.name, err)
		}
		if err := ch.QueueBind(q.name, q.key, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", q.name, err)
		}
	}
	return nil
}
