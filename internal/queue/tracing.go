package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier lets a TextMapPropagator read and write AMQP headers
type headerCarrier amqp.Table

var _ propagation.TextMapCarrier = headerCarrier(nil)

func (c headerCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c headerCarrier) Set(key, value string) { c[key] = value }

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// injectTrace returns headers carrying the span context of ctx, or nil when
// there is nothing to propagate
func injectTrace(ctx context.Context, p propagation.TextMapPropagator) amqp.Table {
	headers := amqp.Table{}
	p.Inject(ctx, headerCarrier(headers))
	if len(headers) == 0 {
		return nil
	}
	return headers
}
