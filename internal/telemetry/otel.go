// Package telemetry wires OpenTelemetry tracing for the nudge binaries.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// ServiceName is the resource name of the API server
const ServiceName = "smart-nudge"

// WorkerServiceName is the resource name of the analytics worker
const WorkerServiceName = ServiceName + "-worker"

const shutdownTimeout = 5 * time.Second

// Options configure the exporter
type Options struct {
	ServiceName string
	// Endpoint is host:port of the OTLP/HTTP collector
	Endpoint string
	Insecure bool
	// SampleRatio in (0, 1) samples that fraction of root spans; anything else samples all
	SampleRatio float64
}

func (o Options) sampler() sdktrace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
}

// Propagator carries W3C trace context and baggage across HTTP and AMQP hops
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// InitTracer builds an OTLP/HTTP tracer provider and installs it globally
func InitTracer(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	name := opts.ServiceName
	if name == "" {
		name = ServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(opts.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(Propagator())
	return tp, nil
}

// Start enables tracing when enabled is set and an endpoint is configured.
// Failures are logged and leave tracing off. The returned stop func flushes
// pending spans and is never nil.
func Start(ctx context.Context, enabled bool, opts Options, log *zap.Logger) (stop func(), ok bool) {
	stop = func() {}
	if !enabled {
		return stop, false
	}
	if opts.Endpoint == "" {
		log.Warn("otel_enabled_but_endpoint_not_configured")
		return stop, false
	}
	tp, err := InitTracer(ctx, opts)
	if err != nil {
		log.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return stop, false
	}
	log.Info("otel_tracer_initialized", zap.String("endpoint", opts.Endpoint), zap.String("service", opts.ServiceName))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := Shutdown(ctx, tp); err != nil {
			log.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}, true
}

// Shutdown flushes and stops the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
