// Package engine is the entry point of message personalization. It builds the
// user context, generates and ranks candidates, finalizes the winner for
// display and routes feedback to the interaction ledger and analytics.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/contextbuilder"
	"github.com/benvon/smart-nudge/internal/generator"
	"github.com/benvon/smart-nudge/internal/ledger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/msgcache"
	"github.com/benvon/smart-nudge/internal/scoring"
	"github.com/benvon/smart-nudge/internal/services/ai"
	"github.com/benvon/smart-nudge/internal/storage"
	"github.com/benvon/smart-nudge/internal/templates"
)

const tracerName = "github.com/benvon/smart-nudge/internal/engine"

// Components are the collaborators a Service orchestrates
type Components struct {
	Builder   *contextbuilder.Builder
	Generator *generator.Generator
	Scorer    *scoring.Engine
	Ledger    *ledger.Ledger
	Cache     *msgcache.Cache
	Analytics *analytics.Analytics
}

func (c Components) validate() error {
	switch {
	case c.Builder == nil:
		return errors.New("engine: context builder is required")
	case c.Generator == nil:
		return errors.New("engine: generator is required")
	case c.Scorer == nil:
		return errors.New("engine: scorer is required")
	case c.Ledger == nil:
		return errors.New("engine: ledger is required")
	case c.Cache == nil:
		return errors.New("engine: cache is required")
	case c.Analytics == nil:
		return errors.New("engine: analytics is required")
	}
	return nil
}

// Service generates personalized messages and records feedback on them.
// It is safe for concurrent use.
type Service struct {
	builder   *contextbuilder.Builder
	generator *generator.Generator
	scorer    *scoring.Engine
	ledger    *ledger.Ledger
	cache     *msgcache.Cache
	analytics *analytics.Analytics
	sink      analytics.Sink

	index  *issuedIndex
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time

	pending sync.WaitGroup
}

// Option configures a Service
type Option func(*Service)

// WithSink routes analytics events to sink instead of applying them in-process
func WithSink(sink analytics.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIndexCapacity bounds the number of issued messages remembered for
// interaction lookups
func WithIndexCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.index = newIssuedIndex(n)
		}
	}
}

// New creates a Service over c
func New(c Components, opts ...Option) (*Service, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		builder:   c.Builder,
		generator: c.Generator,
		scorer:    c.Scorer,
		ledger:    c.Ledger,
		cache:     c.Cache,
		analytics: c.Analytics,
		sink:      c.Analytics,
		index:     newIssuedIndex(defaultIndexCapacity),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Settings tune the components Assemble creates. Zero values take defaults.
type Settings struct {
	Weights           *scoring.Weights
	PriorityWeights   map[models.MessageType]templates.PriorityWeight
	Threshold         float64
	ABThresholds      *analytics.ABThresholds
	Holidays          []contextbuilder.Holiday
	Cache             msgcache.Config
	LedgerCapacity    int
	AnalyticsDailyCap int
	Planning          contextbuilder.PlanningSource
}

// Assemble wires a Service with the built-in templates over store. text may be
// nil, in which case only template candidates are produced.
func Assemble(store storage.Store, text ai.TextGenerator, st Settings, log *zap.Logger, opts ...Option) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	bankOpts := []templates.Option{templates.WithPriorityWeights(st.PriorityWeights)}
	if st.Threshold > 0 {
		bankOpts = append(bankOpts, templates.WithThreshold(st.Threshold))
	}
	bank := templates.NewDefault(bankOpts...)

	genOpts := []generator.Option{generator.WithLogger(log)}
	if text != nil {
		genOpts = append(genOpts, generator.WithTextGenerator(text))
	}

	var scoreOpts []scoring.Option
	if st.Weights != nil {
		scoreOpts = append(scoreOpts, scoring.WithWeights(*st.Weights))
	}

	analyticsOpts := []analytics.Option{analytics.WithDailyCap(st.AnalyticsDailyCap)}
	if st.ABThresholds != nil {
		analyticsOpts = append(analyticsOpts, analytics.WithThresholds(*st.ABThresholds))
	}

	l := ledger.New(store, st.LedgerCapacity, log)
	builderOpts := []contextbuilder.Option{
		contextbuilder.WithLogger(log),
		contextbuilder.WithHolidays(st.Holidays),
	}
	if st.Planning != nil {
		builderOpts = append(builderOpts, contextbuilder.WithPlanningSource(st.Planning))
	}

	return New(Components{
		Builder:   contextbuilder.New(store, l, builderOpts...),
		Generator: generator.New(bank, genOpts...),
		Scorer:    scoring.New(scoreOpts...),
		Ledger:    l,
		Cache:     msgcache.New(st.Cache),
		Analytics: analytics.New(store, log, analyticsOpts...),
	}, append([]Option{WithLogger(log)}, opts...)...)
}

// Analytics exposes the analytics backing the service
func (s *Service) Analytics() *analytics.Analytics { return s.analytics }

// Ledger exposes the interaction ledger backing the service
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// CacheStats reports message cache statistics
func (s *Service) CacheStats() msgcache.Stats { return s.cache.Stats() }

// Reset clears the message cache, ledger buffers, analytics caches and the
// issued-message index. Persisted data is untouched.
func (s *Service) Reset() {
	s.cache.Reset()
	s.ledger.Reset()
	s.analytics.Reset()
	s.index.reset()
	s.logger.Info("engine_reset")
}

// Flush waits for pending analytics tasks or until ctx is done
func (s *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// track hands event to the sink without blocking the caller
func (s *Service) track(ctx context.Context, event *models.AnalyticsEvent) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.sink.Apply(ctx, event); err != nil {
			s.logger.Warn("analytics_tracking_failed",
				zap.String("kind", string(event.Kind)),
				zap.String("message_id", event.MessageID),
				zap.Error(err))
		}
	}()
}
