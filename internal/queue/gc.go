package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const purgeTimeout = 2 * time.Minute

// GarbageCollector periodically purges expired jobs from the dead-letter queue
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector purges jobs older than retention every interval
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{purger: purger, interval: interval, retention: retention, logger: logger}
}

// Start purges once, then on every tick, until ctx is done
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := gc.collect(ctx); err != nil {
			gc.logger.Error("dlq_gc_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (gc *GarbageCollector) collect(ctx context.Context) error {
	if gc.purger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if n > 0 {
		gc.logger.Info("dlq_gc_purged", zap.Int("count", n), zap.Duration("retention", gc.retention))
	}
	if err != nil {
		return fmt.Errorf("purge dead-letter queue: %w", err)
	}
	return nil
}
