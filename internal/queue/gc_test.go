package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockDLQPurger struct {
	purgeFunc func(ctx context.Context, retention time.Duration) (int, error)
	calls     atomic.Int32
}

func (m *mockDLQPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	m.calls.Add(1)
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, retention)
	}
	return 0, nil
}

func TestGarbageCollector_Collect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		purger     *mockDLQPurger
		wantErr    bool
		wantPurged bool
	}{
		{name: "nil purger"},
		{
			name: "purged",
			purger: &mockDLQPurger{purgeFunc: func(_ context.Context, retention time.Duration) (int, error) {
				if retention != 24*time.Hour {
					return 0, errors.New("unexpected retention")
				}
				return 3, nil
			}},
			wantPurged: true,
		},
		{
			name: "partial purge then failure",
			purger: &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) {
				return 2, errors.New("channel closed")
			}},
			wantErr:    true,
			wantPurged: true,
		},
		{name: "nothing to purge", purger: &mockDLQPurger{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			var purger DLQPurger
			if tt.purger != nil {
				purger = tt.purger
			}
			gc := NewGarbageCollector(purger, time.Minute, 24*time.Hour, zap.New(core))

			err := gc.collect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("collect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := logs.FilterMessage("dlq_gc_purged").Len() == 1; got != tt.wantPurged {
				t.Errorf("Expected dlq_gc_purged logged = %v", tt.wantPurged)
			}
		})
	}
}

func TestGarbageCollector_StartPurgesImmediately(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	purger := &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) {
		cancel()
		return 0, nil
	}}
	gc := NewGarbageCollector(purger, time.Hour, time.Hour, nil)

	if err := gc.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if purger.calls.Load() != 1 {
		t.Errorf("Expected one purge before the first tick, got %d", purger.calls.Load())
	}
}

func TestGarbageCollector_StartCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	purger := &mockDLQPurger{}
	if err := NewGarbageCollector(purger, time.Hour, time.Hour, nil).Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if purger.calls.Load() != 0 {
		t.Error("Expected no purge after cancellation")
	}
}
