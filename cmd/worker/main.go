package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/bootstrap"
	"github.com/benvon/smart-nudge/internal/config"
	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/queue"
	"github.com/benvon/smart-nudge/internal/telemetry"
	"github.com/benvon/smart-nudge/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("worker_requires_rabbitmq_url")
	}

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopTracing, _ := telemetry.Start(ctx, cfg.OTELEnabled, telemetry.Options{
		ServiceName: telemetry.WorkerServiceName,
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
	}, zapLogger)
	defer stopTracing()

	backend, err := bootstrap.OpenBackend(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_store", zap.Error(err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zapLogger.Warn("failed_to_close_store", zap.Error(err))
		}
	}()

	jobQueue, err := bootstrap.ConnectQueue(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	sink := analytics.New(backend.Store, zapLogger, analytics.WithDailyCap(cfg.AnalyticsDailyCap))
	worker := workers.NewAnalyticsWorker(sink, jobQueue, zapLogger)

	msgs, errs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		worker.Run(ctx, msgs)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()
	go func() {
		defer wg.Done()
		gc := queue.NewGarbageCollector(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
		if err := gc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	zapLogger.Info("worker_started")
	<-ctx.Done()
	zapLogger.Info("worker_shutting_down")
	wg.Wait()
	zapLogger.Info("worker_stopped")
}
