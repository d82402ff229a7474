package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/bootstrap"
	"github.com/benvon/smart-nudge/internal/config"
	"github.com/benvon/smart-nudge/internal/contextbuilder"
	"github.com/benvon/smart-nudge/internal/handlers"
	"github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/middleware"
	"github.com/benvon/smart-nudge/internal/queue"
	"github.com/benvon/smart-nudge/internal/services/oidc"
	"github.com/benvon/smart-nudge/internal/storage"
	"github.com/benvon/smart-nudge/internal/telemetry"
)

const reloadInterval = time.Minute

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("ai_provider", cfg.AIProvider),
		zap.Bool("ai_enabled", cfg.AIEnabled()),
		zap.Bool("auth_enabled", cfg.AuthEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopTracing, tracingEnabled := telemetry.Start(ctx, cfg.OTELEnabled, telemetry.Options{
		ServiceName: telemetry.ServiceName,
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
	var queueHealth storage.HealthChecker
	var eventQueue queue.JobQueue
	if jobQueue != nil {
		queueHealth, eventQueue = jobQueue, jobQueue
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Info("rabbitmq_not_configured_applying_analytics_in_process")
	}

	text, err := bootstrap.NewTextGenerator(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("failed_to_create_ai_provider_ai_features_disabled", zap.Error(err))
		text = nil
	}

	svc, err := bootstrap.NewEngine(cfg, backend, text, eventQueue, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_assemble_engine", zap.Error(err))
	}

	limiterStore, err := middleware.NewLimiterStore(backend.Redis)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}

	messageHandler := handlers.NewMessageHandler(svc, zapLogger)
	insightsHandler := handlers.NewInsightsHandler(svc.Analytics(), zapLogger)
	adminHandler := handlers.NewAdminHandler(svc, zapLogger)
	healthChecker := handlers.NewHealthChecker(zapLogger).
		Register("store", backend.Health()).
		Register("redis", backend.RedisHealth()).
		Register("queue", queueHealth)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first
	if tracingEnabled {
		r.Use(otelmux.Middleware(telemetry.ServiceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(backend.Cors, cfg.FrontendURL, zapLogger, reloadInterval)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(cfg.MaxBodyBytes))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)

	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, backend.Ratelimit, cfg.RateLimit, zapLogger, reloadInterval)

	api := r.PathPrefix("/api/v1").Subrouter()
	if cfg.AuthEnabled() {
		verifier := oidc.NewVerifier(oidc.NewJWKSManager(nil, oidc.DefaultJWKSTTL), cfg.AuthIssuer, cfg.AuthJWKSURL, cfg.AuthAudience)
		api.Use(middleware.Auth(verifier, zapLogger))
	} else {
		zapLogger.Warn("auth_not_configured_user_ids_are_trusted")
	}
	api.Use(rateLimitReloader.Middleware())
	api.Use(middleware.ActivityTracking(contextbuilder.NewCounters(backend.Store, zapLogger), zapLogger))

	api.HandleFunc("/messages/generate", messageHandler.Generate).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}/interactions", messageHandler.RecordInteraction).Methods(http.MethodPost)
	api.HandleFunc("/insights", insightsHandler.GetInsights).Methods(http.MethodGet)
	api.HandleFunc("/experiments/{testID}", insightsHandler.GetExperiment).Methods(http.MethodGet)

	if cfg.AdminAPIKey != "" {
		admin := r.PathPrefix("/api/v1/admin").Subrouter()
		admin.Use(middleware.AdminKey(cfg.AdminAPIKey, zapLogger))
		admin.HandleFunc("/reset", adminHandler.Reset).Methods(http.MethodPost)
	}

	// Preflight requests are answered by the CORS middleware before reaching here
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)

	if jobQueue != nil {
		dlqGC := queue.NewGarbageCollector(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", cfg.DLQGCInterval),
			zap.Duration("retention", cfg.DLQRetention),
		)
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		zapLogger.Error("server_failed", zap.Error(err))
	}

	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), bootstrap.FlushTimeout)
	defer cancelFlush()
	if err := svc.Flush(flushCtx); err != nil {
		zapLogger.Warn("analytics_flush_incomplete", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
