package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/storage"
)

const healthCheckTimeout = 5 * time.Second

// HealthChecker handles health check requests
type HealthChecker struct {
	names  []string
	checks map[string]storage.HealthChecker
	logger *zap.Logger
}

// NewHealthChecker creates a new health checker with no dependency checks
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{checks: make(map[string]storage.HealthChecker), logger: logger}
}

// Register adds a dependency probed in extended mode. Nil checkers are reported as not configured.
func (h *HealthChecker) Register(name string, c storage.HealthChecker) *HealthChecker {
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
	}
	h.checks[name] = c
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. ?mode=extended probes every
// registered dependency and answers 503 when one fails.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.names))
		for _, name := range h.names {
			c := h.checks[name]
			if c == nil {
				response.Checks[name] = "not configured"
				continue
			}
			if err := probe(r.Context(), c); err != nil {
				response.Status = "unhealthy"
				response.Checks[name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				h.logger.Warn("health_check_failed", zap.String("dependency", name), zap.Error(err))
				continue
			}
			response.Checks[name] = "healthy"
		}
		if response.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed_to_encode_health_response", zap.Error(err))
	}
}

func probe(ctx context.Context, c storage.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.HealthCheck(ctx)
}
