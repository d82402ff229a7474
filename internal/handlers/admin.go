package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/msgcache"
	"github.com/benvon/smart-nudge/internal/request"
)

// Resetter clears the engine's in-memory state
type Resetter interface {
	Reset()
	CacheStats() msgcache.Stats
}

// AdminHandler serves operator routes
type AdminHandler struct {
	engine Resetter
	logger *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(e Resetter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{engine: e, logger: logger}
}

// Reset handles POST /api/v1/admin/reset. It responds with the cache
// statistics observed just before the reset.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	before := h.engine.CacheStats()
	h.engine.Reset()
	h.logger.Info("engine_reset_requested",
		zap.String("ip", request.ClientIP(r)),
		zap.Int("cached_entries", before.Entries),
	)
	respondJSON(w, r, http.StatusOK, map[string]any{"reset": true, "cache_before": before})
}
