package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/analytics"
	logpkg "github.com/benvon/smart-nudge/internal/logger"
)

const maxVariants = 10

// InsightsSource produces the analytics the insight routes expose
type InsightsSource interface {
	Insights(ctx context.Context, userID string) (*analytics.Report, error)
	RunABTest(ctx context.Context, testID string, variantIDs []string) ([]analytics.ABTestResult, error)
}

// InsightsHandler serves analytics reports and experiment results
type InsightsHandler struct {
	source InsightsSource
	logger *zap.Logger
}

// NewInsightsHandler creates a new insights handler
func NewInsightsHandler(source InsightsSource, logger *zap.Logger) *InsightsHandler {
	return &InsightsHandler{source: source, logger: logger}
}

// GetInsights handles GET /api/v1/insights. Without a resolvable user the
// report covers all users.
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUserID(r, r.URL.Query().Get("user_id"))
	if err != nil && !errors.Is(err, errMissingUser) {
		respondUserError(w, r, err)
		return
	}

	report, err := h.source.Insights(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed_to_build_insights",
			zap.Error(err),
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
		)
		respondJSONError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to build insights")
		return
	}
	respondJSON(w, r, http.StatusOK, report)
}

// GetExperiment handles GET /api/v1/experiments/{testID}?variants=a,b.
// The first variant is the control.
func (h *InsightsHandler) GetExperiment(w http.ResponseWriter, r *http.Request) {
	testID := strings.TrimSpace(mux.Vars(r)["testID"])
	var variants []string
	for _, v := range strings.Split(r.URL.Query().Get("variants"), ",") {
		if v = strings.TrimSpace(v); v != "" {
			variants = append(variants, v)
		}
	}
	if testID == "" || len(variants) == 0 {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "test id and a variants list are required")
		return
	}
	if len(variants) > maxVariants {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "too many variants")
		return
	}

	results, err := h.source.RunABTest(r.Context(), testID, variants)
	if err != nil {
		h.logger.Error("failed_to_run_ab_test",
			zap.Error(err),
			zap.String("test_id", logpkg.SanitizeString(testID, logpkg.MaxUserIDLength)),
		)
		respondJSONError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to evaluate experiment")
		return
	}
	respondJSON(w, r, http.StatusOK, results)
}
