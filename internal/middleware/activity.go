package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	logpkg "github.com/benvon/smart-nudge/internal/logger"
)

// FeatureHeader lets the host application name the product feature a call belongs to
const FeatureHeader = "X-Nudge-Feature"

const maxFeatureNameLength = 64

// ActivityRecorder keeps the per-user visit and feature counters
type ActivityRecorder interface {
	RecordVisit(ctx context.Context, userID string) error
	RecordFeatureUse(ctx context.Context, userID, feature string) error
}

// ActivityTracking records a visit for every authenticated request and a
// feature use when the request carries FeatureHeader. Counter failures are
// logged and never fail the request.
func ActivityTracking(recorder ActivityRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := UserFromContext(r); user != nil {
				ctx := r.Context()
				if err := recorder.RecordVisit(ctx, user.ID); err != nil {
					logger.Warn("failed_to_record_visit",
						zap.Error(err),
						zap.String("user_id", logpkg.SanitizeUserID(user.ID)),
					)
				}
				if feature := r.Header.Get(FeatureHeader); feature != "" {
					feature = logpkg.SanitizeString(feature, maxFeatureNameLength)
					if err := recorder.RecordFeatureUse(ctx, user.ID, feature); err != nil {
						logger.Warn("failed_to_record_feature_use",
							zap.Error(err),
							zap.String("feature", feature),
						)
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
