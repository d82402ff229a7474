// Package request carries per-request values (the authenticated user and the
// correlation ID) between middleware and handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/smart-nudge/internal/models"
)

type contextKey int

const (
	userKey contextKey = iota
	requestIDKey
)

// ClientIP returns the originating client address. The first X-Forwarded-For
// hop wins over X-Real-IP, which wins over the connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithUser attaches the authenticated caller
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// User returns the authenticated caller, or nil when the request is anonymous
func User(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// UserFromContext returns the authenticated caller of r
func UserFromContext(r *http.Request) *models.User {
	return User(r.Context())
}

// WithRequestID attaches the correlation ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation ID, or "" outside a request
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
