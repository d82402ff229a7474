package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/request"
)

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(*http.Request) *http.Request
		validate func(*testing.T, *models.User)
	}{
		{
			name: "user in context",
			setup: func(r *http.Request) *http.Request {
				user := &models.User{ID: "user-1", Email: "test@example.com"}
				return r.WithContext(request.WithUser(r.Context(), user))
			},
			validate: func(t *testing.T, user *models.User) {
				if user == nil {
					t.Fatal("Expected user to be present")
				}
				if user.Email != "test@example.com" {
					t.Errorf("Expected email 'test@example.com', got '%s'", user.Email)
				}
			},
		},
		{
			name: "no user in context",
			setup: func(r *http.Request) *http.Request {
				return r
			},
			validate: func(t *testing.T, user *models.User) {
				if user != nil {
					t.Errorf("Expected user to be nil, got %+v", user)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/test", nil)
			req = tt.setup(req)

			if tt.validate != nil {
				tt.validate(t, UserFromContext(req))
			}
		})
	}
}

type mockAuthenticator struct {
	authenticateFunc func(ctx context.Context, token string) (*models.User, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	return m.authenticateFunc(ctx, token)
}

func TestAuth(t *testing.T) {
	t.Parallel()

	authn := &mockAuthenticator{
		authenticateFunc: func(ctx context.Context, token string) (*models.User, error) {
			if token != "good-token" {
				return nil, errors.New("bad signature")
			}
			return &models.User{ID: "user-1"}, nil
		},
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad-token", wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good-token", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "lowercase scheme", header: "bearer good-token", wantStatus: http.StatusOK, wantUser: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := Auth(authn, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if u := UserFromContext(r); u != nil {
					seen = u.ID
				}
			}))

			req := httptest.NewRequest("GET", "/api/v1/insights", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if seen != tt.wantUser {
				t.Errorf("Expected user '%s', got '%s'", tt.wantUser, seen)
			}
		})
	}
}

type mockActivityRecorder struct {
	visits   []string
	features []string
	err      error
}

func (m *mockActivityRecorder) RecordVisit(ctx context.Context, userID string) error {
	m.visits = append(m.visits, userID)
	return m.err
}

func (m *mockActivityRecorder) RecordFeatureUse(ctx context.Context, userID, feature string) error {
	m.features = append(m.features, feature)
	return m.err
}

func TestActivityTracking(t *testing.T) {
	t.Parallel()

	t.Run("anonymous requests are not tracked", func(t *testing.T) {
		t.Parallel()
		rec := &mockActivityRecorder{}
		handler := ActivityTracking(rec, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
		if len(rec.visits) != 0 {
			t.Errorf("Expected no visits, got %v", rec.visits)
		}
	})

	t.Run("authenticated request with feature", func(t *testing.T) {
		t.Parallel()
		rec := &mockActivityRecorder{}
		handler := ActivityTracking(rec, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(FeatureHeader, "collaboration")
		req = req.WithContext(request.WithUser(req.Context(), &models.User{ID: "user-1"}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if len(rec.visits) != 1 || rec.visits[0] != "user-1" {
			t.Errorf("Expected one visit for user-1, got %v", rec.visits)
		}
		if len(rec.features) != 1 || rec.features[0] != "collaboration" {
			t.Errorf("Expected feature 'collaboration', got %v", rec.features)
		}
	})

	t.Run("recorder errors do not fail the request", func(t *testing.T) {
		t.Parallel()
		rec := &mockActivityRecorder{err: errors.New("store down")}
		called := false
		handler := ActivityTracking(rec, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(request.WithUser(req.Context(), &models.User{ID: "user-1"}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if !called || w.Code != http.StatusOK {
			t.Errorf("Expected request to pass through, called=%v status=%d", called, w.Code)
		}
	})
}

func TestAdminKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		header string
		want   int
	}{
		{name: "matching key", key: "s3cret", header: "s3cret", want: http.StatusOK},
		{name: "wrong key", key: "s3cret", header: "guess", want: http.StatusForbidden},
		{name: "missing header", key: "s3cret", want: http.StatusForbidden},
		{name: "unconfigured key", key: "", header: "", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("POST", "/api/v1/admin/reset", nil)
			if tt.header != "" {
				req.Header.Set(AdminKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()
			AdminKey(tt.key, zap.NewNop())(okHandler()).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
