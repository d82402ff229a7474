package request

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/benvon/smart-nudge/internal/models"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain uses first hop", headers: map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.2"}, want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, want: "198.51.100.4"},
		{name: "forwarded wins over real ip", headers: map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.4"}, want: "203.0.113.7"},
		{name: "empty forwarded hop falls through", headers: map[string]string{"X-Forwarded-For": " ,10.0.0.2", "X-Real-IP": "198.51.100.4"}, want: "198.51.100.4"},
		{name: "remote host without port", remote: "192.0.2.10:54321", want: "192.0.2.10"},
		{name: "ipv6 remote host", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "remote without port kept", remote: "unix-socket", want: "unix-socket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/api/v1/insights", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUser(t *testing.T) {
	t.Parallel()

	u := &models.User{ID: "user-1", Email: "ada@example.com"}
	r := httptest.NewRequest("GET", "/", nil)
	if got := UserFromContext(r); got != nil {
		t.Errorf("Expected anonymous request, got %+v", got)
	}

	r = r.WithContext(WithUser(r.Context(), u))
	if got := UserFromContext(r); got != u {
		t.Errorf("UserFromContext() = %p, want %p", got, u)
	}

	wrongType := context.WithValue(context.Background(), userKey, "user-1")
	if got := User(wrongType); got != nil {
		t.Errorf("Expected nil for a non-user value, got %+v", got)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID() = %q, want empty", got)
	}
	ctx := WithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Errorf("RequestID() = %q, want req-42", got)
	}
	if got := User(ctx); got != nil {
		t.Errorf("Expected request ID not to be read as a user, got %+v", got)
	}
}
