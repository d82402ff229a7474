package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantPanic  bool
	}{
		{
			name: "passes through",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "string panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("template table corrupted")
			},
			wantStatus: http.StatusInternalServerError,
			wantPanic:  true,
		},
		{
			name: "runtime panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var weights map[string]float64
				weights["relevance"] = 1
			},
			wantStatus: http.StatusInternalServerError,
			wantPanic:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.ErrorLevel)
			h := RequestID(ErrorHandler(zap.New(core))(tt.handler))

			req := httptest.NewRequest("POST", "/api/v1/messages/generate", nil)
			req.Header.Set(RequestIDHeader, "req-7")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if !tt.wantPanic {
				if logs.Len() != 0 {
					t.Errorf("Expected no error logs, got %d", logs.Len())
				}
				return
			}

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected JSON content type, got %q", ct)
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success || body.Error != "Internal Server Error" || body.Timestamp == "" {
				t.Errorf("Unexpected error body: %+v", body)
			}
			if body.RequestID != "req-7" {
				t.Errorf("Expected request_id req-7, got %q", body.RequestID)
			}

			entries := logs.FilterMessage("panic_recovered").All()
			if len(entries) != 1 {
				t.Fatalf("Expected one panic_recovered entry, got %d", len(entries))
			}
			if got := entries[0].ContextMap()["request_id"]; got != "req-7" {
				t.Errorf("Expected logged request_id req-7, got %v", got)
			}
		})
	}
}

func TestErrorHandler_AbortHandlerRepanics(t *testing.T) {
	t.Parallel()

	h := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestWriteJSONError_NoRequestID(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeJSONError(w, httptest.NewRequest("GET", "/", nil), http.StatusBadRequest, "Bad Request", "nope")

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, ok := raw["request_id"]; ok {
		t.Error("Expected request_id to be omitted outside a correlated request")
	}
	if raw["message"] != "nope" {
		t.Errorf("Expected message 'nope', got %v", raw["message"])
	}
}
