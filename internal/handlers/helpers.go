// Package handlers implements the HTTP surface of the nudge engine.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benvon/smart-nudge/internal/request"
	"github.com/benvon/smart-nudge/internal/validation"
)

const maxErrorMessageLength = 200

var (
	errEmptyBody = errors.New("request body is required")
	// errForbiddenUser is returned when a request names a user other than the caller
	errForbiddenUser = errors.New("user does not match the authenticated caller")
	errMissingUser   = errors.New("user_id is required")
)

// envelope wraps every handler response
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	body.RequestID = request.RequestID(r.Context())
	payload, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, envelope{Success: true, Data: data})
}

// respondJSONError reports a failure; message is truncated for the client
func respondJSONError(w http.ResponseWriter, r *http.Request, status int, errorType, message string) {
	writeEnvelope(w, r, status, envelope{Error: errorType, Message: sanitizeErrorMessage(message)})
}

// sanitizeErrorMessage bounds messages sent to clients
func sanitizeErrorMessage(message string) string {
	if utf8.RuneCountInString(message) <= maxErrorMessageLength {
		return message
	}
	return string([]rune(message)[:maxErrorMessageLength]) + "..."
}

// respondValidationError reports validator failures as a 400
func respondValidationError(w http.ResponseWriter, r *http.Request, err error) {
	respondJSONError(w, r, http.StatusBadRequest, "Validation Error", strings.Join(validation.FieldErrors(err), "; "))
}

// decodeJSON decodes a single JSON document into dst and validates it
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// resolveUserID picks the user a request acts on. An authenticated caller
// may only act on itself; without authentication the supplied id is trusted.
func resolveUserID(r *http.Request, supplied string) (string, error) {
	supplied = strings.TrimSpace(supplied)
	if caller := request.UserFromContext(r); caller != nil {
		if supplied != "" && supplied != caller.ID {
			return "", errForbiddenUser
		}
		return caller.ID, nil
	}
	if supplied == "" {
		return "", errMissingUser
	}
	return supplied, nil
}

// respondUserError maps a resolveUserID error to its status
func respondUserError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errForbiddenUser) {
		respondJSONError(w, r, http.StatusForbidden, "Forbidden", err.Error())
		return
	}
	respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
}
