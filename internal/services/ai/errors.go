package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	compat "github.com/sashabaranov/go-openai"
)

var (
	// ErrRateLimited matches throttled completions
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded matches completions refused for lack of credit
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNoChoices is returned when a provider answers without any completion
	ErrNoChoices = errors.New("no choices in response")
)

const (
	codeInsufficientQuota = "insufficient_quota"

	rateLimitBackoff = time.Minute
	quotaBackoff     = time.Hour
)

// APIError is a 429 from a provider, normalized across client libraries
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
	// RetryAfter is the provider's Retry-After hint, or a default backoff when absent
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// Quota reports whether the account ran out of credit rather than being throttled
func (e *APIError) Quota() bool {
	return e.Code == codeInsufficientQuota || e.Type == codeInsufficientQuota
}

// Is lets errors.Is match ErrRateLimited and ErrQuotaExceeded
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.Quota()
	case ErrRateLimited:
		return !e.Quota()
	}
	return false
}

// IsRateLimitError reports whether err is a throttled completion
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsQuotaError reports whether err is a completion refused for lack of credit
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// ExtractAPIError normalizes a 429 from either client library. Other errors yield nil.
func ExtractAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		if oaiErr.StatusCode != http.StatusTooManyRequests {
			return nil
		}
		apiErr = &APIError{
			StatusCode: oaiErr.StatusCode,
			Code:       oaiErr.Code,
			Type:       oaiErr.Type,
			Message:    oaiErr.Message,
		}
		if oaiErr.Response != nil {
			apiErr.RetryAfter = parseRetryAfter(oaiErr.Response.Header, time.Now())
		}
		return withDefaultBackoff(apiErr)
	}

	var compatErr *compat.APIError
	if errors.As(err, &compatErr) {
		if compatErr.HTTPStatusCode != http.StatusTooManyRequests {
			return nil
		}
		code, _ := compatErr.Code.(string)
		return withDefaultBackoff(&APIError{
			StatusCode: compatErr.HTTPStatusCode,
			Code:       code,
			Type:       compatErr.Type,
			Message:    compatErr.Message,
		})
	}
	return nil
}

func withDefaultBackoff(e *APIError) *APIError {
	if e.RetryAfter > 0 {
		return e
	}
	e.RetryAfter = rateLimitBackoff
	if e.Quota() {
		e.RetryAfter = quotaBackoff
	}
	return e
}

// parseRetryAfter reads retry-after-ms, then Retry-After as seconds or an HTTP date
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	if ms, err := strconv.ParseFloat(h.Get("Retry-After-Ms"), 64); err == nil && ms > 0 {
		return time.Duration(ms * float64(time.Millisecond))
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// Classify returns a short label for logging an AI failure
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case IsQuotaError(err):
		return "quota"
	case IsRateLimitError(err):
		return "rate_limit"
	case errors.Is(err, ErrNoChoices):
		return "empty"
	default:
		return "error"
	}
}
