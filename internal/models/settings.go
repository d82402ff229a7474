package models

import (
	"errors"
	"strings"
	"time"
)

// CorsConfig is the CORS policy operators can change without a restart
type CorsConfig struct {
	AllowedOrigins   []string  `json:"allowed_origins"`
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Normalize trims and dedupes the origins and checks the policy is usable
func (c *CorsConfig) Normalize() error {
	c.AllowedOrigins = ParseOrigins(strings.Join(c.AllowedOrigins, ","))
	switch {
	case len(c.AllowedOrigins) == 0:
		return errors.New("allowed_origins cannot be empty")
	case c.MaxAge < 0:
		return errors.New("max_age cannot be negative")
	case c.AllowCredentials && containsWildcard(c.AllowedOrigins):
		return errors.New("allow_credentials cannot be combined with a wildcard origin")
	}
	return nil
}

// ParseOrigins splits a comma-separated origin list, dropping blanks and repeats
func ParseOrigins(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		o := strings.TrimSpace(p)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// RatelimitConfig is the per-client request rate in limiter notation, e.g. "5-S" or "100-M"
type RatelimitConfig struct {
	Rate      string    `json:"rate"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize trims the rate and rejects an empty one
func (c *RatelimitConfig) Normalize() error {
	c.Rate = strings.TrimSpace(c.Rate)
	if c.Rate == "" {
		return errors.New("rate cannot be empty")
	}
	return nil
}
