package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/benvon/smart-nudge/internal/analytics"
	"github.com/benvon/smart-nudge/internal/contextbuilder"
	"github.com/benvon/smart-nudge/internal/engine"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/msgcache"
	"github.com/benvon/smart-nudge/internal/scoring"
	"github.com/benvon/smart-nudge/internal/templates"
)

// Tuning holds the scoring and selection knobs read from TUNING_FILE.
// Omitted sections keep their built-in defaults.
type Tuning struct {
	Weights              *scoring.Weights                                `yaml:"weights"`
	PriorityWeights      map[models.MessageType]templates.PriorityWeight `yaml:"priority_weights"`
	EligibilityThreshold float64                                         `yaml:"eligibility_threshold"`
	ABTest               *analytics.ABThresholds                         `yaml:"ab_test"`
	Holidays             []contextbuilder.Holiday                        `yaml:"holidays"`
}

// LoadTuning reads the tuning file at path. An empty path yields the defaults.
func LoadTuning(path string) (*Tuning, error) {
	if path == "" {
		return &Tuning{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes and validates a tuning document
func ParseTuning(data []byte) (*Tuning, error) {
	t := &Tuning{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tuning) validate() error {
	if t.EligibilityThreshold < 0 || t.EligibilityThreshold > 1 {
		return fmt.Errorf("eligibility_threshold must be within [0,1], got %v", t.EligibilityThreshold)
	}
	if w := t.Weights; w != nil {
		for name, v := range map[string]float64{
			"relevance":   w.Relevance,
			"engagement":  w.Engagement,
			"personality": w.Personality,
			"timing":      w.Timing,
			"context":     w.Context,
			"novelty":     w.Novelty,
		} {
			if v < 0 {
				return fmt.Errorf("weights.%s must not be negative", name)
			}
		}
	}
	for typ, pw := range t.PriorityWeights {
		if !typ.IsValid() {
			return fmt.Errorf("priority_weights: unknown message type %q", typ)
		}
		if pw.Active < 0 || pw.Inactive < 0 {
			return fmt.Errorf("priority_weights.%s must not be negative", typ)
		}
	}
	if ab := t.ABTest; ab != nil {
		if ab.MinSamples < 0 || ab.LookbackDays < 0 {
			return errors.New("ab_test: min_samples and lookback_days must not be negative")
		}
		if ab.SignificantConfidence < 0 || ab.SignificantConfidence > 1 {
			return fmt.Errorf("ab_test.significant_confidence must be within [0,1], got %v", ab.SignificantConfidence)
		}
	}
	for _, h := range t.Holidays {
		if h.Month < time.January || h.Month > time.December || h.Day < 1 || h.Day > 31 {
			return fmt.Errorf("invalid holiday %d-%d", h.Month, h.Day)
		}
	}
	return nil
}

// Settings combines cfg and the tuning into the engine settings
func (t *Tuning) Settings(cfg *Config) engine.Settings {
	st := engine.Settings{
		Weights:         t.Weights,
		PriorityWeights: t.PriorityWeights,
		Threshold:       t.EligibilityThreshold,
		ABThresholds:    t.ABTest,
		Holidays:        t.Holidays,
	}
	if cfg != nil {
		st.Cache = msgcache.Config{PerKey: cfg.CachePerKey, MaxAge: cfg.CacheMaxAge}
		st.LedgerCapacity = cfg.LedgerCapacity
		st.AnalyticsDailyCap = cfg.AnalyticsDailyCap
	}
	return st
}
