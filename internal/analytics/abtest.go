package analytics

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/benvon/smart-nudge/internal/models"
)

// ConfidenceLevel maps a minimum z-score to a confidence
type ConfidenceLevel struct {
	Z          float64 `yaml:"z" json:"z"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// ABThresholds configure experiment evaluation
type ABThresholds struct {
	MinSamples            int               `yaml:"min_samples" json:"min_samples"`
	SignificantConfidence float64           `yaml:"significant_confidence" json:"significant_confidence"`
	LookbackDays          int               `yaml:"lookback_days" json:"lookback_days"`
	Levels                []ConfidenceLevel `yaml:"levels" json:"levels"`
}

// DefaultABThresholds returns 30 samples per arm, 0.95 significance and the
// 2.58/1.96/1.64 z ladder
func DefaultABThresholds() ABThresholds {
	return ABThresholds{
		MinSamples:            30,
		SignificantConfidence: 0.95,
		LookbackDays:          30,
		Levels: []ConfidenceLevel{
			{Z: 2.58, Confidence: 0.99},
			{Z: 1.96, Confidence: 0.95},
			{Z: 1.64, Confidence: 0.90},
		},
	}
}

func (t ABThresholds) withDefaults() ABThresholds {
	def := DefaultABThresholds()
	if t.MinSamples <= 0 {
		t.MinSamples = def.MinSamples
	}
	if t.SignificantConfidence <= 0 || t.SignificantConfidence > 1 {
		t.SignificantConfidence = def.SignificantConfidence
	}
	if t.LookbackDays <= 0 {
		t.LookbackDays = def.LookbackDays
	}
	if len(t.Levels) == 0 {
		t.Levels = def.Levels
	}
	t.Levels = slices.Clone(t.Levels)
	slices.SortFunc(t.Levels, func(a, b ConfidenceLevel) int {
		switch {
		case a.Z > b.Z:
			return -1
		case a.Z < b.Z:
			return 1
		default:
			return 0
		}
	})
	return t
}

// Confidence maps a z-score onto the configured ladder; below the lowest rung
// it scales linearly against the highest
func (t ABThresholds) Confidence(z float64) float64 {
	for _, l := range t.Levels {
		if z >= l.Z {
			return l.Confidence
		}
	}
	if len(t.Levels) == 0 || t.Levels[0].Z <= 0 {
		return 0
	}
	return math.Max(0, z/t.Levels[0].Z)
}

// ZScore is the absolute two-proportion z statistic of p1 over n1 samples
// against p2 over n2 samples; 0 when undefined
func ZScore(p1 float64, n1 int, p2 float64, n2 int) float64 {
	if n1 <= 0 || n2 <= 0 {
		return 0
	}
	pooled := (p1*float64(n1) + p2*float64(n2)) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0
	}
	return math.Abs(p1-p2) / se
}

// ABTestResult is the outcome of one variant
type ABTestResult struct {
	TestID         string  `json:"test_id"`
	VariantID      string  `json:"variant_id"`
	SampleSize     int     `json:"sample_size"`
	Impressions    int     `json:"impressions"`
	ConversionRate float64 `json:"conversion_rate"`
	EngagementRate float64 `json:"engagement_rate"`
	Confidence     float64 `json:"confidence"`
	IsSignificant  bool    `json:"is_significant"`
	IsControl      bool    `json:"is_control"`
}

// RunABTest evaluates the variants of testID. The first variant is the control
// every other variant is compared against.
func (a *Analytics) RunABTest(ctx context.Context, testID string, variantIDs []string) ([]ABTestResult, error) {
	if testID == "" || len(variantIDs) == 0 {
		return nil, errors.New("test id and at least one variant are required")
	}
	events, err := a.loadEvents(ctx, a.thresholds.LookbackDays)
	if err != nil {
		return nil, err
	}

	byVariant := map[string][]models.AnalyticsEvent{}
	for _, e := range events {
		if e.Experiment == nil || e.Experiment.TestID != testID {
			continue
		}
		byVariant[e.Experiment.VariantID] = append(byVariant[e.Experiment.VariantID], e)
	}

	results := make([]ABTestResult, 0, len(variantIDs))
	for i, v := range variantIDs {
		results = append(results, variantResult(testID, v, byVariant[v], i == 0))
	}
	a.evaluate(results)
	return results, nil
}

func variantResult(testID, variantID string, events []models.AnalyticsEvent, control bool) ABTestResult {
	r := ABTestResult{TestID: testID, VariantID: variantID, IsControl: control}
	clicks := 0
	engaged := map[string]bool{}
	for _, e := range events {
		switch {
		case e.Kind == models.EventGeneration:
			r.SampleSize++
		case isImpression(e):
			r.Impressions++
		case isEngagement(e):
			if isClick(e) {
				clicks++
			}
			engaged[e.UserID] = true
		}
	}
	if r.Impressions > 0 {
		r.ConversionRate = math.Min(1, float64(clicks)/float64(r.Impressions))
		r.EngagementRate = math.Min(1, float64(len(engaged))/float64(r.Impressions))
	}
	return r
}

// evaluate fills confidence and significance of every non-control result
func (a *Analytics) evaluate(results []ABTestResult) {
	if len(results) == 0 {
		return
	}
	control := results[0]
	for i := 1; i < len(results); i++ {
		r := &results[i]
		if r.SampleSize < a.thresholds.MinSamples || control.SampleSize < a.thresholds.MinSamples {
			continue
		}
		z := ZScore(r.ConversionRate, r.SampleSize, control.ConversionRate, control.SampleSize)
		r.Confidence = a.thresholds.Confidence(z)
		r.IsSignificant = r.Confidence >= a.thresholds.SignificantConfidence
	}
}
