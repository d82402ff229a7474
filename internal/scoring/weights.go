package scoring

// Weights are the per-factor weights of the total score
type Weights struct {
	Relevance   float64 `yaml:"relevance" json:"relevance"`
	Engagement  float64 `yaml:"engagement" json:"engagement"`
	Personality float64 `yaml:"personality" json:"personality"`
	Timing      float64 `yaml:"timing" json:"timing"`
	Context     float64 `yaml:"context" json:"context"`
	Novelty     float64 `yaml:"novelty" json:"novelty"`
}

// DefaultWeights returns the default factor weights
func DefaultWeights() Weights {
	return Weights{
		Relevance:   0.25,
		Engagement:  0.20,
		Personality: 0.15,
		Timing:      0.20,
		Context:     0.15,
		Novelty:     0.05,
	}
}

func (w Weights) sum() float64 {
	return w.Relevance + w.Engagement + w.Personality + w.Timing + w.Context + w.Novelty
}

// Normalized scales w so its weights sum to 1. Negative weights or a zero sum
// fall back to the defaults.
func (w Weights) Normalized() Weights {
	for _, v := range []float64{w.Relevance, w.Engagement, w.Personality, w.Timing, w.Context, w.Novelty} {
		if v < 0 {
			return DefaultWeights()
		}
	}
	s := w.sum()
	if s <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Relevance:   w.Relevance / s,
		Engagement:  w.Engagement / s,
		Personality: w.Personality / s,
		Timing:      w.Timing / s,
		Context:     w.Context / s,
		Novelty:     w.Novelty / s,
	}
}
