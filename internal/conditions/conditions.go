// Package conditions evaluates weighted template conditions against a UserContext.
package conditions

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/benvon/smart-nudge/internal/models"
)

// DefaultThreshold is the weighted satisfaction needed for eligibility
const DefaultThreshold = 0.7

// Compiled is a condition whose property has been resolved to an accessor
type Compiled struct {
	models.MessageCondition
	get Accessor
}

// Compile resolves the condition's property and validates its operator and value
func Compile(c models.MessageCondition) (Compiled, error) {
	get, ok := Lookup(c.Property)
	if !ok {
		return Compiled{}, fmt.Errorf("unknown condition property %q", c.Property)
	}
	switch c.Operator {
	case models.OpEquals, models.OpContains:
	case models.OpGreaterThan, models.OpLessThan:
		if _, ok := toFloat(c.Value); !ok {
			return Compiled{}, fmt.Errorf("condition %s %s needs a numeric value", c.Property, c.Operator)
		}
	case models.OpBetween:
		if _, _, ok := toRange(c.Value); !ok {
			return Compiled{}, fmt.Errorf("condition %s between needs a [min,max] value", c.Property)
		}
	default:
		return Compiled{}, fmt.Errorf("unknown condition operator %q", c.Operator)
	}
	if c.Weight < 0 {
		return Compiled{}, fmt.Errorf("condition %s has negative weight", c.Property)
	}
	return Compiled{MessageCondition: c, get: get}, nil
}

// CompileAll compiles a condition list, failing on the first invalid entry
func CompileAll(conds []models.MessageCondition) ([]Compiled, error) {
	out := make([]Compiled, 0, len(conds))
	for _, c := range conds {
		cc, err := Compile(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, nil
}

// Satisfied reports whether uc satisfies the condition
func (c Compiled) Satisfied(uc *models.UserContext) bool {
	if uc == nil {
		return false
	}
	return compare(c.get(uc), c.Operator, c.Value)
}

// Evaluate checks a single uncompiled condition; unknown properties never match
func Evaluate(c models.MessageCondition, uc *models.UserContext) bool {
	cc, err := Compile(c)
	if err != nil {
		return false
	}
	return cc.Satisfied(uc)
}

// WeightedFraction returns the weight share of satisfied conditions.
// An empty list, or one whose weights are all zero, counts as fully satisfied.
func WeightedFraction(conds []Compiled, uc *models.UserContext) float64 {
	var total, met float64
	for _, c := range conds {
		total += c.Weight
		if c.Satisfied(uc) {
			met += c.Weight
		}
	}
	if total == 0 {
		return 1
	}
	return met / total
}

// Eligible reports whether the weighted fraction reaches threshold
func Eligible(conds []Compiled, uc *models.UserContext, threshold float64) bool {
	return WeightedFraction(conds, uc) >= threshold
}

// SatisfiedFraction returns the unweighted share of satisfied conditions.
// ok is false for an empty list.
func SatisfiedFraction(conds []models.MessageCondition, uc *models.UserContext) (fraction float64, ok bool) {
	if len(conds) == 0 {
		return 0, false
	}
	met := 0
	for _, c := range conds {
		if Evaluate(c, uc) {
			met++
		}
	}
	return float64(met) / float64(len(conds)), true
}

func compare(actual any, op models.Operator, expected any) bool {
	switch op {
	case models.OpEquals:
		return equals(actual, expected)
	case models.OpGreaterThan:
		a, ok1 := toFloat(actual)
		e, ok2 := toFloat(expected)
		return ok1 && ok2 && a > e
	case models.OpLessThan:
		a, ok1 := toFloat(actual)
		e, ok2 := toFloat(expected)
		return ok1 && ok2 && a < e
	case models.OpContains:
		return contains(actual, expected)
	case models.OpBetween:
		a, ok := toFloat(actual)
		lo, hi, okR := toRange(expected)
		return ok && okR && a >= lo && a <= hi
	default:
		return false
	}
}

func equals(actual, expected any) bool {
	if a, ok := actual.(bool); ok {
		e, ok := expected.(bool)
		return ok && a == e
	}
	if a, ok := toFloat(actual); ok {
		e, ok := toFloat(expected)
		return ok && a == e
	}
	if a, ok := actual.(string); ok {
		e, ok := expected.(string)
		return ok && a == e
	}
	return false
}

func contains(actual, expected any) bool {
	e, ok := expected.(string)
	if !ok {
		return false
	}
	switch a := actual.(type) {
	case []string:
		return slices.Contains(a, e)
	case string:
		return strings.Contains(a, e)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toRange(v any) (lo, hi float64, ok bool) {
	var items []any
	switch r := v.(type) {
	case []float64:
		for _, x := range r {
			items = append(items, x)
		}
	case []int:
		for _, x := range r {
			items = append(items, x)
		}
	case [2]float64:
		items = []any{r[0], r[1]}
	case []any:
		items = r
	default:
		return 0, 0, false
	}
	if len(items) != 2 {
		return 0, 0, false
	}
	lo, ok1 := toFloat(items[0])
	hi, ok2 := toFloat(items[1])
	if !ok1 || !ok2 || lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}
