package models

// ConditionType groups conditions by the aspect of the user they test
type ConditionType string

const (
	ConditionUserState   ConditionType = "user_state"
	ConditionBehavior    ConditionType = "behavior"
	ConditionTemporal    ConditionType = "temporal"
	ConditionPreference  ConditionType = "preference"
	ConditionAchievement ConditionType = "achievement"
	ConditionContext     ConditionType = "context"
)

// Operator compares a context property with a condition value
type Operator string

const (
	OpEquals      Operator = "equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpBetween     Operator = "between"
)

// MessageCondition is a weighted predicate over a UserContext property.
// Value is a bool, number, string, or a two-element numeric range for OpBetween.
type MessageCondition struct {
	Type     ConditionType `json:"type"`
	Property string        `json:"property"`
	Operator Operator      `json:"operator"`
	Value    any           `json:"value"`
	Weight   float64       `json:"weight"`
}
