package domain

import (
	"fmt"
	"time"
)

// ConditionOperator is the comparison applied by a pattern condition.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorContains    ConditionOperator = "contains"
	OperatorBetween     ConditionOperator = "between"
)

// Condition describes one contextual precondition of a pattern.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    interface{}       `json:"value"`
	Weight   float64           `json:"weight"`
}

// Outcome describes an expected metric movement when a pattern holds.
type Outcome struct {
	Metric        string   `json:"metric"`
	ExpectedValue float64  `json:"expected_value"`
	ActualValue   *float64 `json:"actual_value,omitempty"`
	Variance      float64  `json:"variance"`
	Confidence    float64  `json:"confidence"`
}

// Visualization hints how a pattern should be rendered downstream.
type Visualization struct {
	ChartType string   `json:"chart_type"`
	Metrics   []string `json:"metrics,omitempty"`
}

// IdentifiedPattern is a statistically-supported recurring relationship
// between context/features and an outcome. Created by the pattern
// identifier; only UpdatedAt changes on re-derivation.
type IdentifiedPattern struct {
	ID              string           `json:"id"`
	Type            EventType        `json:"type"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Confidence      float64          `json:"confidence"`
	Frequency       int              `json:"frequency"`
	SuccessRate     float64          `json:"success_rate"`
	Impact          float64          `json:"impact"`
	Conditions      []Condition      `json:"conditions,omitempty"`
	Outcomes        []Outcome        `json:"outcomes,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Visualization   Visualization    `json:"visualization"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Validate checks bounded scores on a pattern.
func (p *IdentifiedPattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pattern ID is required")
	}
	for name, v := range map[string]float64{
		"confidence":   p.Confidence,
		"success_rate": p.SuccessRate,
		"impact":       p.Impact,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("pattern %s %f out of [0,1]", name, v)
		}
	}
	if p.Frequency < 0 {
		return fmt.Errorf("pattern frequency %d must be non-negative", p.Frequency)
	}
	return nil
}

// RecommendationType classifies a recommendation by the change it suggests.
type RecommendationType string

const (
	RecommendationOptimization  RecommendationType = "optimization"
	RecommendationWorkflow      RecommendationType = "workflow"
	RecommendationTiming        RecommendationType = "timing"
	RecommendationResource      RecommendationType = "resource"
	RecommendationCollaboration RecommendationType = "collaboration"
)

// Priority is the urgency attached to recommendations and anomalies.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ActionItem is one concrete step within a recommendation.
type ActionItem struct {
	Order       int    `json:"order"`
	Description string `json:"description"`
	Effort      string `json:"effort,omitempty"`
}

// Recommendation is an actionable suggestion derived from patterns.
type Recommendation struct {
	ID                   string             `json:"id"`
	Type                 RecommendationType `json:"type"`
	Title                string             `json:"title"`
	Description          string             `json:"description"`
	Priority             Priority           `json:"priority"`
	EstimatedImpact      float64            `json:"estimated_impact"`
	ImplementationEffort float64            `json:"implementation_effort"`
	Evidence             []string           `json:"evidence,omitempty"`
	ActionItems          []ActionItem       `json:"action_items,omitempty"`
}
