package domain

import (
	"fmt"
	"time"
)

// PredictionRequest asks for a time-bounded forecast of a target metric
// for a user given their current context.
type PredictionRequest struct {
	UserID                 string       `json:"user_id"`
	Context                EventContext `json:"context"`
	TargetMetric           string       `json:"target_metric"`
	TimeHorizon            int          `json:"time_horizon"` // hours
	IncludeRecommendations bool         `json:"include_recommendations"`
}

// Validate checks a prediction request.
func (r *PredictionRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidRequest)
	}
	if r.TargetMetric == "" {
		return fmt.Errorf("%w: target metric is required", ErrInvalidRequest)
	}
	if r.TimeHorizon <= 0 {
		return fmt.Errorf("%w: time horizon must be positive hours", ErrInvalidRequest)
	}
	return nil
}

// CacheKey derives the cache key predictions are stored under.
func (r *PredictionRequest) CacheKey() string {
	return fmt.Sprintf("prediction:%s:%s", r.UserID, r.TargetMetric)
}

// PredictionFactor is one named contributor to a predicted value.
type PredictionFactor struct {
	Name       string    `json:"name"`
	Impact     float64   `json:"impact"`
	Confidence float64   `json:"confidence"`
	Historical []float64 `json:"historical,omitempty"`
}

// AlternativeScenario is a named what-if with the changes required to
// reach its modified predicted value.
type AlternativeScenario struct {
	Name            string   `json:"name"`
	PredictedValue  float64  `json:"predicted_value"`
	Probability     float64  `json:"probability"`
	RequiredChanges []string `json:"required_changes,omitempty"`
}

// PredictionResult is the forecast for one request. Valid until
// CreatedAt plus the requested time horizon.
type PredictionResult struct {
	UserID          string                `json:"user_id"`
	TargetMetric    string                `json:"target_metric"`
	PredictedValue  float64               `json:"predicted_value"`
	Confidence      float64               `json:"confidence"`
	Factors         []PredictionFactor    `json:"factors"`
	Recommendations []Recommendation      `json:"recommendations,omitempty"`
	Alternatives    []AlternativeScenario `json:"alternatives"`
	CreatedAt       time.Time             `json:"created_at"`
	ValidUntil      time.Time             `json:"valid_until"`
}

// Expired reports whether the prediction is past its validity window.
func (p *PredictionResult) Expired(now time.Time) bool {
	return !now.Before(p.ValidUntil)
}
