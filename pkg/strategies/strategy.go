// Package strategies holds the pluggable analysis algorithms. Each
// strategy is a pure function over the collected event set so the four
// of them can run in any order or in parallel. The shipped
// implementations are deterministic reference algorithms; real
// statistical or ML backends can be substituted behind the same
// interface without touching the pipeline.
package strategies

import (
	"context"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
)

// Strategy is the contract every analysis algorithm conforms to.
type Strategy interface {
	// Name identifies the algorithm in results and logs.
	Name() string

	// Apply runs the algorithm over the event set. Implementations
	// must not retain or mutate the slice.
	Apply(ctx context.Context, events []*domain.Event) (*AlgorithmResult, error)
}

// AlgorithmResult is the union of strategy outputs. Exactly one of the
// typed result fields is set, matching Algorithm.
type AlgorithmResult struct {
	Algorithm      string                `json:"algorithm"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Regression     *RegressionResult     `json:"regression,omitempty"`
	Clustering     *ClusteringResult     `json:"clustering,omitempty"`
	TimeSeries     *TimeSeriesResult     `json:"time_series,omitempty"`
}

// ClassAssignment is one event's predicted pattern type.
type ClassAssignment struct {
	EventID       string           `json:"event_id"`
	PredictedType domain.EventType `json:"predicted_type"`
	Confidence    float64          `json:"confidence"`
}

// ClassificationResult carries per-event type assignments plus the
// aggregate accuracy against the observed event types.
type ClassificationResult struct {
	Assignments []ClassAssignment `json:"assignments"`
	Accuracy    float64           `json:"accuracy"`
}

// RegressionPrediction is one event's fitted target value.
type RegressionPrediction struct {
	EventID    string  `json:"event_id"`
	Predicted  float64 `json:"predicted"`
	Actual     float64 `json:"actual"`
	Confidence float64 `json:"confidence"`
}

// RegressionResult carries per-feature coefficients and fit quality.
type RegressionResult struct {
	Coefficients []float64              `json:"coefficients"`
	Intercept    float64                `json:"intercept"`
	Predictions  []RegressionPrediction `json:"predictions"`
	FitQuality   float64                `json:"fit_quality"`
}

// Cluster is one group in a clustering partition.
type Cluster struct {
	ID            int              `json:"id"`
	Center        []float64        `json:"center"`
	Size          int              `json:"size"`
	EventIDs      []string         `json:"event_ids"`
	DominantType  domain.EventType `json:"dominant_type"`
	AvgConfidence float64          `json:"avg_confidence"`
}

// ClusteringResult carries the partition and its cohesion score.
type ClusteringResult struct {
	Clusters []Cluster `json:"clusters"`
	Cohesion float64   `json:"cohesion"`
}

// Trend labels used by the time-series strategy.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Seasonality labels used by the time-series strategy.
const (
	SeasonalityDaily  = "daily"
	SeasonalityWeekly = "weekly"
	SeasonalityNone   = "none"
)

// TimeSeriesResult carries trend direction, seasonality, a forward
// forecast and detected change points.
type TimeSeriesResult struct {
	Trend        string      `json:"trend"`
	Slope        float64     `json:"slope"`
	Seasonality  string      `json:"seasonality"`
	Forecast     []float64   `json:"forecast"`
	ChangePoints []time.Time `json:"change_points,omitempty"`
	Confidence   float64     `json:"confidence"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values)-1)
}
