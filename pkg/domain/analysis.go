package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRequest marks request validation failures so transports
// can map them to client errors instead of server failures.
var ErrInvalidRequest = errors.New("invalid request")

// AnalysisRequest asks for a cross-system pattern analysis. An empty
// UserID means a global analysis across all users.
type AnalysisRequest struct {
	UserID        string      `json:"user_id,omitempty"`
	Systems       []string    `json:"systems"`
	TimeRange     TimeRange   `json:"time_range"`
	PatternTypes  []EventType `json:"pattern_types,omitempty"`
	MinConfidence float64     `json:"min_confidence"`
	MaxResults    int         `json:"max_results"`
}

// Validate checks an analysis request before it enters the pipeline.
func (r *AnalysisRequest) Validate() error {
	if len(r.Systems) == 0 {
		return fmt.Errorf("%w: at least one system is required", ErrInvalidRequest)
	}
	if err := r.TimeRange.Validate(); err != nil {
		return fmt.Errorf("%w: invalid time range: %v", ErrInvalidRequest, err)
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("%w: min confidence %f out of [0,1]", ErrInvalidRequest, r.MinConfidence)
	}
	if r.MaxResults <= 0 {
		return fmt.Errorf("%w: max results must be positive", ErrInvalidRequest)
	}
	return nil
}

// CacheKey derives the deterministic cache key for this request:
// scope, sorted systems, and the start of the time range.
func (r *AnalysisRequest) CacheKey() string {
	scope := r.UserID
	if scope == "" {
		scope = "global"
	}
	systems := make([]string, len(r.Systems))
	copy(systems, r.Systems)
	sort.Strings(systems)
	return fmt.Sprintf("analysis:%s:%s:%d", scope, strings.Join(systems, ","), r.TimeRange.Start.Unix())
}

// InsightType classifies a derived insight.
type InsightType string

const (
	InsightTrend        InsightType = "trend"
	InsightCorrelation  InsightType = "correlation"
	InsightOptimization InsightType = "optimization"
	InsightRisk         InsightType = "risk"
	InsightOpportunity  InsightType = "opportunity"
)

// Insight is a human-readable interpretation derived from patterns.
type Insight struct {
	ID          string      `json:"id"`
	Type        InsightType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Impact      float64     `json:"impact"`
	Confidence  float64     `json:"confidence"`
	Systems     []string    `json:"systems,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CorrelationDirection is the sign of a cross-system relationship.
type CorrelationDirection string

const (
	DirectionPositive CorrelationDirection = "positive"
	DirectionNegative CorrelationDirection = "negative"
)

// Correlation is a measured statistical relationship between two
// subsystems' event streams. Symmetric: one entry per unordered pair.
type Correlation struct {
	Systems      []string             `json:"systems"`
	Strength     float64              `json:"strength"`
	Direction    CorrelationDirection `json:"direction"`
	Significance float64              `json:"significance"`
	Description  string               `json:"description"`
	Implications []string             `json:"implications,omitempty"`
}

// AnomalyType classifies a detected anomaly.
type AnomalyType string

const (
	AnomalyPerformance AnomalyType = "performance"
	AnomalyUsage       AnomalyType = "usage"
	AnomalyOutcome     AnomalyType = "outcome"
	AnomalyBehavior    AnomalyType = "behavior"
)

// Anomaly flags an event statistically inconsistent with established
// patterns, with the originating systems attached.
type Anomaly struct {
	ID                 string      `json:"id"`
	Type               AnomalyType `json:"type"`
	Severity           Priority    `json:"severity"`
	Description        string      `json:"description"`
	DetectedAt         time.Time   `json:"detected_at"`
	AffectedSystems    []string    `json:"affected_systems"`
	PossibleCauses     []string    `json:"possible_causes,omitempty"`
	RecommendedActions []string    `json:"recommended_actions,omitempty"`
}

// SourceCoverage records how one collector contributed to an analysis.
type SourceCoverage struct {
	Events   int    `json:"events"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// AnalysisMetadata describes how and when a result was produced.
// ProcessingTime is a live field and excluded from cache identity.
type AnalysisMetadata struct {
	CacheKey       string                    `json:"cache_key"`
	LastUpdated    time.Time                 `json:"last_updated"`
	ProcessingTime time.Duration             `json:"processing_time"`
	EventCount     int                       `json:"event_count"`
	Coverage       map[string]SourceCoverage `json:"coverage,omitempty"`
	Partial        bool                      `json:"partial,omitempty"`
}

// AnalysisResult is the assembled output of one analysis pass.
type AnalysisResult struct {
	Patterns                []IdentifiedPattern `json:"patterns"`
	Insights                []Insight           `json:"insights"`
	Recommendations         []Recommendation    `json:"recommendations"`
	CrossSystemCorrelations []Correlation       `json:"cross_system_correlations"`
	Anomalies               []Anomaly           `json:"anomalies"`
	Metadata                AnalysisMetadata    `json:"metadata"`
}
