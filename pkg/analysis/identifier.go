// Package analysis implements the pattern pipeline: strategy outputs
// become identified patterns, patterns become insights,
// recommendations, correlations and anomalies, and the assembled
// results are cached and served.
package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/strategies"
	"go.uber.org/zap"
)

// Confidence bands for classification-derived patterns.
var confidenceBands = []struct {
	name string
	min  float64
}{
	{"high", 0.8},
	{"medium", 0.5},
	{"low", 0.0},
}

// Identifier converts algorithm outputs into identified patterns,
// filtered by the request's confidence threshold and result cap.
type Identifier struct {
	logger *zap.Logger
}

// NewIdentifier creates a pattern identifier.
func NewIdentifier(logger *zap.Logger) *Identifier {
	return &Identifier{logger: logger}
}

// Identify maps each strategy result to zero or more patterns, then
// applies the threshold/cap filter. Pattern ids are deterministic per
// scope so re-derivation updates rather than duplicates store entries.
func (id *Identifier) Identify(results []*strategies.AlgorithmResult, request *domain.AnalysisRequest) []domain.IdentifiedPattern {
	scope := request.UserID
	if scope == "" {
		scope = "global"
	}
	now := time.Now()

	var patterns []domain.IdentifiedPattern
	for _, result := range results {
		switch {
		case result.Classification != nil:
			patterns = append(patterns, id.fromClassification(result.Classification, scope, now)...)
		case result.Clustering != nil:
			patterns = append(patterns, id.fromClustering(result.Clustering, scope, now)...)
		case result.TimeSeries != nil:
			patterns = append(patterns, id.fromTimeSeries(result.TimeSeries, trendType(results), scope, now)...)
		}
	}

	filtered := patterns[:0]
	for _, p := range patterns {
		if p.Confidence >= request.MinConfidence {
			filtered = append(filtered, p)
		}
	}

	// Confidence desc; ties prefer higher impact, then earliest CreatedAt.
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Impact != b.Impact {
			return a.Impact > b.Impact
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	if len(filtered) > request.MaxResults {
		filtered = filtered[:request.MaxResults]
	}

	id.logger.Debug("Pattern identification complete",
		zap.Int("candidates", len(patterns)),
		zap.Int("kept", len(filtered)),
		zap.Float64("min_confidence", request.MinConfidence),
	)
	return filtered
}

// fromClassification groups assignments by (predicted type, confidence
// band) and emits one pattern per non-empty group.
func (id *Identifier) fromClassification(result *strategies.ClassificationResult, scope string, now time.Time) []domain.IdentifiedPattern {
	type group struct {
		count   int
		confSum float64
	}
	groups := make(map[string]*group)
	types := make(map[string]domain.EventType)
	bandMin := make(map[string]float64)

	for _, assignment := range result.Assignments {
		for _, band := range confidenceBands {
			if assignment.Confidence >= band.min {
				key := string(assignment.PredictedType) + ":" + band.name
				if groups[key] == nil {
					groups[key] = &group{}
					types[key] = assignment.PredictedType
					bandMin[key] = band.min
				}
				groups[key].count++
				groups[key].confSum += assignment.Confidence
				break
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	patterns := make([]domain.IdentifiedPattern, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		confidence := g.confSum / float64(g.count)
		patterns = append(patterns, domain.IdentifiedPattern{
			ID:          fmt.Sprintf("pattern:%s:classification:%s", scope, key),
			Type:        types[key],
			Name:        fmt.Sprintf("%s activity (%s confidence)", types[key], bandName(bandMin[key])),
			Description: fmt.Sprintf("%d events classified as %s with average confidence %.2f", g.count, types[key], confidence),
			Confidence:  confidence,
			Frequency:   g.count,
			SuccessRate: result.Accuracy,
			Impact:      clamp01(confidence * result.Accuracy),
			Conditions: []domain.Condition{
				{Field: "confidence", Operator: domain.OperatorGreaterThan, Value: bandMin[key], Weight: 1},
			},
			Visualization: domain.Visualization{ChartType: "bar", Metrics: []string{"confidence"}},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return patterns
}

// fromClustering emits one behavioral pattern per cluster.
func (id *Identifier) fromClustering(result *strategies.ClusteringResult, scope string, now time.Time) []domain.IdentifiedPattern {
	patterns := make([]domain.IdentifiedPattern, 0, len(result.Clusters))
	for _, cluster := range result.Clusters {
		confidence := clamp01(0.7*cluster.AvgConfidence + 0.3*result.Cohesion)
		patterns = append(patterns, domain.IdentifiedPattern{
			ID:          fmt.Sprintf("pattern:%s:cluster:%d", scope, cluster.ID),
			Type:        domain.EventTypeUserBehavior,
			Name:        fmt.Sprintf("Behavior cluster %d", cluster.ID),
			Description: fmt.Sprintf("%d events form a behavioral group dominated by %s activity", cluster.Size, cluster.DominantType),
			Confidence:  confidence,
			Frequency:   cluster.Size,
			SuccessRate: cluster.AvgConfidence,
			Impact:      clamp01(result.Cohesion * float64(cluster.Size) / 10),
			Outcomes: []domain.Outcome{
				{Metric: "cohesion", ExpectedValue: result.Cohesion, Variance: 1 - result.Cohesion, Confidence: confidence},
			},
			Visualization: domain.Visualization{ChartType: "scatter", Metrics: []string{"features"}},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return patterns
}

// fromTimeSeries emits a single trend pattern when a trend exists.
func (id *Identifier) fromTimeSeries(result *strategies.TimeSeriesResult, patternType domain.EventType, scope string, now time.Time) []domain.IdentifiedPattern {
	if result.Trend == "" || len(result.Forecast) == 0 {
		return nil
	}
	outcome := domain.Outcome{
		Metric:        "trend_value",
		ExpectedValue: result.Forecast[0],
		Variance:      1 - result.Confidence,
		Confidence:    result.Confidence,
	}
	return []domain.IdentifiedPattern{{
		ID:          fmt.Sprintf("pattern:%s:trend", scope),
		Type:        patternType,
		Name:        fmt.Sprintf("%s trend (%s seasonality)", result.Trend, result.Seasonality),
		Description: fmt.Sprintf("Series trend is %s with slope %.4f", result.Trend, result.Slope),
		Confidence:  result.Confidence,
		Frequency:   len(result.Forecast),
		SuccessRate: result.Confidence,
		Impact:      clamp01(result.Confidence * 0.9),
		Outcomes:    []domain.Outcome{outcome},
		Visualization: domain.Visualization{
			ChartType: "line",
			Metrics:   []string{"trend_value"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

// trendType resolves which event type the trend pattern carries: the
// dominant predicted type from classification when available.
func trendType(results []*strategies.AlgorithmResult) domain.EventType {
	for _, result := range results {
		if result.Classification == nil {
			continue
		}
		counts := make(map[domain.EventType]int)
		for _, a := range result.Classification.Assignments {
			counts[a.PredictedType]++
		}
		best, bestCount := domain.EventTypePerformance, -1
		for t, c := range counts {
			if c > bestCount || (c == bestCount && t < best) {
				best, bestCount = t, c
			}
		}
		if bestCount > 0 {
			return best
		}
	}
	return domain.EventTypePerformance
}

func bandName(min float64) string {
	for _, band := range confidenceBands {
		if band.min == min {
			return band.name
		}
	}
	return "unknown"
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
