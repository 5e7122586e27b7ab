package analysis

import (
	"testing"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func identifyRequest(minConfidence float64, maxResults int) *domain.AnalysisRequest {
	return &domain.AnalysisRequest{
		UserID:  "u1",
		Systems: []string{"sessions"},
		TimeRange: domain.TimeRange{
			Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		MinConfidence: minConfidence,
		MaxResults:    maxResults,
	}
}

func classificationOutput() *strategies.AlgorithmResult {
	return &strategies.AlgorithmResult{
		Algorithm: "classification",
		Classification: &strategies.ClassificationResult{
			Assignments: []strategies.ClassAssignment{
				{EventID: "e1", PredictedType: domain.EventTypeSession, Confidence: 0.9},
				{EventID: "e2", PredictedType: domain.EventTypeSession, Confidence: 0.9},
				{EventID: "e3", PredictedType: domain.EventTypeSession, Confidence: 0.6},
				{EventID: "e4", PredictedType: domain.EventTypeLearning, Confidence: 0.3},
			},
			Accuracy: 0.75,
		},
	}
}

func TestIdentifyGroupsByTypeAndBand(t *testing.T) {
	id := NewIdentifier(zap.NewNop())

	patterns := id.Identify([]*strategies.AlgorithmResult{classificationOutput()}, identifyRequest(0.5, 10))
	require.Len(t, patterns, 2)

	// Confidence descending.
	assert.Equal(t, "pattern:u1:classification:session:high", patterns[0].ID)
	assert.InDelta(t, 0.9, patterns[0].Confidence, 1e-9)
	assert.Equal(t, 2, patterns[0].Frequency)
	assert.Equal(t, domain.EventTypeSession, patterns[0].Type)
	assert.InDelta(t, 0.75, patterns[0].SuccessRate, 1e-9)

	assert.Equal(t, "pattern:u1:classification:session:medium", patterns[1].ID)
	assert.InDelta(t, 0.6, patterns[1].Confidence, 1e-9)

	// The learning:low group sits below the threshold.
	for _, p := range patterns {
		assert.GreaterOrEqual(t, p.Confidence, 0.5)
	}
}

func TestIdentifyHonorsMaxResults(t *testing.T) {
	id := NewIdentifier(zap.NewNop())

	patterns := id.Identify([]*strategies.AlgorithmResult{classificationOutput()}, identifyRequest(0.0, 1))
	require.Len(t, patterns, 1)
	assert.InDelta(t, 0.9, patterns[0].Confidence, 1e-9)
}

func TestIdentifyGlobalScope(t *testing.T) {
	id := NewIdentifier(zap.NewNop())
	request := identifyRequest(0.0, 10)
	request.UserID = ""

	patterns := id.Identify([]*strategies.AlgorithmResult{classificationOutput()}, request)
	require.NotEmpty(t, patterns)
	assert.Equal(t, "pattern:global:classification:session:high", patterns[0].ID)
}

func TestIdentifyFromClustering(t *testing.T) {
	id := NewIdentifier(zap.NewNop())
	output := &strategies.AlgorithmResult{
		Algorithm: "clustering",
		Clustering: &strategies.ClusteringResult{
			Clusters: []strategies.Cluster{
				{ID: 0, Size: 4, AvgConfidence: 0.8, DominantType: domain.EventTypeLearning},
			},
			Cohesion: 0.5,
		},
	}

	patterns := id.Identify([]*strategies.AlgorithmResult{output}, identifyRequest(0.0, 10))
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, "pattern:u1:cluster:0", p.ID)
	assert.Equal(t, domain.EventTypeUserBehavior, p.Type)
	assert.InDelta(t, 0.71, p.Confidence, 1e-9) // 0.7*0.8 + 0.3*0.5
	assert.InDelta(t, 0.2, p.Impact, 1e-9)      // 0.5 * 4/10
	assert.Equal(t, 4, p.Frequency)
}

func TestIdentifyTrendTakesDominantClassifiedType(t *testing.T) {
	id := NewIdentifier(zap.NewNop())
	outputs := []*strategies.AlgorithmResult{
		classificationOutput(),
		{
			Algorithm: "time_series",
			TimeSeries: &strategies.TimeSeriesResult{
				Trend:       strategies.TrendIncreasing,
				Slope:       2.5,
				Seasonality: strategies.SeasonalityNone,
				Forecast:    []float64{110, 120},
				Confidence:  0.9,
			},
		},
	}

	patterns := id.Identify(outputs, identifyRequest(0.0, 10))

	var trend *domain.IdentifiedPattern
	for i := range patterns {
		if patterns[i].ID == "pattern:u1:trend" {
			trend = &patterns[i]
		}
	}
	require.NotNil(t, trend)
	assert.Equal(t, domain.EventTypeSession, trend.Type)
	assert.InDelta(t, 0.9, trend.Confidence, 1e-9)
	require.Len(t, trend.Outcomes, 1)
	assert.InDelta(t, 110, trend.Outcomes[0].ExpectedValue, 1e-9)
}

func TestIdentifyTrendWithoutClassificationDefaultsToPerformance(t *testing.T) {
	id := NewIdentifier(zap.NewNop())
	outputs := []*strategies.AlgorithmResult{
		{
			Algorithm: "time_series",
			TimeSeries: &strategies.TimeSeriesResult{
				Trend:      strategies.TrendDecreasing,
				Forecast:   []float64{5},
				Confidence: 0.7,
			},
		},
	}

	patterns := id.Identify(outputs, identifyRequest(0.0, 10))
	require.Len(t, patterns, 1)
	assert.Equal(t, domain.EventTypePerformance, patterns[0].Type)
}

func TestIdentifyDeterministicIDsAcrossRuns(t *testing.T) {
	id := NewIdentifier(zap.NewNop())
	request := identifyRequest(0.0, 10)

	first := id.Identify([]*strategies.AlgorithmResult{classificationOutput()}, request)
	second := id.Identify([]*strategies.AlgorithmResult{classificationOutput()}, request)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}
