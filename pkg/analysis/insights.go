package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InsightGenerator derives human-readable insights from the pattern
// set and the cross-system correlations of one analysis pass.
type InsightGenerator struct {
	logger *zap.Logger
}

// NewInsightGenerator creates an insight generator.
func NewInsightGenerator(logger *zap.Logger) *InsightGenerator {
	return &InsightGenerator{logger: logger}
}

// Generate returns trend, correlation and optimization insights sorted
// descending by impact.
func (g *InsightGenerator) Generate(patterns []domain.IdentifiedPattern, correlations []domain.Correlation) []domain.Insight {
	now := time.Now()
	insights := make([]domain.Insight, 0)

	for _, pattern := range patterns {
		if strings.Contains(pattern.ID, ":trend") {
			insights = append(insights, domain.Insight{
				ID:          uuid.New().String(),
				Type:        domain.InsightTrend,
				Title:       pattern.Name,
				Description: pattern.Description,
				Impact:      pattern.Impact,
				Confidence:  pattern.Confidence,
				CreatedAt:   now,
			})
			continue
		}
		if pattern.SuccessRate > 0.8 && pattern.Impact > 0.5 {
			insights = append(insights, domain.Insight{
				ID:    uuid.New().String(),
				Type:  domain.InsightOptimization,
				Title: fmt.Sprintf("Reinforce %s", pattern.Name),
				Description: fmt.Sprintf("Pattern %q succeeds %.0f%% of the time; conditions worth preserving",
					pattern.Name, pattern.SuccessRate*100),
				Impact:     pattern.Impact,
				Confidence: pattern.Confidence,
				CreatedAt:  now,
			})
		}
	}

	for _, correlation := range correlations {
		impact := clamp01(abs(correlation.Strength) * correlation.Significance)
		insights = append(insights, domain.Insight{
			ID:   uuid.New().String(),
			Type: domain.InsightCorrelation,
			Title: fmt.Sprintf("%s and %s move %sly together",
				correlation.Systems[0], correlation.Systems[1], correlation.Direction),
			Description: correlation.Description,
			Impact:      impact,
			Confidence:  correlation.Significance,
			Systems:     correlation.Systems,
			CreatedAt:   now,
		})
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Impact > insights[j].Impact
	})

	g.logger.Debug("Insights generated", zap.Int("count", len(insights)))
	return insights
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
