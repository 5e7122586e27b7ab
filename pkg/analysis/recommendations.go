package analysis

import (
	"fmt"
	"sort"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecommendationGenerator derives actionable suggestions from the
// identified patterns of one analysis pass.
type RecommendationGenerator struct {
	logger *zap.Logger
}

// NewRecommendationGenerator creates a recommendation generator.
func NewRecommendationGenerator(logger *zap.Logger) *RecommendationGenerator {
	return &RecommendationGenerator{logger: logger}
}

// Generate emits an optimization recommendation for every pattern with
// a success rate above 0.8 and an improvement recommendation for every
// pattern below 0.4, sorted descending by estimated impact.
func (g *RecommendationGenerator) Generate(patterns []domain.IdentifiedPattern) []domain.Recommendation {
	recommendations := make([]domain.Recommendation, 0)

	for _, pattern := range patterns {
		switch {
		case pattern.SuccessRate > 0.8:
			recommendations = append(recommendations, domain.Recommendation{
				ID:       uuid.New().String(),
				Type:     domain.RecommendationOptimization,
				Title:    fmt.Sprintf("Lean into %s", pattern.Name),
				Priority: priorityFor(pattern.Impact),
				Description: fmt.Sprintf("%q succeeds %.0f%% of the time; schedule more work under its conditions",
					pattern.Name, pattern.SuccessRate*100),
				EstimatedImpact:      pattern.Impact,
				ImplementationEffort: 0.2,
				Evidence:             []string{pattern.Description},
				ActionItems: []domain.ActionItem{
					{Order: 1, Description: "Review the conditions under which this pattern holds", Effort: "low"},
					{Order: 2, Description: "Shift comparable work into those conditions", Effort: "medium"},
				},
			})
		case pattern.SuccessRate < 0.4:
			recommendations = append(recommendations, domain.Recommendation{
				ID:       uuid.New().String(),
				Type:     domain.RecommendationWorkflow,
				Title:    fmt.Sprintf("Rework %s", pattern.Name),
				Priority: priorityFor(clamp01(pattern.Impact + 0.2)),
				Description: fmt.Sprintf("%q succeeds only %.0f%% of the time; its workflow needs adjustment",
					pattern.Name, pattern.SuccessRate*100),
				EstimatedImpact:      clamp01(1 - pattern.SuccessRate),
				ImplementationEffort: 0.5,
				Evidence:             []string{pattern.Description},
				ActionItems: []domain.ActionItem{
					{Order: 1, Description: "Identify the failing step in the recurring workflow", Effort: "medium"},
					{Order: 2, Description: "Trial an alternative approach for one week", Effort: "medium"},
				},
			})
		}
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].EstimatedImpact > recommendations[j].EstimatedImpact
	})

	g.logger.Debug("Recommendations generated", zap.Int("count", len(recommendations)))
	return recommendations
}

func priorityFor(impact float64) domain.Priority {
	switch {
	case impact >= 0.9:
		return domain.PriorityCritical
	case impact >= 0.7:
		return domain.PriorityHigh
	case impact >= 0.4:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
