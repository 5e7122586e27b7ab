package strategies

import (
	"context"
	"fmt"

	"github.com/crosslens/crosslens/pkg/domain"
	"go.uber.org/zap"
)

// Classification assigns each event a predicted pattern type with a
// per-item confidence. The reference implementation is a majority-vote
// classifier over each event's system source: events from a source are
// predicted to carry the source's dominant type, with confidence from
// vote agreement blended with the event's own collection confidence.
type Classification struct {
	logger *zap.Logger
}

// NewClassification creates the classification strategy.
func NewClassification(logger *zap.Logger) *Classification {
	return &Classification{logger: logger}
}

// Name implements Strategy.
func (c *Classification) Name() string { return "classification" }

// Apply implements Strategy.
func (c *Classification) Apply(ctx context.Context, events []*domain.Event) (*AlgorithmResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classification aborted: %w", err)
	}

	result := &ClassificationResult{
		Assignments: make([]ClassAssignment, 0, len(events)),
	}
	if len(events) == 0 {
		return &AlgorithmResult{Algorithm: c.Name(), Classification: result}, nil
	}

	// Vote counts per source.
	votes := make(map[string]map[domain.EventType]int)
	totals := make(map[string]int)
	for _, event := range events {
		if votes[event.SystemSource] == nil {
			votes[event.SystemSource] = make(map[domain.EventType]int)
		}
		votes[event.SystemSource][event.Type]++
		totals[event.SystemSource]++
	}

	dominant := make(map[string]domain.EventType, len(votes))
	for source, counts := range votes {
		best := domain.EventType("")
		bestCount := -1
		for eventType, count := range counts {
			// Deterministic tie-break on type name.
			if count > bestCount || (count == bestCount && eventType < best) {
				best = eventType
				bestCount = count
			}
		}
		dominant[source] = best
	}

	correct := 0
	for _, event := range events {
		predicted := dominant[event.SystemSource]
		agreement := float64(votes[event.SystemSource][predicted]) / float64(totals[event.SystemSource])
		confidence := clamp01(0.6*agreement + 0.4*event.Metadata.Confidence)
		result.Assignments = append(result.Assignments, ClassAssignment{
			EventID:       event.ID,
			PredictedType: predicted,
			Confidence:    confidence,
		})
		if predicted == event.Type {
			correct++
		}
	}
	result.Accuracy = float64(correct) / float64(len(events))

	c.logger.Debug("classification pass complete",
		zap.Int("events", len(events)),
		zap.Float64("accuracy", result.Accuracy),
	)

	return &AlgorithmResult{Algorithm: c.Name(), Classification: result}, nil
}
