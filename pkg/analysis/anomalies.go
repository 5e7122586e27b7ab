package analysis

import (
	"fmt"
	"math"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/features"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// anomalyZThreshold is the minimum |z-score| for an event to be
// flagged as an outlier.
const anomalyZThreshold = 2.5

// AnomalyDetector flags statistical outliers in the event set.
type AnomalyDetector struct {
	logger    *zap.Logger
	extractor *features.Extractor
}

// NewAnomalyDetector creates an anomaly detector.
func NewAnomalyDetector(logger *zap.Logger) *AnomalyDetector {
	return &AnomalyDetector{logger: logger, extractor: features.NewExtractor()}
}

// Detect z-scores every event's scalar value against the whole set and
// flags outliers with a severity, candidate causes and actions, and the
// originating system attached.
func (d *AnomalyDetector) Detect(events []*domain.Event) []domain.Anomaly {
	if len(events) < 3 {
		return nil
	}

	values := make([]float64, len(events))
	sum := 0.0
	for i, event := range events {
		values[i] = d.extractor.TimeSeriesValue(event)
		sum += values[i]
	}
	mean := sum / float64(len(values))

	varSum := 0.0
	for _, v := range values {
		dv := v - mean
		varSum += dv * dv
	}
	sd := math.Sqrt(varSum / float64(len(values)-1))
	if sd == 0 {
		return nil
	}

	var anomalies []domain.Anomaly
	for i, event := range events {
		z := math.Abs(values[i]-mean) / sd
		if z < anomalyZThreshold {
			continue
		}

		anomalyType := anomalyTypeFor(event.Type)
		anomalies = append(anomalies, domain.Anomaly{
			ID:       uuid.New().String(),
			Type:     anomalyType,
			Severity: severityFor(z),
			Description: fmt.Sprintf("Event %s deviates %.1f standard deviations from the %d-event baseline",
				event.ID, z, len(events)),
			DetectedAt:         event.Timestamp,
			AffectedSystems:    []string{event.SystemSource},
			PossibleCauses:     causesFor(anomalyType),
			RecommendedActions: actionsFor(anomalyType),
		})
	}

	d.logger.Debug("Anomaly detection complete",
		zap.Int("events", len(events)),
		zap.Int("anomalies", len(anomalies)),
	)
	return anomalies
}

func anomalyTypeFor(eventType domain.EventType) domain.AnomalyType {
	switch eventType {
	case domain.EventTypePerformance:
		return domain.AnomalyPerformance
	case domain.EventTypeSession, domain.EventTypeUserBehavior:
		return domain.AnomalyBehavior
	case domain.EventTypeLearning:
		return domain.AnomalyOutcome
	default:
		return domain.AnomalyUsage
	}
}

func severityFor(z float64) domain.Priority {
	switch {
	case z >= 4.5:
		return domain.PriorityCritical
	case z >= 3.5:
		return domain.PriorityHigh
	case z >= 3.0:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func causesFor(t domain.AnomalyType) []string {
	switch t {
	case domain.AnomalyPerformance:
		return []string{"resource contention", "degraded dependency", "configuration change"}
	case domain.AnomalyBehavior:
		return []string{"interrupted work session", "unfamiliar task", "schedule disruption"}
	case domain.AnomalyOutcome:
		return []string{"knowledge gap", "incomplete capture"}
	default:
		return []string{"unusual load profile"}
	}
}

func actionsFor(t domain.AnomalyType) []string {
	switch t {
	case domain.AnomalyPerformance:
		return []string{"inspect system metrics around the detection time", "compare against the previous baseline window"}
	case domain.AnomalyBehavior:
		return []string{"review the surrounding session timeline"}
	case domain.AnomalyOutcome:
		return []string{"revisit the learning item and re-capture"}
	default:
		return []string{"confirm the event source is reporting correctly"}
	}
}
