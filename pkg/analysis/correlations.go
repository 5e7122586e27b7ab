package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/features"
	"go.uber.org/zap"
)

// minCorrelationStrength is the reporting threshold: only pairs with
// |strength| above it appear in results.
const minCorrelationStrength = 0.5

// CorrelationFinder measures pairwise statistical relationships between
// the event streams of distinct system sources.
type CorrelationFinder struct {
	logger    *zap.Logger
	extractor *features.Extractor
}

// NewCorrelationFinder creates a correlation finder.
func NewCorrelationFinder(logger *zap.Logger) *CorrelationFinder {
	return &CorrelationFinder{logger: logger, extractor: features.NewExtractor()}
}

// Find computes (strength, direction, significance) for every unordered
// pair of system sources present in the event set, reporting one entry
// per pair and only those with |strength| > 0.5. Streams are aligned on
// hourly buckets of their mean scalar values.
func (f *CorrelationFinder) Find(events []*domain.Event) []domain.Correlation {
	buckets := make(map[string]map[int64][]float64) // system -> hour -> values
	for _, event := range events {
		hour := event.Timestamp.Truncate(time.Hour).Unix()
		if buckets[event.SystemSource] == nil {
			buckets[event.SystemSource] = make(map[int64][]float64)
		}
		buckets[event.SystemSource][hour] = append(buckets[event.SystemSource][hour], f.extractor.TimeSeriesValue(event))
	}

	systems := make([]string, 0, len(buckets))
	for system := range buckets {
		systems = append(systems, system)
	}
	sort.Strings(systems)

	var correlations []domain.Correlation
	for i := 0; i < len(systems); i++ {
		for j := i + 1; j < len(systems); j++ {
			a, b := systems[i], systems[j]
			strength, samples := pearsonOverBuckets(buckets[a], buckets[b])
			if math.Abs(strength) <= minCorrelationStrength {
				continue
			}

			direction := domain.DirectionPositive
			if strength < 0 {
				direction = domain.DirectionNegative
			}
			// More shared buckets make the measurement more credible.
			significance := clamp01(math.Abs(strength) * float64(samples) / float64(samples+5))

			correlations = append(correlations, domain.Correlation{
				Systems:      []string{a, b},
				Strength:     strength,
				Direction:    direction,
				Significance: significance,
				Description: fmt.Sprintf("Activity in %s and %s shows a %s correlation of %.2f over %d shared intervals",
					a, b, direction, strength, samples),
				Implications: implicationsFor(a, b, direction),
			})
		}
	}

	f.logger.Debug("Correlation pass complete",
		zap.Int("systems", len(systems)),
		zap.Int("reported", len(correlations)),
	)
	return correlations
}

// pearsonOverBuckets correlates the bucket means of two streams over
// their shared hours. Fewer than three shared buckets yields 0.
func pearsonOverBuckets(a, b map[int64][]float64) (float64, int) {
	var xs, ys []float64
	for hour, valuesA := range a {
		valuesB, ok := b[hour]
		if !ok {
			continue
		}
		xs = append(xs, meanOf(valuesA))
		ys = append(ys, meanOf(valuesB))
	}
	if len(xs) < 3 {
		return 0, len(xs)
	}

	mx, my := meanOf(xs), meanOf(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, len(xs)
	}
	return cov / math.Sqrt(vx*vy), len(xs)
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func implicationsFor(a, b string, direction domain.CorrelationDirection) []string {
	if direction == domain.DirectionPositive {
		return []string{fmt.Sprintf("Changes in %s load are likely to surface in %s as well", a, b)}
	}
	return []string{fmt.Sprintf("Heavy %s activity tends to suppress %s activity", a, b)}
}
