package strategies

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/features"
	"go.uber.org/zap"
)

const defaultForecastHorizon = 5

// TimeSeries computes trend direction, a seasonality label, a forward
// forecast and change points over the scalar series extracted from the
// timestamp-ordered event set.
type TimeSeries struct {
	logger    *zap.Logger
	extractor *features.Extractor
	horizon   int
}

// NewTimeSeries creates the time-series strategy. horizon <= 0 uses the
// default forecast length.
func NewTimeSeries(logger *zap.Logger, horizon int) *TimeSeries {
	if horizon <= 0 {
		horizon = defaultForecastHorizon
	}
	return &TimeSeries{logger: logger, extractor: features.NewExtractor(), horizon: horizon}
}

// Name implements Strategy.
func (t *TimeSeries) Name() string { return "time_series" }

// Apply implements Strategy.
func (t *TimeSeries) Apply(ctx context.Context, events []*domain.Event) (*AlgorithmResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("time-series aborted: %w", err)
	}

	result := &TimeSeriesResult{
		Trend:       TrendStable,
		Seasonality: SeasonalityNone,
		Forecast:    []float64{},
	}
	if len(events) < 2 {
		return &AlgorithmResult{Algorithm: t.Name(), TimeSeries: result}, nil
	}

	ordered := make([]*domain.Event, len(events))
	copy(ordered, events)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	series := make([]float64, len(ordered))
	for i, event := range ordered {
		series[i] = t.extractor.TimeSeriesValue(event)
	}

	// Least-squares slope over the index axis.
	n := float64(len(series))
	xMean := (n - 1) / 2
	yMean := mean(series)
	var cov, varX float64
	for i, y := range series {
		dx := float64(i) - xMean
		cov += dx * (y - yMean)
		varX += dx * dx
	}
	slope := 0.0
	if varX > 0 {
		slope = cov / varX
	}
	result.Slope = slope

	// Direction relative to the series scale.
	scale := math.Abs(yMean)
	if scale == 0 {
		scale = 1
	}
	switch {
	case slope > 0.01*scale:
		result.Trend = TrendIncreasing
	case slope < -0.01*scale:
		result.Trend = TrendDecreasing
	}

	result.Seasonality = t.detectSeasonality(ordered, series, yMean)
	result.ChangePoints = t.detectChangePoints(ordered, series)

	last := series[len(series)-1]
	for i := 1; i <= t.horizon; i++ {
		result.Forecast = append(result.Forecast, last+slope*float64(i))
	}

	// Confidence grows with series length, shrinks with noise.
	sd := math.Sqrt(variance(series, yMean))
	lengthScore := clamp01(n / 30)
	noiseScore := clamp01(1 - sd/(scale+sd))
	result.Confidence = clamp01(0.5*lengthScore + 0.5*noiseScore)

	t.logger.Debug("time-series pass complete",
		zap.Int("events", len(events)),
		zap.String("trend", result.Trend),
		zap.Float64("slope", slope),
	)

	return &AlgorithmResult{Algorithm: t.Name(), TimeSeries: result}, nil
}

// detectSeasonality labels the series daily when hour-of-day buckets
// explain more spread than day-of-week buckets, weekly for the reverse,
// and none when neither bucketing separates the values.
func (t *TimeSeries) detectSeasonality(events []*domain.Event, series []float64, yMean float64) string {
	total := variance(series, yMean)
	if total == 0 {
		return SeasonalityNone
	}

	hourly := bucketSpread(events, series, func(e *domain.Event) int { return e.Timestamp.Hour() })
	weekly := bucketSpread(events, series, func(e *domain.Event) int { return int(e.Timestamp.Weekday()) })

	switch {
	case hourly > weekly && hourly > 0.3*total:
		return SeasonalityDaily
	case weekly >= hourly && weekly > 0.3*total:
		return SeasonalityWeekly
	}
	return SeasonalityNone
}

// bucketSpread measures the variance of bucket means, i.e. how much of
// the series spread the bucketing explains.
func bucketSpread(events []*domain.Event, series []float64, bucket func(*domain.Event) int) float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, event := range events {
		b := bucket(event)
		sums[b] += series[i]
		counts[b]++
	}
	if len(sums) < 2 {
		return 0
	}
	means := make([]float64, 0, len(sums))
	for b, sum := range sums {
		means = append(means, sum/float64(counts[b]))
	}
	return variance(means, mean(means))
}

// detectChangePoints flags timestamps where the step between adjacent
// values exceeds twice the standard deviation of all steps.
func (t *TimeSeries) detectChangePoints(events []*domain.Event, series []float64) []time.Time {
	if len(series) < 3 {
		return nil
	}
	steps := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		steps[i-1] = series[i] - series[i-1]
	}
	m := mean(steps)
	sd := math.Sqrt(variance(steps, m))
	if sd == 0 {
		return nil
	}
	var points []time.Time
	for i, step := range steps {
		if math.Abs(step-m) > 2*sd {
			points = append(points, events[i+1].Timestamp)
		}
	}
	return points
}
