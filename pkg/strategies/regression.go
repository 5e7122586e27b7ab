package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/features"
	"go.uber.org/zap"
)

// Regression fits per-feature coefficients for the time-series target
// value of each event. The reference implementation computes each
// coefficient as cov(feature, target)/var(feature) and averages the
// per-feature fits; quality is the squared correlation between fitted
// and actual values.
type Regression struct {
	logger    *zap.Logger
	extractor *features.Extractor
}

// NewRegression creates the regression strategy.
func NewRegression(logger *zap.Logger) *Regression {
	return &Regression{logger: logger, extractor: features.NewExtractor()}
}

// Name implements Strategy.
func (r *Regression) Name() string { return "regression" }

// Apply implements Strategy.
func (r *Regression) Apply(ctx context.Context, events []*domain.Event) (*AlgorithmResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("regression aborted: %w", err)
	}

	result := &RegressionResult{
		Coefficients: make([]float64, features.VectorSize),
		Predictions:  make([]RegressionPrediction, 0, len(events)),
	}
	if len(events) < 2 {
		return &AlgorithmResult{Algorithm: r.Name(), Regression: result}, nil
	}

	vectors := make([][]float64, len(events))
	targets := make([]float64, len(events))
	for i, event := range events {
		vectors[i] = r.extractor.Extract(event)
		targets[i] = r.extractor.TimeSeriesValue(event)
	}
	targetMean := mean(targets)

	// Per-feature slope via covariance over variance; features with no
	// spread contribute nothing.
	featureMeans := make([]float64, features.VectorSize)
	for j := 0; j < features.VectorSize; j++ {
		col := make([]float64, len(events))
		for i := range vectors {
			col[i] = vectors[i][j]
		}
		featureMeans[j] = mean(col)

		cov, varF := 0.0, 0.0
		for i := range col {
			df := col[i] - featureMeans[j]
			cov += df * (targets[i] - targetMean)
			varF += df * df
		}
		if varF > 0 {
			result.Coefficients[j] = cov / varF
		}
	}
	result.Intercept = targetMean

	// Fit each event as the mean of active per-feature predictions.
	fitted := make([]float64, len(events))
	for i, event := range events {
		sum, active := 0.0, 0
		for j, coef := range result.Coefficients {
			if coef == 0 {
				continue
			}
			sum += result.Intercept + coef*(vectors[i][j]-featureMeans[j])
			active++
		}
		predicted := result.Intercept
		if active > 0 {
			predicted = sum / float64(active)
		}
		fitted[i] = predicted

		residual := math.Abs(predicted - targets[i])
		scale := math.Abs(targetMean)
		if scale == 0 {
			scale = 1
		}
		result.Predictions = append(result.Predictions, RegressionPrediction{
			EventID:    event.ID,
			Predicted:  predicted,
			Actual:     targets[i],
			Confidence: clamp01(1 - residual/(scale+residual)),
		})
	}

	result.FitQuality = squaredCorrelation(fitted, targets)

	r.logger.Debug("regression pass complete",
		zap.Int("events", len(events)),
		zap.Float64("fit_quality", result.FitQuality),
	)

	return &AlgorithmResult{Algorithm: r.Name(), Regression: result}, nil
}

// squaredCorrelation returns the square of the Pearson correlation
// between two equal-length series, or 0 when either has no spread.
func squaredCorrelation(a, b []float64) float64 {
	ma, mb := mean(a), mean(b)
	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	corr := cov / math.Sqrt(varA*varB)
	return corr * corr
}
