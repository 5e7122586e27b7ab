package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/features"
	"github.com/crosslens/crosslens/pkg/strategies"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Predictor forecasts a target metric from a user's stored patterns
// plus a fresh strategy pass over their recent events.
type Predictor struct {
	logger          *zap.Logger
	extractor       *features.Extractor
	regression      *strategies.Regression
	timeSeries      *strategies.TimeSeries
	recommendations *RecommendationGenerator

	tracer              trace.Tracer
	predictionsTotal    metric.Int64Counter
	confidenceHistogram metric.Float64Histogram
}

// NewPredictor creates a predictor with its own strategy instances so
// prediction passes never share state with analysis passes.
func NewPredictor(logger *zap.Logger, forecastHorizon int) *Predictor {
	tracer := otel.Tracer("crosslens-predictor")
	meter := otel.Meter("crosslens-predictor")

	predictionsTotal, err := meter.Int64Counter(
		"crosslens_predictions_total",
		metric.WithDescription("Total predictions generated"),
	)
	if err != nil {
		logger.Warn("Failed to create predictions counter", zap.Error(err))
	}

	confidenceHistogram, err := meter.Float64Histogram(
		"crosslens_prediction_confidence",
		metric.WithDescription("Prediction confidence distribution"),
	)
	if err != nil {
		logger.Warn("Failed to create confidence histogram", zap.Error(err))
	}

	return &Predictor{
		logger:              logger,
		extractor:           features.NewExtractor(),
		regression:          strategies.NewRegression(logger),
		timeSeries:          strategies.NewTimeSeries(logger, forecastHorizon),
		recommendations:     NewRecommendationGenerator(logger),
		tracer:              tracer,
		predictionsTotal:    predictionsTotal,
		confidenceHistogram: confidenceHistogram,
	}
}

// Predict produces a forecast for the request's target metric. patterns
// are the caller's previously identified patterns from the shared
// store; events are their recent history.
func (p *Predictor) Predict(ctx context.Context, request *domain.PredictionRequest, patterns []domain.IdentifiedPattern, events []*domain.Event) (*domain.PredictionResult, error) {
	ctx, span := p.tracer.Start(ctx, "predictor.predict")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", request.UserID),
		attribute.String("target_metric", request.TargetMetric),
	)

	// Fresh strategy pass scoped to the caller's context and the
	// target metric.
	scoped := scopeToMetric(scopeToContext(events, request.Context), request.TargetMetric)

	tsResult, err := p.timeSeries.Apply(ctx, scoped)
	if err != nil {
		return nil, fmt.Errorf("time-series pass: %w", err)
	}
	regResult, err := p.regression.Apply(ctx, scoped)
	if err != nil {
		return nil, fmt.Errorf("regression pass: %w", err)
	}

	value, confidence := p.combine(tsResult.TimeSeries, regResult.Regression, patterns)

	now := time.Now()
	result := &domain.PredictionResult{
		UserID:         request.UserID,
		TargetMetric:   request.TargetMetric,
		PredictedValue: value,
		Confidence:     confidence,
		Factors:        p.factors(regResult.Regression, scoped),
		Alternatives:   p.alternatives(value, confidence),
		CreatedAt:      now,
		ValidUntil:     now.Add(time.Duration(request.TimeHorizon) * time.Hour),
	}
	if request.IncludeRecommendations {
		result.Recommendations = p.recommendations.Generate(patterns)
	}

	if p.predictionsTotal != nil {
		p.predictionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("target_metric", request.TargetMetric),
		))
	}
	if p.confidenceHistogram != nil {
		p.confidenceHistogram.Record(ctx, confidence)
	}

	p.logger.Info("Prediction generated",
		zap.String("user_id", request.UserID),
		zap.String("target_metric", request.TargetMetric),
		zap.Float64("predicted_value", value),
		zap.Float64("confidence", confidence),
		zap.Time("valid_until", result.ValidUntil),
	)
	return result, nil
}

// scopeToContext narrows events to those observed under the caller's
// current conditions, so the forecast reflects comparable history. A
// context that matches nothing falls back to the full set.
func scopeToContext(events []*domain.Event, current domain.EventContext) []*domain.Event {
	if current.TimeOfDay == "" && current.DayOfWeek == "" {
		return events
	}
	scoped := make([]*domain.Event, 0, len(events))
	for _, event := range events {
		if current.TimeOfDay != "" && event.Context.TimeOfDay != current.TimeOfDay {
			continue
		}
		if current.DayOfWeek != "" && event.Context.DayOfWeek != current.DayOfWeek {
			continue
		}
		scoped = append(scoped, event)
	}
	if len(scoped) == 0 {
		return events
	}
	return scoped
}

// scopeToMetric narrows events to those carrying the target metric in
// their payload; when none do, the full set is used so sparse metrics
// still get a forecast from overall activity.
func scopeToMetric(events []*domain.Event, metric string) []*domain.Event {
	scoped := make([]*domain.Event, 0, len(events))
	for _, event := range events {
		if _, ok := event.Data[metric]; ok {
			scoped = append(scoped, event)
		}
	}
	if len(scoped) == 0 {
		return events
	}
	return scoped
}

// combine folds the strategy outputs and stored-pattern support into
// one (value, confidence) pair.
func (p *Predictor) combine(ts *strategies.TimeSeriesResult, reg *strategies.RegressionResult, patterns []domain.IdentifiedPattern) (float64, float64) {
	value := reg.Intercept
	if len(ts.Forecast) > 0 {
		sum := 0.0
		for _, v := range ts.Forecast {
			sum += v
		}
		forecastMean := sum / float64(len(ts.Forecast))
		value = 0.6*forecastMean + 0.4*reg.Intercept
	}

	confidence := 0.5*ts.Confidence + 0.5*reg.FitQuality

	// Stored patterns that agree with history lend support.
	if len(patterns) > 0 {
		sum := 0.0
		for _, pattern := range patterns {
			sum += pattern.Confidence
		}
		support := sum / float64(len(patterns))
		confidence = clamp01(0.7*confidence + 0.3*support)
	}
	return value, clamp01(confidence)
}

// factors names the contributing features by regression coefficient,
// attaching each one's recent historical series.
func (p *Predictor) factors(reg *strategies.RegressionResult, events []*domain.Event) []domain.PredictionFactor {
	// Normalize coefficient magnitudes into impacts.
	maxCoef := 0.0
	for _, coef := range reg.Coefficients {
		if a := math.Abs(coef); a > maxCoef {
			maxCoef = a
		}
	}

	factors := make([]domain.PredictionFactor, 0, len(reg.Coefficients))
	for i, coef := range reg.Coefficients {
		if coef == 0 || i >= len(features.Names) {
			continue
		}
		impact := 0.0
		if maxCoef > 0 {
			impact = math.Abs(coef) / maxCoef
		}
		factors = append(factors, domain.PredictionFactor{
			Name:       features.Names[i],
			Impact:     impact,
			Confidence: clamp01(reg.FitQuality),
			Historical: p.recentSeries(events, i),
		})
	}
	return factors
}

// recentSeries returns the last up-to-10 values of one feature column.
func (p *Predictor) recentSeries(events []*domain.Event, featureIndex int) []float64 {
	start := 0
	if len(events) > 10 {
		start = len(events) - 10
	}
	series := make([]float64, 0, len(events)-start)
	for _, event := range events[start:] {
		vector := p.extractor.Extract(event)
		series = append(series, vector[featureIndex])
	}
	return series
}

// alternatives derives the what-if scenarios around the base forecast.
func (p *Predictor) alternatives(value, confidence float64) []domain.AlternativeScenario {
	return []domain.AlternativeScenario{
		{
			Name:           "improved_conditions",
			PredictedValue: value * 1.15,
			Probability:    clamp01(confidence * 0.5),
			RequiredChanges: []string{
				"schedule work in the historically strongest time-of-day window",
				"reduce concurrent system load during focus sessions",
			},
		},
		{
			Name:           "degraded_conditions",
			PredictedValue: value * 0.85,
			Probability:    clamp01((1 - confidence) * 0.5),
			RequiredChanges: []string{
				"no change; applies if current interruption levels persist",
			},
		},
	}
}
