package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crosslens/crosslens/pkg/collectors"
	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/storage"
	"github.com/crosslens/crosslens/pkg/strategies"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ResultCache is the TTL store shared by the analysis and prediction
// paths. cache.TTLCache satisfies it; remote backends can be
// substituted and must degrade to misses on failure.
type ResultCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
}

// Config tunes the analysis service.
type Config struct {
	// FreshnessWindow is how long an analysis result stays fresh.
	FreshnessWindow time.Duration

	// RequestTimeout bounds one analyze/predict call. On expiry the
	// request returns a partial result instead of hanging.
	RequestTimeout time.Duration

	// BackgroundInterval is the period of the warm-up pass.
	BackgroundInterval time.Duration

	// PredictionLookback is how far back prediction passes read events.
	PredictionLookback time.Duration

	// ClusterCount and ForecastHorizon parameterize the strategies.
	ClusterCount    int
	ForecastHorizon int
}

func (c *Config) applyDefaults() {
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = time.Hour
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.BackgroundInterval <= 0 {
		c.BackgroundInterval = 60 * time.Second
	}
	if c.PredictionLookback <= 0 {
		c.PredictionLookback = 7 * 24 * time.Hour
	}
}

// Service is the cross-system pattern analysis engine. It is an
// explicit object constructed with injected dependencies so tests can
// substitute any of them and multiple instances can coexist.
type Service struct {
	config   Config
	logger   *zap.Logger
	registry *collectors.Registry
	patterns storage.PatternStore
	cache    ResultCache

	strategies      []strategies.Strategy
	identifier      *Identifier
	insights        *InsightGenerator
	recommendations *RecommendationGenerator
	correlations    *CorrelationFinder
	anomalies       *AnomalyDetector
	predictor       *Predictor

	// Concurrent misses for one cache key collapse into one computation.
	flight singleflight.Group

	tracer             trace.Tracer
	analysesTotal      metric.Int64Counter
	predictionsServed  metric.Int64Counter
	cacheHits          metric.Int64Counter
	processingDuration metric.Float64Histogram

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewService creates the analysis engine. All dependencies are
// required except strats, which defaults to the four reference
// strategies.
func NewService(config Config, registry *collectors.Registry, patterns storage.PatternStore, resultCache ResultCache, strats []strategies.Strategy, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("collector registry is required")
	}
	if patterns == nil {
		return nil, fmt.Errorf("pattern store is required")
	}
	if resultCache == nil {
		return nil, fmt.Errorf("result cache is required")
	}
	config.applyDefaults()

	if len(strats) == 0 {
		strats = []strategies.Strategy{
			strategies.NewClassification(logger),
			strategies.NewRegression(logger),
			strategies.NewClustering(logger, config.ClusterCount),
			strategies.NewTimeSeries(logger, config.ForecastHorizon),
		}
	}

	name := "crosslens-engine"
	tracer := otel.Tracer(name)
	meter := otel.Meter(name)

	analysesTotal, err := meter.Int64Counter(
		fmt.Sprintf("%s_analyses_total", name),
		metric.WithDescription("Total analysis passes completed"),
	)
	if err != nil {
		logger.Warn("Failed to create analyses counter", zap.Error(err))
	}
	predictionsServed, err := meter.Int64Counter(
		fmt.Sprintf("%s_predictions_total", name),
		metric.WithDescription("Total predictions served"),
	)
	if err != nil {
		logger.Warn("Failed to create predictions counter", zap.Error(err))
	}
	cacheHits, err := meter.Int64Counter(
		fmt.Sprintf("%s_cache_hits_total", name),
		metric.WithDescription("Requests served from the result cache"),
	)
	if err != nil {
		logger.Warn("Failed to create cache hits counter", zap.Error(err))
	}
	processingDuration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_processing_duration_ms", name),
		metric.WithDescription("Analysis processing duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Warn("Failed to create processing histogram", zap.Error(err))
	}

	return &Service{
		config:             config,
		logger:             logger,
		registry:           registry,
		patterns:           patterns,
		cache:              resultCache,
		strategies:         strats,
		identifier:         NewIdentifier(logger),
		insights:           NewInsightGenerator(logger),
		recommendations:    NewRecommendationGenerator(logger),
		correlations:       NewCorrelationFinder(logger),
		anomalies:          NewAnomalyDetector(logger),
		predictor:          NewPredictor(logger, config.ForecastHorizon),
		tracer:             tracer,
		analysesTotal:      analysesTotal,
		predictionsServed:  predictionsServed,
		cacheHits:          cacheHits,
		processingDuration: processingDuration,
		done:               make(chan struct{}),
	}, nil
}

// AnalyzePatterns runs the full pipeline for one request. A fresh
// cached result short-circuits the pipeline entirely.
func (s *Service) AnalyzePatterns(ctx context.Context, request *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("pattern analysis failed: %w", err)
	}

	key := request.CacheKey()
	if cached, ok := s.cache.Get(key); ok {
		if result, ok := cached.(*domain.AnalysisResult); ok &&
			time.Since(result.Metadata.LastUpdated) < s.config.FreshnessWindow {
			if s.cacheHits != nil {
				s.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "analysis")))
			}
			return result, nil
		}
	}

	value, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.runAnalysis(ctx, request, true)
	})
	if err != nil {
		return nil, err
	}
	return value.(*domain.AnalysisResult), nil
}

// runAnalysis executes the pipeline: collect, strategy pass, identify,
// derive artifacts, assemble and (optionally) cache. On request
// timeout it returns whatever artifacts were produced, marked partial
// and never cached.
func (s *Service) runAnalysis(ctx context.Context, request *domain.AnalysisRequest, cacheResult bool) (*domain.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "engine.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", request.UserID),
		attribute.StringSlice("systems", request.Systems),
	)

	start := time.Now()
	key := request.CacheKey()

	result := &domain.AnalysisResult{
		Patterns:                []domain.IdentifiedPattern{},
		Insights:                []domain.Insight{},
		Recommendations:         []domain.Recommendation{},
		CrossSystemCorrelations: []domain.Correlation{},
		Anomalies:               []domain.Anomaly{},
		Metadata: domain.AnalysisMetadata{
			CacheKey: key,
		},
	}

	finalize := func(partial bool) *domain.AnalysisResult {
		result.Metadata.LastUpdated = time.Now()
		result.Metadata.ProcessingTime = time.Since(start)
		result.Metadata.Partial = partial
		if s.processingDuration != nil {
			s.processingDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
		}
		if s.analysesTotal != nil {
			s.analysesTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("partial", partial)))
		}
		if !partial && cacheResult {
			s.cache.Set(key, result, s.config.FreshnessWindow)
		}
		return result
	}

	// Collect with per-adapter failure isolation.
	events, coverage := s.registry.CollectAll(ctx, request.Systems, request.UserID, request.TimeRange)
	result.Metadata.EventCount = len(events)
	result.Metadata.Coverage = coverage
	if len(events) == 0 {
		// Zero events after a deadline expiry means collection was cut
		// short, not that the window is empty. Mark it partial so the
		// result stays out of the cache and recovered sources are
		// retried on the next request.
		return finalize(ctx.Err() != nil), nil
	}

	// Strategies are pure over the event set, so run them in parallel.
	outputs := make([]*strategies.AlgorithmResult, len(s.strategies))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, strategy := range s.strategies {
		i, strategy := i, strategy
		group.Go(func() error {
			output, err := strategy.Apply(groupCtx, events)
			if err != nil {
				return fmt.Errorf("%s strategy: %w", strategy.Name(), err)
			}
			outputs[i] = output
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			// Request timeout: partial result, nothing derived yet.
			s.logger.Warn("Analysis timed out during strategy pass", zap.String("cache_key", key))
			return finalize(true), nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("pattern analysis failed: %w", err)
	}

	result.Patterns = s.identifier.Identify(outputs, request)
	s.storePatterns(ctx, request.UserID, result.Patterns)
	if ctx.Err() != nil {
		return finalize(true), nil
	}

	result.CrossSystemCorrelations = s.correlations.Find(events)
	if ctx.Err() != nil {
		return finalize(true), nil
	}

	result.Insights = s.insights.Generate(result.Patterns, result.CrossSystemCorrelations)
	result.Recommendations = s.recommendations.Generate(result.Patterns)
	if ctx.Err() != nil {
		return finalize(true), nil
	}

	result.Anomalies = s.anomalies.Detect(events)

	s.logger.Info("Analysis complete",
		zap.String("cache_key", key),
		zap.Int("events", len(events)),
		zap.Int("patterns", len(result.Patterns)),
		zap.Int("insights", len(result.Insights)),
		zap.Int("anomalies", len(result.Anomalies)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return finalize(false), nil
}

// storePatterns upserts derived patterns into the shared store.
// Store failures degrade (predictions lose support) rather than
// failing the analysis.
func (s *Service) storePatterns(ctx context.Context, userID string, patterns []domain.IdentifiedPattern) {
	for _, pattern := range patterns {
		if err := s.patterns.Upsert(ctx, userID, pattern); err != nil {
			s.logger.Warn("Failed to store pattern",
				zap.String("pattern_id", pattern.ID),
				zap.Error(err))
		}
	}
}

// PredictOutcome forecasts a target metric for a user. A cached,
// still-valid prediction is returned as-is; a stale one is evicted and
// recomputed.
func (s *Service) PredictOutcome(ctx context.Context, request *domain.PredictionRequest) (*domain.PredictionResult, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	key := request.CacheKey()
	if cached, ok := s.cache.Get(key); ok {
		if result, ok := cached.(*domain.PredictionResult); ok && !result.Expired(time.Now()) {
			if s.cacheHits != nil {
				s.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "prediction")))
			}
			return result, nil
		}
		s.cache.Delete(key)
	}

	value, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.runPrediction(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return value.(*domain.PredictionResult), nil
}

func (s *Service) runPrediction(ctx context.Context, request *domain.PredictionRequest) (*domain.PredictionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "engine.predict")
	defer span.End()

	// Stored patterns are supporting signal; a store outage degrades
	// confidence rather than failing the request.
	patterns, err := s.patterns.List(ctx, request.UserID)
	if err != nil {
		s.logger.Warn("Pattern store unavailable, predicting without stored patterns",
			zap.String("user_id", request.UserID),
			zap.Error(err))
		patterns = nil
	}

	now := time.Now()
	lookback := domain.TimeRange{Start: now.Add(-s.config.PredictionLookback), End: now}
	events, _ := s.registry.CollectAll(ctx, s.registry.Systems(), request.UserID, lookback)

	result, err := s.predictor.Predict(ctx, request, patterns, events)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	ttl := time.Duration(request.TimeHorizon) * time.Hour
	s.cache.Set(request.CacheKey(), result, ttl)

	if s.predictionsServed != nil {
		s.predictionsServed.Add(ctx, 1)
	}
	return result, nil
}

// Start launches the background warm-up loop. The loop stops when ctx
// is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.BackgroundInterval)
		defer ticker.Stop()

		s.logger.Info("Background analysis started",
			zap.Duration("interval", s.config.BackgroundInterval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.backgroundPass(ctx)
			}
		}
	}()
}

// backgroundPass runs one light global analysis to keep the shared
// pattern store warm. Failures are logged and swallowed so the next
// tick is unaffected.
func (s *Service) backgroundPass(ctx context.Context) {
	now := time.Now()
	request := &domain.AnalysisRequest{
		Systems:       s.registry.Systems(),
		TimeRange:     domain.TimeRange{Start: now.Add(-24 * time.Hour), End: now},
		MinConfidence: 0.5,
		MaxResults:    10,
	}

	// Bypass the result cache: the rolling time range would mint a new
	// key every tick, and the goal is store warm-up, not caching.
	if _, err := s.runAnalysis(ctx, request, false); err != nil {
		s.logger.Warn("Background analysis pass failed", zap.Error(err))
	}

	if purger, ok := s.cache.(interface{ Purge() int }); ok {
		if removed := purger.Purge(); removed > 0 {
			s.logger.Debug("Purged expired cache entries", zap.Int("removed", removed))
		}
	}
}

// Stop terminates the background loop and waits for it to exit.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}
