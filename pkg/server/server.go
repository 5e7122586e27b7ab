// Package server exposes the analysis engine over a thin REST surface:
// POST /api/v1/analyze, POST /api/v1/predict, plus health and metrics
// endpoints. Authentication and dashboards live with the surrounding
// application, not here.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Engine is the analysis service surface the handlers call.
type Engine interface {
	AnalyzePatterns(ctx context.Context, request *domain.AnalysisRequest) (*domain.AnalysisResult, error)
	PredictOutcome(ctx context.Context, request *domain.PredictionRequest) (*domain.PredictionResult, error)
}

// Config holds the listener settings.
type Config struct {
	Address string
	Port    int
}

// Server is the REST front for the engine.
type Server struct {
	config Config
	engine Engine
	logger *zap.Logger
	http   *http.Server

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the REST server.
func New(config Config, engine Engine, logger *zap.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Per-server registry so multiple instances never fight over metric
	// registration.
	registry := prometheus.NewRegistry()
	s := &Server{
		config: config,
		engine: engine,
		logger: logger,
		requestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "crosslens_http_requests_total",
			Help: "HTTP requests by handler and status code",
		}, []string{"handler", "code"}),
		requestDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crosslens_http_request_duration_seconds",
			Help:    "HTTP request duration by handler",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/analyze", s.instrument("analyze", s.handleAnalyze)).Methods(http.MethodPost)
	api.HandleFunc("/predict", s.instrument("predict", s.handlePredict)).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Address, config.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("REST server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(name string, next func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		code := next(w, r)
		s.requestsTotal.WithLabelValues(name, fmt.Sprintf("%d", code)).Inc()
		s.requestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}
