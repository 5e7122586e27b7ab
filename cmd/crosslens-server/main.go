package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/crosslens/crosslens/pkg/analysis"
	"github.com/crosslens/crosslens/pkg/cache"
	"github.com/crosslens/crosslens/pkg/collectors"
	"github.com/crosslens/crosslens/pkg/config"
	"github.com/crosslens/crosslens/pkg/ingest"
	"github.com/crosslens/crosslens/pkg/server"
	"github.com/crosslens/crosslens/pkg/storage"
)

const version = "1.0.0"

var (
	configPath string
	port       int
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crosslens-server",
		Short: "Cross-system pattern intelligence service",
		Long: `Crosslens ingests behavioral and performance events from independent
subsystems (work sessions, learning capture, runtime telemetry, cache
instrumentation, file operations), discovers recurring statistical
patterns across them, and serves cross-system pattern analysis and
time-bounded outcome prediction over a REST API.`,
		Version: version,
		RunE:    run,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "REST API port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	viper.SetEnvPrefix("CROSSLENS")
	viper.AutomaticEnv()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, patterns, closeStores, err := buildStores(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	registry := collectors.NewRegistry(logger,
		collectors.NewLearning(records, logger),
		collectors.NewSessions(records, logger),
		collectors.NewAnalytics(records, logger),
		collectors.NewCacheStats(records, logger),
		collectors.NewFileOps(records, logger),
	)

	engine, err := analysis.NewService(analysis.Config{
		FreshnessWindow:    time.Duration(cfg.Analysis.FreshnessWindow) * time.Second,
		RequestTimeout:     time.Duration(cfg.Server.RequestTimeout) * time.Second,
		BackgroundInterval: time.Duration(cfg.Analysis.BackgroundInterval) * time.Second,
		PredictionLookback: time.Duration(cfg.Analysis.PredictionLookback) * time.Hour,
		ClusterCount:       cfg.Analysis.ClusterCount,
		ForecastHorizon:    cfg.Analysis.ForecastHorizon,
	}, registry, patterns, cache.New(), nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create analysis engine: %w", err)
	}
	engine.Start(ctx)
	defer engine.Stop()

	if cfg.NATS.Enabled {
		subscriber, err := ingest.NewSubscriber(ingest.SubscriberConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Systems: cfg.NATS.Systems,
		}, records, logger)
		if err != nil {
			return fmt.Errorf("failed to create ingest subscriber: %w", err)
		}
		if err := subscriber.Start(ctx); err != nil {
			return fmt.Errorf("failed to start ingest subscriber: %w", err)
		}
		defer subscriber.Stop() //nolint:errcheck
	}

	rest, err := server.New(server.Config{
		Address: cfg.Server.Address,
		Port:    cfg.Server.Port,
	}, engine, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- rest.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := rest.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	// Flag and environment overrides.
	if port != 0 {
		cfg.Server.Port = port
	} else if envPort := viper.GetInt("PORT"); envPort != 0 {
		cfg.Server.Port = envPort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func buildLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	return zapConfig.Build()
}

// buildStores selects the storage engines. With a data directory one
// Badger database backs both stores, so close runs once.
func buildStores(cfg *config.Config, logger *zap.Logger) (storage.RecordStore, storage.PatternStore, func(), error) {
	if cfg.Storage.DataDir == "" {
		records := storage.NewMemoryRecordStore()
		patterns := storage.NewMemoryPatternStore()
		return records, patterns, func() {
			records.Close()  //nolint:errcheck
			patterns.Close() //nolint:errcheck
		}, nil
	}
	store, err := storage.NewBadgerStore(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}, nil
}
