// Package config loads and validates the service configuration from
// YAML or JSON files, applying defaults for anything unset.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	NATS     NATSConfig     `yaml:"nats" json:"nats"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig contains the REST listener settings.
type ServerConfig struct {
	Address        string `yaml:"address" json:"address"`
	Port           int    `yaml:"port" json:"port"`
	RequestTimeout int    `yaml:"request_timeout" json:"request_timeout"` // seconds
}

// AnalysisConfig tunes the analysis engine.
type AnalysisConfig struct {
	FreshnessWindow    int `yaml:"freshness_window" json:"freshness_window"`       // seconds
	BackgroundInterval int `yaml:"background_interval" json:"background_interval"` // seconds
	PredictionLookback int `yaml:"prediction_lookback" json:"prediction_lookback"` // hours
	ClusterCount       int `yaml:"cluster_count" json:"cluster_count"`
	ForecastHorizon    int `yaml:"forecast_horizon" json:"forecast_horizon"`
}

// StorageConfig selects the persistence engine. An empty DataDir keeps
// everything in memory.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// NATSConfig configures the event ingest subscriber.
type NATSConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	URL     string   `yaml:"url" json:"url"`
	Subject string   `yaml:"subject" json:"subject"`
	Systems []string `yaml:"systems" json:"systems"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Load reads configuration from a file, inferring the format from the
// extension and falling back to YAML then JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		err = yaml.Unmarshal(data, config)
		if err != nil {
			err = json.Unmarshal(data, config)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := &Config{}
	config.ApplyDefaults()
	return config
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30
	}
	if c.Analysis.FreshnessWindow == 0 {
		c.Analysis.FreshnessWindow = 3600
	}
	if c.Analysis.BackgroundInterval == 0 {
		c.Analysis.BackgroundInterval = 60
	}
	if c.Analysis.PredictionLookback == 0 {
		c.Analysis.PredictionLookback = 168
	}
	if c.Analysis.ClusterCount == 0 {
		c.Analysis.ClusterCount = 3
	}
	if c.Analysis.ForecastHorizon == 0 {
		c.Analysis.ForecastHorizon = 5
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "events.>"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout < 1 {
		return fmt.Errorf("request timeout must be at least 1 second")
	}
	if c.Analysis.BackgroundInterval < 1 {
		return fmt.Errorf("background interval must be at least 1 second")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}
