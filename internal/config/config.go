// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Sources    []SourceConfig   `yaml:"sources" mapstructure:"sources"`
	Archive    ArchiveConfig    `yaml:"archive" mapstructure:"archive"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures orchestrator behavior.
type PipelineConfig struct {
	FailureMode      string `yaml:"failure_mode" mapstructure:"failure_mode"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs   int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	StageTimeoutSecs int    `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	HistorySize      int    `yaml:"history_size" mapstructure:"history_size"`
}

// ReconcileConfig configures identity matching and authority resolution.
type ReconcileConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	AuthorityPath       string  `yaml:"authority_path" mapstructure:"authority_path"`
}

// QualityConfig configures the quality rules engine.
type QualityConfig struct {
	MinSampleSize int `yaml:"min_sample_size" mapstructure:"min_sample_size"`
}

// SourceConfig declares one configured collector.
type SourceConfig struct {
	Name      string  `yaml:"name" mapstructure:"name"`
	Type      string  `yaml:"type" mapstructure:"type"` // csv or xlsx
	Path      string  `yaml:"path" mapstructure:"path"`
	Sheet     string  `yaml:"sheet" mapstructure:"sheet"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ArchiveConfig configures the snapshot/archive stage.
type ArchiveConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MonitoringConfig configures alerting thresholds and transport.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackLimit        int     `yaml:"lookback_limit" mapstructure:"lookback_limit"`
}

// ServerConfig configures the query server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "scoutsync.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.failure_mode", "fail_fast")
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.retry_delay_secs", 2)
	v.SetDefault("pipeline.stage_timeout_secs", 300)
	v.SetDefault("pipeline.history_size", 50)
	v.SetDefault("reconcile.similarity_threshold", 0.85)
	v.SetDefault("reconcile.authority_path", "authority.yaml")
	v.SetDefault("quality.min_sample_size", 5)
	v.SetDefault("archive.dir", "snapshots")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_limit", 50)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
