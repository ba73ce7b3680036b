package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Everything the
// orchestrator needs is supplied here at construction; no hidden globals.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Stage    StageConfig    `yaml:"stage" mapstructure:"stage"`
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Quality  QualityConfig  `yaml:"quality" mapstructure:"quality"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backends.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	ArchivePath string `yaml:"archive_path" mapstructure:"archive_path"`
}

// StageConfig configures staging-dump retrieval.
type StageConfig struct {
	HTTPTimeoutSecs int     `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// MatchConfig holds the fuzzy-match weights and thresholds. The defaults
// are empirically chosen, not derived; treat them as tunable and
// validate against a labeled sample before changing.
type MatchConfig struct {
	NameWeight     float64 `yaml:"name_weight" mapstructure:"name_weight"`
	PositionWeight float64 `yaml:"position_weight" mapstructure:"position_weight"`
	SchoolWeight   float64 `yaml:"school_weight" mapstructure:"school_weight"`
	HighThreshold  float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	LowThreshold   float64 `yaml:"low_threshold" mapstructure:"low_threshold"`
}

// QualityConfig holds the quality-gate floors.
type QualityConfig struct {
	PassCompleteness float64 `yaml:"pass_completeness" mapstructure:"pass_completeness"`
	WarnCompleteness float64 `yaml:"warn_completeness" mapstructure:"warn_completeness"`
}

// PipelineConfig configures orchestrator behavior.
type PipelineConfig struct {
	BatchSize        int `yaml:"batch_size" mapstructure:"batch_size"`
	SoftDeadlineSecs int `yaml:"soft_deadline_secs" mapstructure:"soft_deadline_secs"`
	HistorySize      int `yaml:"history_size" mapstructure:"history_size"`
}

// SoftDeadline returns the overall run deadline, or zero when disabled.
func (p PipelineConfig) SoftDeadline() time.Duration {
	return time.Duration(p.SoftDeadlineSecs) * time.Second
}

// ServerConfig configures the monitoring server.
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
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one or AutomaticEnv cannot see it at
	// Unmarshal time.
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.archive_path", "prospect-etl.db")
	v.SetDefault("stage.http_timeout_secs", 60)
	v.SetDefault("stage.rate_limit_rps", 2.0)
	v.SetDefault("stage.user_agent", "prospect-etl/1.0")
	v.SetDefault("match.name_weight", 0.60)
	v.SetDefault("match.position_weight", 0.25)
	v.SetDefault("match.school_weight", 0.15)
	v.SetDefault("match.high_threshold", 90.0)
	v.SetDefault("match.low_threshold", 75.0)
	v.SetDefault("quality.pass_completeness", 0.95)
	v.SetDefault("quality.warn_completeness", 0.85)
	v.SetDefault("pipeline.batch_size", 500)
	v.SetDefault("pipeline.soft_deadline_secs", 1800)
	v.SetDefault("pipeline.history_size", 50)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
