package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Blob     BlobConfig     `yaml:"blob" mapstructure:"blob"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PipelineConfig configures a reconciliation run.
type PipelineConfig struct {
	User             string `yaml:"user" mapstructure:"user"`
	Workers          int    `yaml:"workers" mapstructure:"workers"`
	SchemesDir       string `yaml:"schemes_dir" mapstructure:"schemes_dir"`
	PlansFile        string `yaml:"plans_file" mapstructure:"plans_file"`
	AnnotationPrefix string `yaml:"annotation_prefix" mapstructure:"annotation_prefix"`
	LocationTable    string `yaml:"location_table" mapstructure:"location_table"`
	FilterNoise      bool   `yaml:"filter_noise" mapstructure:"filter_noise"`
}

// BlobConfig selects where record and annotation files live.
type BlobConfig struct {
	Driver      string    `yaml:"driver" mapstructure:"driver"`
	Root        string    `yaml:"root" mapstructure:"root"`
	MaxAttempts int       `yaml:"max_attempts" mapstructure:"max_attempts"`
	S3          S3Config  `yaml:"s3" mapstructure:"s3"`
	FTP         FTPConfig `yaml:"ftp" mapstructure:"ftp"`
}

// S3Config holds S3 bucket settings.
type S3Config struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
}

// FTPConfig holds FTP server settings for the ftp blob driver.
type FTPConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	User     string        `yaml:"user" mapstructure:"user"`
	Password string        `yaml:"password" mapstructure:"password"`
	Root     string        `yaml:"root" mapstructure:"root"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MetricsConfig configures the prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (if present) and environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from path and environment. An empty path
// searches the working directory for an optional config.yaml; an explicit
// path must exist.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("SURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pipeline.user", "survey-cli")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.schemes_dir", "code_schemes")
	v.SetDefault("pipeline.plans_file", "coding_plans.yaml")
	v.SetDefault("pipeline.annotation_prefix", "coda")
	v.SetDefault("pipeline.location_table", "")
	v.SetDefault("pipeline.filter_noise", false)
	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.root", "data")
	v.SetDefault("blob.max_attempts", 3)
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("blob.ftp.root", "/")
	v.SetDefault("blob.ftp.timeout", "30s")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "survey.db")
	v.SetDefault("metrics.textfile", "")
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

// Validate checks the settings a command needs. mode is one of "run",
// "export" or "history".
func (c *Config) Validate(mode string) error {
	var errs []string
	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	requireBlob := func() {
		switch c.Blob.Driver {
		case "", "fs", "memory":
		case "s3":
			if c.Blob.S3.Bucket == "" {
				errs = append(errs, "blob.s3.bucket is required for the s3 driver")
			}
		case "ftp":
			if c.Blob.FTP.Addr == "" {
				errs = append(errs, "blob.ftp.addr is required for the ftp driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("blob.driver %q must be fs, s3, ftp or memory", c.Blob.Driver))
		}
	}
	requireRegistry := func() {
		if c.Pipeline.SchemesDir == "" {
			errs = append(errs, "pipeline.schemes_dir is required")
		}
		if c.Pipeline.PlansFile == "" {
			errs = append(errs, "pipeline.plans_file is required")
		}
	}

	switch mode {
	case "run":
		requireRegistry()
		requireBlob()
		requireStore()
		if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 64 {
			errs = append(errs, fmt.Sprintf("pipeline.workers must be between 1 and 64, got %d", c.Pipeline.Workers))
		}
		if c.Pipeline.User == "" {
			errs = append(errs, "pipeline.user is required")
		}
	case "export":
		requireRegistry()
		requireBlob()
	case "history":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
