// Package config handles YAML configuration for tagsweep.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TAGSWEEP_"

var (
	// ErrNoRegions is returned when no region is configured.
	ErrNoRegions = errors.New("at least one region required")
	// ErrNoDatabase is returned when the database URL is empty.
	ErrNoDatabase = errors.New("database url required")
	// ErrNoTagKey is returned when the ownership tag key is empty.
	ErrNoTagKey = errors.New("tag_key must not be empty")
)

// DefaultKeepRuns is the number of journal runs kept when keep_runs is unset.
const DefaultKeepRuns = 100

// Config is the root configuration structure.
type Config struct {
	TagKey     string         `yaml:"tag_key" env:"TAG_KEY"`
	Regions    []string       `yaml:"regions" env:"REGIONS"`
	DenyOwners []string       `yaml:"deny_owners" env:"DENY_OWNERS"`
	Kinds      []string       `yaml:"kinds" env:"KINDS"`
	Filter     FilterConfig   `yaml:"filter" env:", prefix=FILTER_"`
	Database   DatabaseConfig `yaml:"database" env:", prefix=DATABASE_"`
	AWS        AWSConfig      `yaml:"aws" env:", prefix=AWS_"`
	Log        LogConfig      `yaml:"log" env:", prefix=LOG_"`
	OTEL       OTELConfig     `yaml:"otel" env:", prefix=OTEL_"`
	Journal    JournalConfig  `yaml:"journal" env:", prefix=JOURNAL_"`
	Daemon     DaemonConfig   `yaml:"daemon" env:", prefix=DAEMON_"`
}

// FilterConfig holds tag rules deciding which resources get a record.
type FilterConfig struct {
	IncludeTags map[string]string `yaml:"include_tags" env:"INCLUDE_TAGS"`
	ExcludeTags map[string]string `yaml:"exclude_tags" env:"EXCLUDE_TAGS"`
}

// DatabaseConfig holds the ownership store settings.
type DatabaseConfig struct {
	URL          string `yaml:"url" env:"URL"`
	Table        string `yaml:"table" env:"TABLE"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Profile string `yaml:"profile" env:"PROFILE"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // console or json
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool          `yaml:"insecure" env:"INSECURE"`
	ServiceName string        `yaml:"service_name" env:"SERVICE_NAME"`
	Traces      TracesConfig  `yaml:"traces" env:", prefix=TRACES_"`
	Metrics     MetricsConfig `yaml:"metrics" env:", prefix=METRICS_"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `yaml:"enabled" env:"ENABLED"`
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// JournalConfig holds the sweep history settings. An empty path disables it.
type JournalConfig struct {
	Path     string `yaml:"path" env:"PATH"`
	KeepRuns int64  `yaml:"keep_runs" env:"KEEP_RUNS"` // runs kept after each sweep
}

// DaemonConfig holds settings for repeated sweeps.
type DaemonConfig struct {
	IntervalStr string        `yaml:"interval" env:"INTERVAL"`
	Interval    time.Duration `yaml:"-"`
	MetricsAddr string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

// Load reads path (if not empty), overlays TAGSWEEP_* environment variables,
// and applies defaults.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWithLookuper(ctx, path, envconfig.OsLookuper())
}

// LoadWithLookuper is Load with a custom environment source.
func LoadWithLookuper(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, lookuper),
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.ParseInterval(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.TagKey == "" {
		cfg.TagKey = "customer"
	}
	if len(cfg.DenyOwners) == 0 {
		cfg.DenyOwners = []string{resource.UnknownOwner}
	}
	if cfg.Database.Table == "" {
		cfg.Database.Table = "aws_resources"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "tagsweep"
	}
	if cfg.Journal.KeepRuns == 0 {
		cfg.Journal.KeepRuns = DefaultKeepRuns
	}
	if cfg.Daemon.MetricsAddr == "" {
		cfg.Daemon.MetricsAddr = ":9090"
	}
}

// ParseInterval parses Daemon.IntervalStr into Daemon.Interval. An empty
// string means a single sweep.
func (c *Config) ParseInterval() error {
	if c.Daemon.IntervalStr == "" {
		c.Daemon.Interval = 0
		return nil
	}
	d, err := time.ParseDuration(c.Daemon.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", c.Daemon.IntervalStr, err)
	}
	c.Daemon.Interval = d
	return nil
}

// ResourceKinds parses Kinds into sweep order. An empty list selects every
// kind.
func (c *Config) ResourceKinds() ([]resource.Kind, error) {
	return resource.ParseKinds(strings.Join(c.Kinds, ","))
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.TagKey == "" {
		return ErrNoTagKey
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("aws: %w", ErrNoRegions)
	}
	for _, r := range c.Regions {
		if r == "" {
			return fmt.Errorf("aws: empty region name")
		}
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database: %w", ErrNoDatabase)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database: max_open_conns must not be negative (got %d)", c.Database.MaxOpenConns)
	}
	if _, err := c.ResourceKinds(); err != nil {
		return fmt.Errorf("kinds: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log: format must be console or json (got %q)", c.Log.Format)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	if c.Journal.KeepRuns < 0 {
		return fmt.Errorf("journal: keep_runs must not be negative (got %d)", c.Journal.KeepRuns)
	}
	if c.Daemon.Interval < 0 {
		return fmt.Errorf("daemon: interval must not be negative (got %s)", c.Daemon.Interval)
	}
	return nil
}
