package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	cnserrors "github.com/snapshotalyzer/shotty/pkg/errors"
)

const (
	DefaultProfile             = "shotty"
	DefaultSnapshotDescription = "Created by SnapshotAlyzer 3000"

	EnvProfile     = "SHOTTY_PROFILE"
	EnvRegion      = "AWS_REGION"
	EnvWaitTimeout = "SHOTTY_WAIT_TIMEOUT"
	EnvLogLevel    = "LOG_LEVEL"
	EnvMetricsFile = "SHOTTY_METRICS_FILE"
)

// Config is the immutable shotty configuration.
type Config struct {
	profile             string
	region              string
	snapshotDescription string
	waitTimeout         time.Duration
	rateLimit           rate.Limit
	rateLimitBurst      int
	logLevel            string
	metricsFile         string
}

// Option configures a Config.
type Option func(*Config)

// WithProfile sets the AWS shared config profile.
func WithProfile(profile string) Option {
	return func(c *Config) {
		c.profile = profile
	}
}

// WithRegion sets the AWS region. Empty keeps the profile's region.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.region = region
	}
}

// WithSnapshotDescription sets the description attached to created snapshots.
func WithSnapshotDescription(desc string) Option {
	return func(c *Config) {
		c.snapshotDescription = desc
	}
}

// WithWaitTimeout bounds stop/start waits. Zero waits without limit.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.waitTimeout = d
	}
}

// WithRateLimit throttles provider calls to limit per second with burst.
// A zero limit disables throttling.
func WithRateLimit(limit float64, burst int) Option {
	return func(c *Config) {
		c.rateLimit = rate.Limit(limit)
		c.rateLimitBurst = burst
	}
}

// WithLogLevel sets the log level name.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.logLevel = level
	}
}

// WithMetricsFile sets the path sweep metrics are written to in the
// Prometheus text format. Empty disables the write.
func WithMetricsFile(path string) Option {
	return func(c *Config) {
		c.metricsFile = path
	}
}

// NewConfig returns a Config with built-in defaults and the given options applied.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		profile:             DefaultProfile,
		snapshotDescription: DefaultSnapshotDescription,
		rateLimitBurst:      1,
		logLevel:            slog.LevelInfo.String(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile returns the AWS shared config profile.
func (c *Config) Profile() string { return c.profile }

// Region returns the AWS region, empty if the profile's region should be used.
func (c *Config) Region() string { return c.region }

// SnapshotDescription returns the description attached to created snapshots.
func (c *Config) SnapshotDescription() string { return c.snapshotDescription }

// WaitTimeout returns the stop/start wait bound; zero means unbounded.
func (c *Config) WaitTimeout() time.Duration { return c.waitTimeout }

// RateLimit returns the provider call rate limit; zero means unlimited.
func (c *Config) RateLimit() rate.Limit { return c.rateLimit }

// RateLimitBurst returns the provider call burst size.
func (c *Config) RateLimitBurst() int { return c.rateLimitBurst }

// LogLevel returns the configured log level name.
func (c *Config) LogLevel() string { return c.logLevel }

// MetricsFile returns the metrics text file path, empty if disabled.
func (c *Config) MetricsFile() string { return c.metricsFile }

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.snapshotDescription) == "" {
		return fmt.Errorf("snapshot description must not be empty")
	}
	if c.waitTimeout < 0 {
		return fmt.Errorf("wait timeout must not be negative: %s", c.waitTimeout)
	}
	if c.rateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative: %v", c.rateLimit)
	}
	if c.rateLimit > 0 && c.rateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1 when rate limiting, got %d", c.rateLimitBurst)
	}
	return nil
}

// fileConfig is the on-disk YAML layout.
type fileConfig struct {
	Profile             string        `yaml:"profile"`
	Region              string        `yaml:"region"`
	SnapshotDescription string        `yaml:"snapshotDescription"`
	WaitTimeout         time.Duration `yaml:"waitTimeout"`
	RateLimit           float64       `yaml:"rateLimit"`
	RateLimitBurst      int           `yaml:"rateLimitBurst"`
	LogLevel            string        `yaml:"logLevel"`
	MetricsFile         string        `yaml:"metricsFile"`
}

// FileOptions reads a YAML config file and returns the options it sets.
// Keys absent from the file produce no option.
func FileOptions(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	var opts []Option
	if fc.Profile != "" {
		opts = append(opts, WithProfile(fc.Profile))
	}
	if fc.Region != "" {
		opts = append(opts, WithRegion(fc.Region))
	}
	if fc.SnapshotDescription != "" {
		opts = append(opts, WithSnapshotDescription(fc.SnapshotDescription))
	}
	if fc.WaitTimeout != 0 {
		opts = append(opts, WithWaitTimeout(fc.WaitTimeout))
	}
	if fc.RateLimit != 0 {
		burst := fc.RateLimitBurst
		if burst == 0 {
			burst = 1
		}
		opts = append(opts, WithRateLimit(fc.RateLimit, burst))
	}
	if fc.LogLevel != "" {
		opts = append(opts, WithLogLevel(fc.LogLevel))
	}
	if fc.MetricsFile != "" {
		opts = append(opts, WithMetricsFile(fc.MetricsFile))
	}
	return opts, nil
}

// EnvOptions returns the options set by environment variables.
func EnvOptions() []Option {
	var opts []Option
	if v := os.Getenv(EnvProfile); v != "" {
		opts = append(opts, WithProfile(v))
	}
	if v := os.Getenv(EnvRegion); v != "" {
		opts = append(opts, WithRegion(v))
	}
	if v := os.Getenv(EnvWaitTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts = append(opts, WithWaitTimeout(d))
		} else {
			slog.Warn("ignoring invalid wait timeout", "env", EnvWaitTimeout, "value", v, "error", err)
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		opts = append(opts, WithLogLevel(v))
	}
	if v := os.Getenv(EnvMetricsFile); v != "" {
		opts = append(opts, WithMetricsFile(v))
	}
	return opts
}

// Load builds a Config from defaults, the optional file at path, the
// environment and opts, in that order, and validates it. Failures carry
// ErrCodeInvalidRequest.
func Load(path string, opts ...Option) (*Config, error) {
	var all []Option
	if path != "" {
		fileOpts, err := FileOptions(path)
		if err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest, "invalid configuration file", err)
		}
		all = append(all, fileOpts...)
	}
	all = append(all, EnvOptions()...)
	all = append(all, opts...)

	cfg := NewConfig(all...)
	if err := cfg.Validate(); err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest, "invalid configuration", err)
	}
	return cfg, nil
}
