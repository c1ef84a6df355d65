package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fximport      FximportConfig       `yaml:"fximport"`
	Storage       StorageConfig        `yaml:"storage"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
	Backtest      BacktestConfig       `yaml:"backtest"`
	Charts        ChartsConfig         `yaml:"charts"`
	Archive       ArchiveConfig        `yaml:"archive"`
	Logging       LoggingConfig        `yaml:"logging"`
	Metrics       MetricsConfig        `yaml:"metrics"`
}

type FximportConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type StorageConfig struct {
	Backend string   `yaml:"backend"` // "s3" or "fs"
	FS      FSConfig `yaml:"fs"`
	S3      S3Config `yaml:"s3"`
}

type FSConfig struct {
	Root string `yaml:"root"`
}

type S3Config struct {
	Bucket            string `yaml:"bucket"`
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	PathStyle         bool   `yaml:"path_style"`
	Prefix            string `yaml:"prefix"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	BurstSize         int    `yaml:"burst_size"`
}

// SubscriptionConfig declares one imported data stream. Resolution is a Go
// duration string ("1m", "1h") standing in for the host-requested
// resolution; a granularity suffix on the alias overrides it.
type SubscriptionConfig struct {
	Alias      string `yaml:"alias"`
	Kind       string `yaml:"kind"` // "quotes" or "trades"
	Source     string `yaml:"source"`
	Resolution string `yaml:"resolution"`
}

// HostResolution parses the configured resolution; zero means "not set".
func (s SubscriptionConfig) HostResolution() (time.Duration, error) {
	if s.Resolution == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Resolution)
	if err != nil {
		return 0, fmt.Errorf("subscription %s: invalid resolution %q: %w", s.Alias, s.Resolution, err)
	}
	return d, nil
}

type BacktestConfig struct {
	Start  string        `yaml:"start"` // RFC3339 or YYYY-MM-DD, UTC
	End    string        `yaml:"end"`
	Cash   float64       `yaml:"cash"`
	Orders []OrderConfig `yaml:"orders"`
}

// OrderConfig scripts one order the example host loop submits during the
// run. At is the simulated submit time.
type OrderConfig struct {
	Symbol       string  `yaml:"symbol"`
	Type         string  `yaml:"type"`
	Direction    string  `yaml:"direction"`
	Quantity     int64   `yaml:"quantity"`
	LimitPrice   float64 `yaml:"limit_price"`
	StopPrice    float64 `yaml:"stop_price"`
	TriggerPrice float64 `yaml:"trigger_price"`
	At           string  `yaml:"at"`
}

type ChartsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"` // snappy, gzip or uncompressed
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Region     string `yaml:"region"`
	Namespace  string `yaml:"namespace"`
	Dashboard  string `yaml:"dashboard"`
}

// timeLayouts accepted for backtest.start/end and orders[].at.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// ParseTime parses a configured timestamp as UTC.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

// StartTime returns the parsed backtest start.
func (b BacktestConfig) StartTime() (time.Time, error) { return ParseTime(b.Start) }

// EndTime returns the parsed backtest end.
func (b BacktestConfig) EndTime() (time.Time, error) { return ParseTime(b.End) }

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Storage: StorageConfig{Backend: "fs", FS: FSConfig{Root: "data"}},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Charts:  ChartsConfig{Output: "charts.html"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.Backend == "s3" {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Fximport.Name == "" {
		return fmt.Errorf("fximport.name is required")
	}
	if cfg.Fximport.Version == "" {
		return fmt.Errorf("fximport.version is required")
	}

	switch cfg.Storage.Backend {
	case "fs":
		if cfg.Storage.FS.Root == "" {
			return fmt.Errorf("storage.fs.root is required for the fs backend")
		}
		if env := AppEnvironment(); IsProductionLike(env) {
			return fmt.Errorf("storage.backend 'fs' is not allowed in the %s environment, use 's3'", env)
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required for the s3 backend")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	default:
		return fmt.Errorf("storage.backend must be 'fs' or 's3', got '%s'", cfg.Storage.Backend)
	}

	if len(cfg.Subscriptions) == 0 {
		return fmt.Errorf("at least one subscription is required")
	}
	for _, sub := range cfg.Subscriptions {
		if sub.Alias == "" {
			return fmt.Errorf("subscription alias is required")
		}
		if sub.Kind != "quotes" && sub.Kind != "trades" {
			return fmt.Errorf("subscription %s: kind must be 'quotes' or 'trades'", sub.Alias)
		}
		if _, err := sub.HostResolution(); err != nil {
			return err
		}
	}

	if cfg.Backtest.Start == "" || cfg.Backtest.End == "" {
		return fmt.Errorf("backtest.start and backtest.end are required")
	}
	start, err := cfg.Backtest.StartTime()
	if err != nil {
		return fmt.Errorf("backtest.start: %w", err)
	}
	end, err := cfg.Backtest.EndTime()
	if err != nil {
		return fmt.Errorf("backtest.end: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("backtest.end must be after backtest.start")
	}

	for i, order := range cfg.Backtest.Orders {
		if order.Symbol == "" {
			return fmt.Errorf("backtest.orders[%d]: symbol is required", i)
		}
		if order.Quantity <= 0 {
			return fmt.Errorf("backtest.orders[%d]: quantity must be greater than 0", i)
		}
		if order.At != "" {
			if _, err := ParseTime(order.At); err != nil {
				return fmt.Errorf("backtest.orders[%d]: %w", i, err)
			}
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
