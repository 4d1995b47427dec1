package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexuscore/tdbcore/storage/alloc"
)

// AllocatorConfig mirrors storage/alloc.Config's tunables so a deployment
// can override them from YAML instead of code.
type AllocatorConfig struct {
	DataDir               string  `yaml:"data_dir"`
	DisableSyncToDisk     bool    `yaml:"disable_sync_to_disk"`
	InitialSlabSizeBytes  int64   `yaml:"initial_slab_size_bytes"`
	SlabGrowthFactor      float64 `yaml:"slab_growth_factor"`
	MaxSlabSizeBytes      int64   `yaml:"max_slab_size_bytes"`
	PreallocateDisk       bool    `yaml:"preallocate_disk"`
}

// ToAllocConfig converts the YAML-decoded tuning into the alloc.Config the
// storage/alloc package's constructor takes.
func (a AllocatorConfig) ToAllocConfig() alloc.Config {
	cfg := alloc.DefaultConfig()
	cfg.DisableSyncToDisk = a.DisableSyncToDisk
	if a.InitialSlabSizeBytes > 0 {
		cfg.InitialSlabSize = int(a.InitialSlabSizeBytes)
	}
	if a.SlabGrowthFactor > 0 {
		cfg.SlabGrowthFactor = a.SlabGrowthFactor
	}
	if a.MaxSlabSizeBytes > 0 {
		cfg.MaxSlabSize = int(a.MaxSlabSizeBytes)
	}
	return cfg
}

// QueryConfig holds the query compiler's resource limits and its opt-in
// approximate-aggregate flag as decoded from YAML (SPEC_FULL.md §11). The
// query/compiler package takes no configuration and does not read these
// values: predicate depth is not limited and aggregates are not
// approximated.
type QueryConfig struct {
	MaxPredicateDepth         int   `yaml:"max_predicate_depth"`
	ApproximateAggregates     bool  `yaml:"approximate_aggregates"`
	ApproxAggregateMinSamples int64 `yaml:"approx_aggregate_min_samples"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// MetricsConfig holds the metrics settings decoded from YAML.
// storage/alloc.NewMetrics takes an OpenTelemetry meter directly and does
// not read this struct.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// DebugConfig holds debugging-related configurations.
type DebugConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	PProfEnabled  bool   `yaml:"pprof_enabled"`
}

// Config is the top-level configuration struct.
type Config struct {
	Allocator AllocatorConfig `yaml:"allocator"`
	Query     QueryConfig     `yaml:"query"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Debug     DebugConfig     `yaml:"debug"`
}

// ParseDuration converts raw into a duration, falling back to
// defaultDuration when raw is blank, "0", or not parseable by
// time.ParseDuration. logger, if non-nil, records why a fallback happened;
// a blank or zero input is not considered worth a warning since it's the
// normal way a deployment leaves a field unset.
func ParseDuration(raw string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if raw == "" || raw == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(raw)
	if err == nil {
		return d
	}
	if logger != nil {
		logger.Warn("could not parse duration, using default", "value", raw, "default", defaultDuration, "error", err)
	}
	return defaultDuration
}

// defaultConfig builds the tuning a deployment gets before any YAML
// overrides are applied.
func defaultConfig() *Config {
	return &Config{
		Allocator: AllocatorConfig{
			DataDir:              "./data",
			InitialSlabSizeBytes: 1 << 20,  // 1 MiB
			MaxSlabSizeBytes:     1 << 28,  // 256 MiB
			SlabGrowthFactor:     2.0,
			PreallocateDisk:      true,
		},
		Query: QueryConfig{
			MaxPredicateDepth:         64,
			ApproxAggregateMinSamples: 1_000_000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "tdbcore.log",
		},
		Tracing: TracingConfig{
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Interval: "15s",
		},
		Debug: DebugConfig{
			ListenAddress: "0.0.0.0:6060",
		},
	}
}

// Load decodes YAML from r on top of defaultConfig's values, so a partial
// document only overrides the fields it mentions. A nil reader, or one
// that produces no bytes, yields the defaults untouched — treated the same
// as "no config file was supplied" rather than an error.
func Load(r io.Reader) (*Config, error) {
	cfg := defaultConfig()
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: reading input: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	return cfg, nil
}

// LoadConfig opens path and decodes it via Load. A missing file is not an
// error: it just means the deployment is running on defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
