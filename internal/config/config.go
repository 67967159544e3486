// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plantworks/filteropt/internal/engine"
)

// Config is the application configuration for the filter engine and its
// inspection dashboard. Every field has a default; a missing file or an
// empty document is valid.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	LogLevel  string          `yaml:"log_level"`
}

// EngineConfig mirrors engine.Options with YAML-friendly duration fields
// ("300ms", "5m").
type EngineConfig struct {
	DebounceDelay        Duration `yaml:"debounce_delay"`
	CacheCapacity        int      `yaml:"cache_capacity"`
	CacheTTL             Duration `yaml:"cache_ttl"`
	BatchSize            int      `yaml:"batch_size"`
	ProgressiveBatchSize int      `yaml:"progressive_batch_size"`
	MonitorWindow        Duration `yaml:"monitor_window"`
	SlowQueryThreshold   Duration `yaml:"slow_query_threshold"`
	CriticalThreshold    Duration `yaml:"critical_threshold"`
	MaxEstimatedResults  uint64   `yaml:"max_estimated_results"`
}

// Options converts to engine options with defaults applied.
func (e EngineConfig) Options() engine.Options {
	opts := engine.Options{
		DebounceDelay:        time.Duration(e.DebounceDelay),
		CacheCapacity:        e.CacheCapacity,
		CacheTTL:             time.Duration(e.CacheTTL),
		BatchSize:            e.BatchSize,
		ProgressiveBatchSize: e.ProgressiveBatchSize,
		MonitorWindow:        time.Duration(e.MonitorWindow),
		SlowQueryThreshold:   time.Duration(e.SlowQueryThreshold),
		CriticalThreshold:    time.Duration(e.CriticalThreshold),
		MaxEstimatedResults:  e.MaxEstimatedResults,
	}
	opts.ApplyDefaults()
	return opts
}

// DashboardConfig configures the inspection HTTP surface.
type DashboardConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// Duration unmarshals from either a Go duration string or integer
// nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: invalid duration node: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":9180"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads a YAML config file, applies env overrides, then defaults.
// A missing path yields the default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	LoadFromEnv(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}
