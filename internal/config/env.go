// internal/config/env.go
package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overrides configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FILTEROPT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FILTEROPT_DASHBOARD_ADDR"); v != "" {
		cfg.Dashboard.Addr = v
	}

	if v := os.Getenv("FILTEROPT_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.CacheCapacity = n
		}
	}
	if v := os.Getenv("FILTEROPT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.CacheTTL = Duration(d)
		}
	}
	if v := os.Getenv("FILTEROPT_DEBOUNCE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.DebounceDelay = Duration(d)
		}
	}
	if v := os.Getenv("FILTEROPT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.BatchSize = n
		}
	}
}

// GetEnvOrDefault returns an environment variable or a default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
