// internal/engine/options.go
package engine

import (
	"time"

	"github.com/plantworks/filteropt/internal/cache"
	"github.com/plantworks/filteropt/internal/debounce"
	"github.com/plantworks/filteropt/internal/monitor"
	"github.com/plantworks/filteropt/internal/optimize"
)

// Options configures one engine instance. Every field has a default;
// callers override only what they need and the rest is filled in at
// construction time. No option combination is invalid.
type Options struct {
	DebounceDelay        time.Duration
	CacheCapacity        int
	CacheTTL             time.Duration
	BatchSize            int
	ProgressiveBatchSize int
	MonitorWindow        time.Duration
	SlowQueryThreshold   time.Duration
	CriticalThreshold    time.Duration
	MaxEstimatedResults  uint64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		DebounceDelay:        debounce.DefaultDelay,
		CacheCapacity:        cache.DefaultCapacity,
		CacheTTL:             cache.DefaultTTL,
		BatchSize:            50,
		ProgressiveBatchSize: 50,
		MonitorWindow:        monitor.DefaultWindow,
		SlowQueryThreshold:   monitor.DefaultSlowThreshold,
		CriticalThreshold:    monitor.DefaultCriticalThreshold,
		MaxEstimatedResults:  optimize.DefaultMaxEstimatedResults,
	}
}

// ApplyDefaults fills every unset field, field by field. The progressive
// batch size mirrors the batch size unless set explicitly.
func (o *Options) ApplyDefaults() {
	def := DefaultOptions()
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = def.DebounceDelay
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = def.CacheCapacity
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = def.CacheTTL
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.ProgressiveBatchSize <= 0 {
		o.ProgressiveBatchSize = o.BatchSize
	}
	if o.MonitorWindow <= 0 {
		o.MonitorWindow = def.MonitorWindow
	}
	if o.SlowQueryThreshold <= 0 {
		o.SlowQueryThreshold = def.SlowQueryThreshold
	}
	if o.CriticalThreshold <= 0 {
		o.CriticalThreshold = def.CriticalThreshold
	}
	if o.MaxEstimatedResults == 0 {
		o.MaxEstimatedResults = def.MaxEstimatedResults
	}
}
