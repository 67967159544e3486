// internal/monitor/monitor.go
package monitor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults
const (
	DefaultWindow            = time.Hour
	DefaultSlowThreshold     = time.Second
	DefaultCriticalThreshold = 2 * time.Second

	lowHitRateThreshold = 0.3
	maxSlowQueryCount   = 3
	topSlowest          = 10
	p95Quantile         = 0.95
)

// Alert severities
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Sample is one recorded filter evaluation.
type Sample struct {
	Timestamp     time.Time     `json:"timestamp"`
	Fingerprint   string        `json:"fingerprint"`
	ExecutionTime time.Duration `json:"execution_time"`
	ResultCount   int           `json:"result_count"`
	CacheHit      bool          `json:"cache_hit"`
}

// Stats aggregates the samples currently inside the retention window.
type Stats struct {
	SampleCount       int           `json:"sample_count"`
	MeanExecutionTime time.Duration `json:"mean_execution_time"`
	P95ExecutionTime  time.Duration `json:"p95_execution_time"`
	MeanResultCount   float64       `json:"mean_result_count"`
	CacheHitRatio     float64       `json:"cache_hit_ratio"`
	SlowQueries       []Sample      `json:"slow_queries,omitempty"`
}

// Alert is a threshold violation derived from current statistics. Alerts
// are recomputed on demand, never stored or pushed.
type Alert struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
}

// Config configures a monitor.
type Config struct {
	Window            time.Duration
	SlowThreshold     time.Duration
	CriticalThreshold time.Duration
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = DefaultSlowThreshold
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = DefaultCriticalThreshold
	}
}

// Monitor records timing, result-count and cache-hit samples in a rolling
// time window. Retention is enforced on every write; there is no purge
// timer. Monitoring must never break the filter flow, so Record captures
// internal panics into a stored error flag instead of propagating them.
type Monitor struct {
	mu      sync.Mutex
	config  Config
	samples []Sample
	now     func() time.Time
	lastErr error
}

// New creates a monitor with the given configuration.
func New(config Config) *Monitor {
	config.ApplyDefaults()
	return &Monitor{
		config: config,
		now:    time.Now,
	}
}

// Record appends a sample, stamping it when no timestamp is set, then
// purges samples older than the retention window.
func (m *Monitor) Record(s Sample) {
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.lastErr = fmt.Errorf("monitor: record failed: %v", r)
			m.mu.Unlock()
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Timestamp.IsZero() {
		s.Timestamp = m.now()
	}
	m.samples = append(m.samples, s)

	cutoff := m.now().Add(-m.config.Window)
	keep := m.samples[:0]
	for _, sample := range m.samples {
		if sample.Timestamp.After(cutoff) {
			keep = append(keep, sample)
		}
	}
	m.samples = keep
}

// Err returns the last internal monitoring failure, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Stats computes aggregates over the current window.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.samples)
	if n == 0 {
		return Stats{}
	}

	var totalTime time.Duration
	var totalResults int
	hits := 0
	var slow []Sample
	for _, s := range m.samples {
		totalTime += s.ExecutionTime
		totalResults += s.ResultCount
		if s.CacheHit {
			hits++
		}
		if s.ExecutionTime > m.config.SlowThreshold {
			slow = append(slow, s)
		}
	}

	sorted := make([]time.Duration, n)
	for i, s := range m.samples {
		sorted[i] = s.ExecutionTime
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	sort.Slice(slow, func(i, j int) bool { return slow[i].ExecutionTime > slow[j].ExecutionTime })
	if len(slow) > topSlowest {
		slow = slow[:topSlowest]
	}

	return Stats{
		SampleCount:       n,
		MeanExecutionTime: totalTime / time.Duration(n),
		P95ExecutionTime:  sorted[p95Index(n)],
		MeanResultCount:   float64(totalResults) / float64(n),
		CacheHitRatio:     float64(hits) / float64(n),
		SlowQueries:       slow,
	}
}

// p95Index selects the 95th-percentile position in a sorted slice of n
// durations.
func p95Index(n int) int {
	idx := int(float64(n) * p95Quantile)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Alerts derives threshold alerts from current statistics.
func (m *Monitor) Alerts() []Alert {
	stats := m.Stats()
	if stats.SampleCount == 0 {
		return nil
	}

	var alerts []Alert
	mean := stats.MeanExecutionTime

	switch {
	case mean > m.config.CriticalThreshold:
		alerts = append(alerts, Alert{
			ID:       uuid.NewString(),
			Severity: SeverityError,
			Message:  "mean filter execution time is critical",
			Details:  fmt.Sprintf("mean %v exceeds %v", mean, m.config.CriticalThreshold),
		})
	case mean >= m.config.SlowThreshold:
		alerts = append(alerts, Alert{
			ID:       uuid.NewString(),
			Severity: SeverityWarning,
			Message:  "mean filter execution time is elevated",
			Details:  fmt.Sprintf("mean %v exceeds %v", mean, m.config.SlowThreshold),
		})
	}

	if stats.CacheHitRatio < lowHitRateThreshold {
		alerts = append(alerts, Alert{
			ID:       uuid.NewString(),
			Severity: SeverityWarning,
			Message:  "cache hit ratio is low",
			Details:  fmt.Sprintf("hit ratio %.2f below %.2f", stats.CacheHitRatio, lowHitRateThreshold),
		})
	}

	if len(stats.SlowQueries) > maxSlowQueryCount {
		alerts = append(alerts, Alert{
			ID:       uuid.NewString(),
			Severity: SeverityWarning,
			Message:  "multiple slow filter queries in the current window",
			Details:  fmt.Sprintf("%d queries slower than %v", len(stats.SlowQueries), m.config.SlowThreshold),
		})
	}

	return alerts
}

// Window returns the configured retention window.
func (m *Monitor) Window() time.Duration {
	return m.config.Window
}
