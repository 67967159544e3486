// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one engine instance. A nil
// *Metrics is valid and records nothing, so the engine works without a
// registry.
type Metrics struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheSize     prometheus.Gauge
	queriesTotal  prometheus.Counter
	queryDuration prometheus.Histogram
	alertsTotal   *prometheus.CounterVec
}

// New creates and registers the engine collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filteropt_cache_hits_total",
			Help: "Number of filter result cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filteropt_cache_misses_total",
			Help: "Number of filter result cache misses.",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "filteropt_cache_entries",
			Help: "Current number of entries in the filter result cache.",
		}),
		queriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filteropt_queries_total",
			Help: "Number of filter evaluations executed.",
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "filteropt_query_duration_seconds",
			Help:    "Filter evaluation latency.",
			Buckets: prometheus.DefBuckets,
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "filteropt_alerts_total",
			Help: "Number of performance alert conditions raised, by severity.",
		}, []string{"severity"}),
	}

	reg.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheSize,
		m.queriesTotal,
		m.queryDuration,
		m.alertsTotal,
	)
	return m
}

// ObserveQuery records one filter evaluation.
func (m *Metrics) ObserveQuery(d time.Duration, cacheHit bool) {
	if m == nil {
		return
	}
	m.queriesTotal.Inc()
	m.queryDuration.Observe(d.Seconds())
	if cacheHit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// SetCacheSize records the current cache entry count.
func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}

// CountAlert records one derived alert.
func (m *Metrics) CountAlert(severity string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(severity).Inc()
}
