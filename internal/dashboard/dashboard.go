// internal/dashboard/dashboard.go
package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/plantworks/filteropt/internal/cache"
	"github.com/plantworks/filteropt/internal/monitor"
)

// Inspector is the read-only view the dashboard serves. Engine satisfies it
// for any record type.
type Inspector interface {
	CacheStats() cache.Stats
	PerformanceStats() monitor.Stats
	PerformanceAlerts() []monitor.Alert
}

// Dashboard serves JSON inspection endpoints over one engine instance.
type Dashboard struct {
	inspector Inspector
	logger    *zap.Logger
	registry  *prometheus.Registry
}

// New creates a dashboard. registry may be nil; the /metrics endpoint is
// only mounted when one is provided.
func New(inspector Inspector, logger *zap.Logger, registry *prometheus.Registry) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		inspector: inspector,
		logger:    logger,
		registry:  registry,
	}
}

// Router builds the HTTP routes.
func (d *Dashboard) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", d.handleHealth)
	r.Get("/stats/cache", d.handleCacheStats)
	r.Get("/stats/performance", d.handlePerformanceStats)
	r.Get("/alerts", d.handleAlerts)
	if d.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}
	return r
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	d.writeJSON(w, map[string]string{"status": "ok"})
}

func (d *Dashboard) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	d.writeJSON(w, d.inspector.CacheStats())
}

func (d *Dashboard) handlePerformanceStats(w http.ResponseWriter, r *http.Request) {
	d.writeJSON(w, d.inspector.PerformanceStats())
}

func (d *Dashboard) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := d.inspector.PerformanceAlerts()
	if alerts == nil {
		alerts = []monitor.Alert{}
	}
	d.writeJSON(w, alerts)
}

func (d *Dashboard) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.logger.Warn("dashboard response write failed", zap.Error(err))
	}
}
