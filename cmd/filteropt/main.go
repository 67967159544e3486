// cmd/filteropt/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/plantworks/filteropt/internal/config"
	"github.com/plantworks/filteropt/internal/dashboard"
	"github.com/plantworks/filteropt/internal/engine"
	"github.com/plantworks/filteropt/internal/filter"
	"github.com/plantworks/filteropt/internal/metrics"
	"github.com/plantworks/filteropt/internal/progressive"
)

// equipmentRecord mirrors the inventory rows the web application lists.
type equipmentRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	SiteID       string `json:"site_id"`
	Manufacturer string `json:"manufacturer"`
	IPAddress    string `json:"ip_address"`
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfgPath := os.Getenv("FILTEROPT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	meter := metrics.New(registry)

	// A simulated inventory backs the demo binary; the real application
	// provides database-backed collaborators instead.
	store := newDemoStore(12, 400)
	eng := engine.New[equipmentRecord](cfg.Engine.Options(), store.collaborators(), logger, meter)
	defer eng.Shutdown()

	if cfgPath != "" {
		w, err := config.Watch(cfgPath, logger, func(next *config.Config) {
			logger.Info("config changed; restart to apply engine options",
				zap.String("log_level", next.LogLevel))
		})
		if err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	srv := &http.Server{
		Addr:              cfg.Dashboard.Addr,
		Handler:           dashboard.New(eng, logger, registry).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dashboard listening", zap.String("addr", cfg.Dashboard.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("dashboard server failed", zap.Error(err))
		}
	}()

	go runDemoWorkload(eng, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("dashboard shutdown failed", zap.Error(err))
	}
}

// runDemoWorkload drives a steady trickle of filter evaluations so the
// dashboard has live statistics to show.
func runDemoWorkload(eng *engine.Engine[equipmentRecord], logger *zap.Logger) {
	sites := []string{"plant-north", "plant-south", "plant-east"}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for i := 0; ; i++ {
		<-ticker.C
		criteria := filter.Criteria{
			SiteIDs: []string{sites[i%len(sites)]},
		}
		rows, err := eng.Execute(context.Background(), criteria)
		if err != nil {
			logger.Warn("demo query failed", zap.Error(err))
			continue
		}
		logger.Debug("demo query done",
			zap.String("site", criteria.SiteIDs[0]),
			zap.Int("rows", len(rows)))
	}
}

// demoStore is an in-memory inventory.
type demoStore struct {
	records []equipmentRecord
}

func newDemoStore(sites, perSite int) *demoStore {
	types := []string{"plc", "hmi", "drive", "robot", "conveyor", "sensor"}
	makers := []string{"Siemens", "Rockwell", "ABB", "Mitsubishi"}

	s := &demoStore{}
	for i := 0; i < sites; i++ {
		site := fmt.Sprintf("plant-%02d", i)
		for j := 0; j < perSite; j++ {
			s.records = append(s.records, equipmentRecord{
				ID:           fmt.Sprintf("%s-eq-%04d", site, j),
				Name:         fmt.Sprintf("%s unit %d", types[j%len(types)], j),
				Type:         types[j%len(types)],
				SiteID:       site,
				Manufacturer: makers[j%len(makers)],
				IPAddress:    fmt.Sprintf("10.%d.%d.%d", i, j/250, j%250+1),
			})
		}
	}
	// The named demo sites used by the workload loop.
	for _, site := range []string{"plant-north", "plant-south", "plant-east"} {
		for j := 0; j < perSite/2; j++ {
			s.records = append(s.records, equipmentRecord{
				ID:     fmt.Sprintf("%s-eq-%04d", site, j),
				Name:   fmt.Sprintf("machine %d", j),
				Type:   types[j%len(types)],
				SiteID: site,
			})
		}
	}
	return s
}

func (s *demoStore) match(c filter.Criteria) []equipmentRecord {
	var out []equipmentRecord
	for _, r := range s.records {
		if len(c.SiteIDs) > 0 && !contains(c.SiteIDs, r.SiteID) {
			continue
		}
		if len(c.EquipmentTypes) > 0 && !contains(c.EquipmentTypes, r.Type) {
			continue
		}
		if len(c.Manufacturers) > 0 && !contains(c.Manufacturers, r.Manufacturer) {
			continue
		}
		if c.SearchText != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(c.SearchText)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *demoStore) collaborators() engine.Collaborators[equipmentRecord] {
	return engine.Collaborators[equipmentRecord]{
		DataLoader: func(ctx context.Context, c filter.Criteria, offset, limit int) (progressive.Page[equipmentRecord], error) {
			matched := s.match(c)
			end := offset + limit
			if end > len(matched) {
				end = len(matched)
			}
			if offset > len(matched) {
				offset = len(matched)
			}
			return progressive.Page[equipmentRecord]{Data: matched[offset:end], Total: len(matched)}, nil
		},
		CountEstimator: func(ctx context.Context, c filter.Criteria) (uint64, error) {
			return uint64(len(s.match(c))), nil
		},
		BatchLoader: func(ctx context.Context, criteria []filter.Criteria) ([][]equipmentRecord, error) {
			out := make([][]equipmentRecord, len(criteria))
			for i, c := range criteria {
				out[i] = s.match(c)
			}
			return out, nil
		},
	}
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
