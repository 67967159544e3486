// internal/engine/engine_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantworks/filteropt/internal/filter"
	"github.com/plantworks/filteropt/internal/metrics"
	"github.com/plantworks/filteropt/internal/optimize"
	"github.com/plantworks/filteropt/internal/progressive"
)

// equipment is the record type the inventory UI lists.
type equipment struct {
	ID     string
	Name   string
	Type   string
	SiteID string
}

// testCollaborators serves a fixed per-site dataset and counts loader calls.
type testCollaborators struct {
	loads      int64
	batchCalls int64
}

func (tc *testCollaborators) rows(c filter.Criteria) []equipment {
	if len(c.SiteIDs) == 0 {
		return nil
	}
	out := make([]equipment, 0, 120)
	for i := 0; i < 120; i++ {
		out = append(out, equipment{
			ID:     fmt.Sprintf("%s-eq-%d", c.SiteIDs[0], i),
			Name:   fmt.Sprintf("Conveyor %d", i),
			Type:   "conveyor",
			SiteID: c.SiteIDs[0],
		})
	}
	return out
}

func (tc *testCollaborators) collab() Collaborators[equipment] {
	return Collaborators[equipment]{
		DataLoader: func(ctx context.Context, c filter.Criteria, offset, limit int) (progressive.Page[equipment], error) {
			atomic.AddInt64(&tc.loads, 1)
			data := tc.rows(c)
			end := offset + limit
			if end > len(data) {
				end = len(data)
			}
			if offset > len(data) {
				offset = len(data)
			}
			return progressive.Page[equipment]{Data: data[offset:end], Total: len(data)}, nil
		},
		CountEstimator: func(ctx context.Context, c filter.Criteria) (uint64, error) {
			return uint64(len(tc.rows(c))), nil
		},
		BatchLoader: func(ctx context.Context, criteria []filter.Criteria) ([][]equipment, error) {
			atomic.AddInt64(&tc.batchCalls, 1)
			out := make([][]equipment, len(criteria))
			for i, c := range criteria {
				out[i] = tc.rows(c)
			}
			return out, nil
		},
	}
}

func siteCriteria(id string) filter.Criteria {
	return filter.Criteria{SiteIDs: []string{id}}
}

func TestEngine_ExecuteFlow(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{ProgressiveBatchSize: 50}, tc.collab(), nil, nil)
	defer e.Shutdown()

	t.Run("miss loads and caches", func(t *testing.T) {
		rows, err := e.Execute(context.Background(), siteCriteria("plant-a"))
		require.NoError(t, err)
		assert.Len(t, rows, 120)

		stats := e.CacheStats()
		assert.Equal(t, 1, stats.Size)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("second execute hits the cache", func(t *testing.T) {
		before := atomic.LoadInt64(&tc.loads)

		rows, err := e.Execute(context.Background(), siteCriteria("plant-a"))
		require.NoError(t, err)
		assert.Len(t, rows, 120)

		assert.Equal(t, before, atomic.LoadInt64(&tc.loads), "no loader call on hit")
		assert.Equal(t, int64(1), e.CacheStats().Hits)
	})

	t.Run("samples are recorded", func(t *testing.T) {
		stats := e.PerformanceStats()
		assert.Equal(t, 2, stats.SampleCount)
		assert.InDelta(t, 0.5, stats.CacheHitRatio, 0.001)
	})
}

func TestEngine_ExecuteLoaderError(t *testing.T) {
	boom := errors.New("database down")
	collab := Collaborators[equipment]{
		DataLoader: func(ctx context.Context, c filter.Criteria, offset, limit int) (progressive.Page[equipment], error) {
			return progressive.Page[equipment]{}, boom
		},
	}
	e := New[equipment](Options{}, collab, nil, nil)
	defer e.Shutdown()

	_, err := e.Execute(context.Background(), siteCriteria("plant-a"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, e.CacheStats().Size, "failures are not cached")
}

func TestEngine_ExecuteNormalizesCriteria(t *testing.T) {
	var seenSearch string
	collab := Collaborators[equipment]{
		DataLoader: func(ctx context.Context, c filter.Criteria, offset, limit int) (progressive.Page[equipment], error) {
			seenSearch = c.SearchText
			return progressive.Page[equipment]{}, nil
		},
	}
	e := New[equipment](Options{}, collab, nil, nil)
	defer e.Shutdown()

	c := filter.Criteria{SearchText: strings.Repeat("x", 300)}
	_, err := e.Execute(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, seenSearch, 100, "over-long search text is truncated before loading")
}

func TestEngine_DebouncedExecute(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{DebounceDelay: 20 * time.Millisecond}, tc.collab(), nil, nil)
	defer e.Shutdown()

	var fired int64
	for i := 0; i < 5; i++ {
		e.DebouncedExecute("filters-panel", func() { atomic.AddInt64(&fired, 1) })
	}

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fired))
}

func TestEngine_ProcessBatch(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{}, tc.collab(), nil, nil)
	defer e.Shutdown()

	rows, err := e.ProcessBatch(context.Background(), siteCriteria("plant-b"))
	require.NoError(t, err)
	assert.Len(t, rows, 120)
	assert.Equal(t, "plant-b", rows[0].SiteID)
}

func TestEngine_EstimateResults(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{MaxEstimatedResults: 100}, tc.collab(), nil, nil)
	defer e.Shutdown()

	est, err := e.EstimateResults(context.Background(), siteCriteria("plant-a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(120), est.EstimatedCount)
	assert.False(t, est.ShouldProceed, "120 estimated over a threshold of 100")
	assert.NotEmpty(t, est.Warnings)
	assert.Equal(t, optimize.ConfidenceHigh, est.Confidence)
}

func TestEngine_MeasurePerformance(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{}, tc.collab(), nil, nil)
	defer e.Shutdown()

	boom := errors.New("custom path failed")
	_, err := e.MeasurePerformance(siteCriteria("plant-a"), func() ([]equipment, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, boom
	})

	assert.ErrorIs(t, err, boom, "wrapped errors propagate")
	assert.Equal(t, 1, e.PerformanceStats().SampleCount, "failed runs are still sampled")
}

func TestEngine_RecordOperationAndAlerts(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{}, tc.collab(), nil, nil)
	defer e.Shutdown()

	for i := 0; i < 5; i++ {
		e.RecordOperation(siteCriteria("plant-a"), 3*time.Second, 10, false)
	}

	alerts := e.PerformanceAlerts()
	require.NotEmpty(t, alerts)
	assert.Equal(t, "error", alerts[0].Severity)
	assert.NoError(t, e.MonitorErr())
}

func TestEngine_AlertMetricCountsOnsets(t *testing.T) {
	reg := prometheus.NewRegistry()
	tc := &testCollaborators{}
	e := New[equipment](Options{}, tc.collab(), nil, metrics.New(reg))
	defer e.Shutdown()

	for i := 0; i < 5; i++ {
		e.RecordOperation(siteCriteria("plant-a"), 3*time.Second, 10, false)
	}

	// The same persistent conditions polled repeatedly count once each.
	first := e.PerformanceAlerts()
	require.NotEmpty(t, first)
	e.PerformanceAlerts()
	e.PerformanceAlerts()

	assert.Equal(t, float64(1), alertCounter(t, reg, "error"))
	assert.Equal(t, float64(len(first)-1), alertCounter(t, reg, "warning"))
}

func alertCounter(t *testing.T, reg *prometheus.Registry, severity string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "filteropt_alerts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "severity" && l.GetValue() == severity {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestEngine_OptimizeAndSuggest(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{}, tc.collab(), nil, nil)
	defer e.Shutdown()

	after := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	before := after.AddDate(2, 0, 0)
	c := filter.Criteria{
		SiteIDs:         []string{"s1"},
		EquipmentTypes:  []string{"plc", "hmi"},
		InstalledAfter:  &after,
		InstalledBefore: &before,
	}

	opt := e.OptimizeQuery(c)
	assert.NotEmpty(t, opt.IndexHints)
	assert.NotEmpty(t, e.OptimizationSuggestions(c))
	assert.NotEmpty(t, e.AnalyzeComplexity(c).Level)
}

func TestEngine_CacheOperations(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{}, tc.collab(), nil, nil)
	defer e.Shutdown()

	c := siteCriteria("plant-a")
	rows := []equipment{{ID: "eq-1"}}

	e.StoreResult(c, rows)
	got, hit := e.CachedResult(c)
	require.True(t, hit)
	assert.Equal(t, rows, got)

	assert.True(t, e.InvalidateCriteria(c))
	_, hit = e.CachedResult(c)
	assert.False(t, hit)

	e.StoreResult(c, rows)
	e.InvalidateCache()
	assert.Equal(t, 0, e.CacheStats().Size)
}

func TestEngine_Shutdown(t *testing.T) {
	tc := &testCollaborators{}
	e := New[equipment](Options{DebounceDelay: 10 * time.Millisecond}, tc.collab(), nil, nil)

	var fired int64
	e.DebouncedExecute("panel", func() { atomic.AddInt64(&fired, 1) })
	e.Shutdown()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt64(&fired), "pending debounced work is discarded")

	_, err := e.Execute(context.Background(), siteCriteria("plant-a"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = e.ProcessBatch(context.Background(), siteCriteria("plant-a"))
	assert.ErrorIs(t, err, ErrClosed)

	e.Shutdown() // idempotent
}

func TestEngine_BatchOrdering(t *testing.T) {
	// Positional routing survives coalescing: each waiter gets the rows
	// for its own criteria.
	var batchCalls int64
	collab := Collaborators[equipment]{
		BatchLoader: func(ctx context.Context, criteria []filter.Criteria) ([][]equipment, error) {
			atomic.AddInt64(&batchCalls, 1)
			time.Sleep(10 * time.Millisecond)
			out := make([][]equipment, len(criteria))
			for i, c := range criteria {
				out[i] = []equipment{{SiteID: c.SiteIDs[0]}}
			}
			return out, nil
		},
	}
	e := New[equipment](Options{}, collab, nil, nil)
	defer e.Shutdown()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			id := fmt.Sprintf("site-%d", i)
			rows, err := e.ProcessBatch(context.Background(), siteCriteria(id))
			if err != nil {
				t.Errorf("batch %s: %v", id, err)
				return
			}
			if len(rows) != 1 || rows[0].SiteID != id {
				t.Errorf("batch %s resolved to %+v", id, rows)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Less(t, atomic.LoadInt64(&batchCalls), int64(8), "requests were coalesced")
}

func TestOptions_Defaults(t *testing.T) {
	var opts Options
	opts.ApplyDefaults()

	assert.Equal(t, 300*time.Millisecond, opts.DebounceDelay)
	assert.Equal(t, 100, opts.CacheCapacity)
	assert.Equal(t, 5*time.Minute, opts.CacheTTL)
	assert.Equal(t, 50, opts.BatchSize)
	assert.Equal(t, 50, opts.ProgressiveBatchSize)
	assert.Equal(t, time.Hour, opts.MonitorWindow)
	assert.Equal(t, time.Second, opts.SlowQueryThreshold)
	assert.Equal(t, 2*time.Second, opts.CriticalThreshold)
	assert.Equal(t, uint64(1000), opts.MaxEstimatedResults)
}

func TestOptions_PartialOverride(t *testing.T) {
	opts := Options{BatchSize: 10}
	opts.ApplyDefaults()

	assert.Equal(t, 10, opts.BatchSize)
	assert.Equal(t, 10, opts.ProgressiveBatchSize, "progressive batch size mirrors batch size")
	assert.Equal(t, 100, opts.CacheCapacity, "unset fields fall back to defaults")
}
