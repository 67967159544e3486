// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/plantworks/filteropt/internal/batch"
	"github.com/plantworks/filteropt/internal/cache"
	"github.com/plantworks/filteropt/internal/debounce"
	"github.com/plantworks/filteropt/internal/filter"
	"github.com/plantworks/filteropt/internal/metrics"
	"github.com/plantworks/filteropt/internal/monitor"
	"github.com/plantworks/filteropt/internal/optimize"
	"github.com/plantworks/filteropt/internal/progressive"
)

// ErrClosed indicates the engine has been shut down.
var ErrClosed = errors.New("engine: closed")

// Collaborators are the external contracts the surrounding application
// provides. DataLoader must be idempotent for identical arguments within
// the cache TTL window. BatchLoader results correspond positionally to the
// criteria list. Errors propagate to the caller of the invoking operation;
// the engine never retries.
type Collaborators[T any] struct {
	DataLoader     progressive.PageLoader[T]
	CountEstimator optimize.CountEstimator
	BatchLoader    batch.Loader[[]T]
}

// Engine is the filter performance optimization facade: one explicitly
// constructed, explicitly owned instance per consumer (no globals). UI
// panels wanting cross-panel cache reuse share one instance deliberately.
type Engine[T any] struct {
	opts   Options
	logger *zap.Logger
	meter  *metrics.Metrics

	optimizer   *optimize.Optimizer
	estimator   *optimize.Estimator
	results     *cache.ResultCache[[]T]
	debouncer   *debounce.Manager
	batcher     *batch.Processor[[]T]
	progressive *progressive.Loader[T]
	perf        *monitor.Monitor

	alertMu     sync.Mutex
	alertActive map[string]struct{}

	closed atomic.Bool
}

// New creates an engine over the given collaborators. A nil logger logs
// nothing; a nil meter records no metrics.
func New[T any](opts Options, collab Collaborators[T], logger *zap.Logger, meter *metrics.Metrics) *Engine[T] {
	opts.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	analyzer := optimize.NewAnalyzer(nil)
	return &Engine[T]{
		opts:      opts,
		logger:    logger,
		meter:     meter,
		optimizer: optimize.NewOptimizer(analyzer),
		estimator: optimize.NewEstimator(analyzer, collab.CountEstimator, opts.MaxEstimatedResults),
		results: cache.New[[]T](cache.Config{
			Capacity: opts.CacheCapacity,
			TTL:      opts.CacheTTL,
		}),
		debouncer: debounce.NewManager(opts.DebounceDelay),
		batcher: batch.NewProcessor[[]T](batch.Config{
			BatchSize: opts.BatchSize,
		}, collab.BatchLoader, logger),
		progressive: progressive.New[T](progressive.Config{
			BatchSize: opts.ProgressiveBatchSize,
		}, collab.DataLoader, logger),
		perf: monitor.New(monitor.Config{
			Window:            opts.MonitorWindow,
			SlowThreshold:     opts.SlowQueryThreshold,
			CriticalThreshold: opts.CriticalThreshold,
		}),
		alertActive: make(map[string]struct{}),
	}
}

// Execute runs the full filter flow for one criteria set: optimize, consult
// the cache, and on a miss load progressively and fill the cache. Every
// execution is recorded with the performance monitor and feeds the adaptive
// debounce delay.
func (e *Engine[T]) Execute(ctx context.Context, criteria filter.Criteria) ([]T, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	score := e.optimizer.Analyze(criteria)
	opt := e.optimizer.Optimize(criteria, score)
	c := opt.Criteria

	if len(opt.Optimizations) > 0 {
		e.logger.Debug("filter optimizations applied",
			zap.String("fingerprint", c.Fingerprint()),
			zap.Strings("optimizations", opt.Optimizations))
	}

	start := time.Now()
	if data, hit := e.results.Get(c); hit {
		e.observe(c, time.Since(start), len(data), true)
		return data, nil
	}

	data, err := e.progressive.Load(ctx, c, nil)
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Warn("filter load failed",
			zap.String("fingerprint", c.Fingerprint()),
			zap.String("complexity", score.Level),
			zap.Error(err))
		return nil, err
	}

	e.results.Set(c, data)
	e.observe(c, elapsed, len(data), false)
	return data, nil
}

// DebouncedExecute schedules fn for the key using the adaptive delay.
// Rescheduling the same key before the delay elapses discards the earlier
// call; the last one wins.
func (e *Engine[T]) DebouncedExecute(key string, fn func()) {
	if e.closed.Load() {
		return
	}
	e.debouncer.Schedule(key, fn)
}

// DebouncedExecuteDelay is DebouncedExecute with an explicit delay.
func (e *Engine[T]) DebouncedExecuteDelay(key string, fn func(), delay time.Duration) {
	if e.closed.Load() {
		return
	}
	e.debouncer.ScheduleDelay(key, fn, delay)
}

// CachedResult returns the cached result for the criteria, if any.
func (e *Engine[T]) CachedResult(criteria filter.Criteria) ([]T, bool) {
	return e.results.Get(criteria)
}

// StoreResult caches a result computed outside the engine's own flow.
func (e *Engine[T]) StoreResult(criteria filter.Criteria, data []T) {
	e.results.Set(criteria, data)
	e.meter.SetCacheSize(e.results.Len())
}

// InvalidateCache clears the whole result cache.
func (e *Engine[T]) InvalidateCache() {
	e.results.Invalidate()
	e.meter.SetCacheSize(0)
}

// InvalidateCriteria removes the exact-fingerprint entry for the criteria.
// Related or overlapping filters are deliberately not touched.
func (e *Engine[T]) InvalidateCriteria(criteria filter.Criteria) bool {
	removed := e.results.InvalidateCriteria(criteria)
	e.meter.SetCacheSize(e.results.Len())
	return removed
}

// LoadProgressive fetches the full result set in bounded windows with
// incremental progress, bypassing the cache. Concurrent calls for identical
// criteria share one in-flight load.
func (e *Engine[T]) LoadProgressive(ctx context.Context, criteria filter.Criteria, onProgress progressive.ProgressFunc) ([]T, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.progressive.Load(ctx, criteria, onProgress)
}

// ProcessBatch evaluates the criteria through the batch coalescer: requests
// arriving close together are grouped into fewer BatchLoader calls.
func (e *Engine[T]) ProcessBatch(ctx context.Context, criteria filter.Criteria) ([]T, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.batcher.Process(ctx, criteria)
}

// RecordOperation records one externally timed filter evaluation.
func (e *Engine[T]) RecordOperation(criteria filter.Criteria, d time.Duration, resultCount int, cacheHit bool) {
	e.observe(criteria, d, resultCount, cacheHit)
}

// MeasurePerformance times fn as one filter evaluation against the
// criteria, records the sample regardless of outcome, and propagates fn's
// result and error untouched.
func (e *Engine[T]) MeasurePerformance(criteria filter.Criteria, fn func() ([]T, error)) ([]T, error) {
	start := time.Now()
	data, err := fn()
	e.observe(criteria, time.Since(start), len(data), false)
	return data, err
}

// OptimizeQuery scores the criteria and returns the normalized copy with
// advisory notes and index hints.
func (e *Engine[T]) OptimizeQuery(criteria filter.Criteria) optimize.Optimized {
	return e.optimizer.Optimize(criteria, e.optimizer.Analyze(criteria))
}

// AnalyzeComplexity returns the complexity score for the criteria.
func (e *Engine[T]) AnalyzeComplexity(criteria filter.Criteria) optimize.Score {
	return e.optimizer.Analyze(criteria)
}

// OptimizationSuggestions returns the combined advisory output for the
// criteria.
func (e *Engine[T]) OptimizationSuggestions(criteria filter.Criteria) []string {
	return e.optimizer.Suggestions(criteria)
}

// EstimateResults runs the count estimator pre-check for the criteria.
func (e *Engine[T]) EstimateResults(ctx context.Context, criteria filter.Criteria) (optimize.Estimate, error) {
	if e.closed.Load() {
		return optimize.Estimate{}, ErrClosed
	}
	return e.estimator.Estimate(ctx, criteria)
}

// CacheStats returns current result cache statistics.
func (e *Engine[T]) CacheStats() cache.Stats {
	return e.results.Stats()
}

// PerformanceStats returns aggregate statistics over the monitor window.
func (e *Engine[T]) PerformanceStats() monitor.Stats {
	return e.perf.Stats()
}

// PerformanceAlerts derives threshold alerts from current statistics. The
// alerts metric counts condition onsets: a condition still present from the
// previous poll is not counted again, but one that clears and later
// re-fires is.
func (e *Engine[T]) PerformanceAlerts() []monitor.Alert {
	alerts := e.perf.Alerts()

	e.alertMu.Lock()
	current := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		current[a.Message] = struct{}{}
		if _, active := e.alertActive[a.Message]; !active {
			e.meter.CountAlert(a.Severity)
		}
	}
	e.alertActive = current
	e.alertMu.Unlock()

	return alerts
}

// MonitorErr reports the last internal monitoring failure, if any.
// Monitoring failures never propagate into the filter flow.
func (e *Engine[T]) MonitorErr() error {
	return e.perf.Err()
}

// Shutdown discards scheduled-but-not-started debounced work and marks the
// engine closed. In-flight loader calls are not cancelled; they complete
// and their waiters are served.
func (e *Engine[T]) Shutdown() {
	if e.closed.Swap(true) {
		return
	}
	e.debouncer.CancelAll()
	e.logger.Info("filter engine shut down",
		zap.Int("cached_entries", e.results.Len()))
}

// observe feeds one sample to the monitor, metrics, and adaptive debounce
// history.
func (e *Engine[T]) observe(criteria filter.Criteria, d time.Duration, resultCount int, cacheHit bool) {
	e.perf.Record(monitor.Sample{
		Fingerprint:   criteria.Fingerprint(),
		ExecutionTime: d,
		ResultCount:   resultCount,
		CacheHit:      cacheHit,
	})
	e.meter.ObserveQuery(d, cacheHit)
	e.meter.SetCacheSize(e.results.Len())
	if !cacheHit {
		e.debouncer.RecordExecutionTime(d)
	}
}
