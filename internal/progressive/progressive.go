// internal/progressive/progressive.go
package progressive

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/plantworks/filteropt/internal/filter"
)

// DefaultBatchSize is the window size for one loader call.
const DefaultBatchSize = 50

// Page is one loader window: the rows for [offset, offset+limit) plus the
// total matching count.
type Page[T any] struct {
	Data  []T
	Total int
}

// PageLoader fetches one offset/limit window for the criteria.
type PageLoader[T any] func(ctx context.Context, c filter.Criteria, offset, limit int) (Page[T], error)

// ProgressFunc reports incremental progress: rows loaded so far and the
// total reported by the first window.
type ProgressFunc func(loaded, total int)

// Config configures a loader.
type Config struct {
	BatchSize int
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// flight is one in-progress load, shared by every caller with the same
// criteria fingerprint.
type flight[T any] struct {
	done    chan struct{}
	results []T
	err     error
}

// Loader drives a PageLoader across successive windows, deduplicating
// concurrent requests for identical criteria: at most one load is in flight
// per fingerprint, and joiners share its outcome. A finished load clears
// its in-flight entry, so later calls fetch fresh data.
type Loader[T any] struct {
	mu       sync.Mutex
	inflight map[string]*flight[T]

	config Config
	load   PageLoader[T]
	logger *zap.Logger
}

// New creates a progressive loader bound to one page loader.
func New[T any](config Config, load PageLoader[T], logger *zap.Logger) *Loader[T] {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader[T]{
		inflight: make(map[string]*flight[T]),
		config:   config,
		load:     load,
		logger:   logger,
	}
}

// Load fetches the full result set for the criteria in bounded windows,
// invoking onProgress (when non-nil) after each window. Failures propagate
// with no partial results. Joining callers receive the shared outcome and
// no progress callbacks of their own; they must not mutate the returned
// slice.
func (l *Loader[T]) Load(ctx context.Context, criteria filter.Criteria, onProgress ProgressFunc) ([]T, error) {
	key := criteria.Fingerprint()

	l.mu.Lock()
	if f, ok := l.inflight[key]; ok {
		l.mu.Unlock()
		select {
		case <-f.done:
			return f.results, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &flight[T]{done: make(chan struct{})}
	l.inflight[key] = f
	l.mu.Unlock()

	results, err := l.loadAll(ctx, criteria, onProgress)

	l.mu.Lock()
	delete(l.inflight, key)
	l.mu.Unlock()

	f.results, f.err = results, err
	close(f.done)
	return results, err
}

// loadAll walks monotonically increasing offsets until the total reported
// by the first window is reached. An empty window short of the total ends
// the load without error; a shifting total must not hang us.
func (l *Loader[T]) loadAll(ctx context.Context, criteria filter.Criteria, onProgress ProgressFunc) ([]T, error) {
	var results []T
	total := 0

	for offset := 0; ; offset += l.config.BatchSize {
		page, err := l.load(ctx, criteria, offset, l.config.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("progressive: loading window at offset %d: %w", offset, err)
		}

		if offset == 0 {
			total = page.Total
			if results == nil && total > 0 {
				results = make([]T, 0, total)
			}
		}
		results = append(results, page.Data...)

		if onProgress != nil {
			onProgress(len(results), total)
		}

		if len(page.Data) == 0 || len(results) >= total {
			return results, nil
		}
	}
}

// InFlight returns the number of distinct criteria currently loading.
func (l *Loader[T]) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
