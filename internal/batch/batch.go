// internal/batch/batch.go
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/plantworks/filteropt/internal/filter"
)

// DefaultBatchSize is the maximum number of criteria grouped into one
// loader call.
const DefaultBatchSize = 50

// ErrLengthMismatch indicates the loader returned a result list whose
// length does not match the criteria list it was given.
var ErrLengthMismatch = errors.New("batch: loader result length mismatch")

// Loader evaluates a group of criteria in one call. Results correspond
// positionally to the input; the returned slice must have the same length.
type Loader[T any] func(ctx context.Context, criteria []filter.Criteria) ([]T, error)

// Config configures a processor.
type Config struct {
	BatchSize int
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// request is owned by the processor until resolved exactly once.
type request[T any] struct {
	criteria filter.Criteria
	result   chan outcome[T]
}

type outcome[T any] struct {
	value T
	err   error
}

// Processor coalesces pending criteria evaluations into grouped loader
// calls, preserving per-request result and error routing. Requests are
// serviced in FIFO enqueue order across batch boundaries. A loader failure
// fails every request in that group; the loader is responsible for encoding
// partial failure internally if it needs to.
type Processor[T any] struct {
	mu      sync.Mutex
	queue   []*request[T]
	running bool

	config Config
	loader Loader[T]
	logger *zap.Logger
}

// NewProcessor creates a processor bound to one loader.
func NewProcessor[T any](config Config, loader Loader[T], logger *zap.Logger) *Processor[T] {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor[T]{
		config: config,
		loader: loader,
		logger: logger,
	}
}

// Process enqueues the criteria and blocks until its slot of the grouped
// loader call resolves, or ctx is done. A done context abandons the wait
// only; the in-flight group call itself is never cancelled.
func (p *Processor[T]) Process(ctx context.Context, criteria filter.Criteria) (T, error) {
	req := &request[T]{
		criteria: criteria,
		result:   make(chan outcome[T], 1),
	}

	p.mu.Lock()
	p.queue = append(p.queue, req)
	start := !p.running
	if start {
		p.running = true
	}
	p.mu.Unlock()

	if start {
		go p.run()
	}

	select {
	case out := <-req.result:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// run drains the queue in groups until it is empty, then goes idle.
func (p *Processor[T]) run() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.running = false
			p.mu.Unlock()
			return
		}
		n := len(p.queue)
		if n > p.config.BatchSize {
			n = p.config.BatchSize
		}
		group := p.queue[:n:n]
		p.queue = p.queue[n:]
		p.mu.Unlock()

		p.serve(group)
	}
}

func (p *Processor[T]) serve(group []*request[T]) {
	criteria := make([]filter.Criteria, len(group))
	for i, req := range group {
		criteria[i] = req.criteria
	}

	results, err := p.loader(context.Background(), criteria)
	if err == nil && len(results) != len(group) {
		err = fmt.Errorf("%w: got %d results for %d criteria", ErrLengthMismatch, len(results), len(group))
	}
	if err != nil {
		p.logger.Warn("batch load failed",
			zap.Int("group_size", len(group)),
			zap.Error(err))
		for _, req := range group {
			req.result <- outcome[T]{err: err}
		}
		return
	}

	for i, req := range group {
		req.result <- outcome[T]{value: results[i]}
	}
}

// Pending returns the number of enqueued, unserviced requests.
func (p *Processor[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
