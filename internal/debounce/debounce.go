// internal/debounce/debounce.go
package debounce

import (
	"sync"
	"time"
)

// Defaults
const (
	DefaultDelay = 300 * time.Millisecond
	MinDelay     = 100 * time.Millisecond
	MaxDelay     = time.Second

	slowMean    = time.Second
	fastMean    = 100 * time.Millisecond
	historySize = 10
)

// Manager coalesces rapid successive invocations into one delayed call per
// logical key. Rescheduling a key always cancels its armed timer first, so
// the last call wins and earlier scheduled calls for that key never fire.
// The delay adapts to recent recorded execution times. Cannot fail.
type Manager struct {
	mu           sync.Mutex
	defaultDelay time.Duration
	pending      map[string]*pendingCall
	history      []time.Duration
}

type pendingCall struct {
	timer *time.Timer
	fn    func()
}

// NewManager creates a manager. A zero baseDelay falls back to DefaultDelay.
func NewManager(baseDelay time.Duration) *Manager {
	if baseDelay <= 0 {
		baseDelay = DefaultDelay
	}
	return &Manager{
		defaultDelay: baseDelay,
		pending:      make(map[string]*pendingCall),
	}
}

// Schedule arms (or re-arms) the key with the adaptive delay.
func (m *Manager) Schedule(key string, fn func()) {
	m.ScheduleDelay(key, fn, m.adaptiveDelay())
}

// ScheduleDelay arms (or re-arms) the key with an explicit delay.
func (m *Manager) ScheduleDelay(key string, fn func(), delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.pending[key]; ok {
		prev.timer.Stop()
	}

	p := &pendingCall{fn: fn}
	p.timer = time.AfterFunc(delay, func() { m.fire(key, p) })
	m.pending[key] = p
}

// fire runs a due call unless it has been superseded or cancelled.
func (m *Manager) fire(key string, p *pendingCall) {
	m.mu.Lock()
	if m.pending[key] != p {
		m.mu.Unlock()
		return
	}
	delete(m.pending, key)
	m.mu.Unlock()

	p.fn()
}

// RecordExecutionTime feeds the adaptive delay computation. Only the most
// recent entries are retained.
func (m *Manager) RecordExecutionTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, d)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

// adaptiveDelay doubles the base delay (capped) when recent executions are
// slow and halves it (floored) when they are fast.
func (m *Manager) adaptiveDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	delay := m.defaultDelay
	if len(m.history) == 0 {
		return delay
	}

	var total time.Duration
	for _, d := range m.history {
		total += d
	}
	mean := total / time.Duration(len(m.history))

	switch {
	case mean > slowMean:
		delay *= 2
		if delay > MaxDelay {
			delay = MaxDelay
		}
	case mean < fastMean:
		delay /= 2
		if delay < MinDelay {
			delay = MinDelay
		}
	}
	return delay
}

// CancelAll discards every scheduled-but-not-yet-started call.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, p := range m.pending {
		p.timer.Stop()
		delete(m.pending, key)
	}
}

// FlushAll runs every pending call immediately, in no particular order.
// A call whose timer fires during the flush still runs exactly once:
// removing the entry under the lock makes fire skip it, so the flush
// owns it regardless of what Stop reports.
func (m *Manager) FlushAll() {
	m.mu.Lock()
	calls := make([]func(), 0, len(m.pending))
	for key, p := range m.pending {
		p.timer.Stop()
		calls = append(calls, p.fn)
		delete(m.pending, key)
	}
	m.mu.Unlock()

	for _, fn := range calls {
		fn()
	}
}

// Pending returns the number of armed keys.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
