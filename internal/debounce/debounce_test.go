// internal/debounce/debounce_test.go
package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleCollapsesToLastCall(t *testing.T) {
	m := NewManager(30 * time.Millisecond)

	var fired int64
	var last int64
	for i := 1; i <= 5; i++ {
		i := i
		m.Schedule("panel", func() {
			atomic.AddInt64(&fired, 1)
			atomic.StoreInt64(&last, int64(i))
		})
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt64(&fired); got != 1 {
		t.Errorf("expected exactly 1 execution, got %d", got)
	}
	if got := atomic.LoadInt64(&last); got != 5 {
		t.Errorf("expected last call to win, got call %d", got)
	}
}

func TestDistinctKeysFireIndependently(t *testing.T) {
	m := NewManager(20 * time.Millisecond)

	var fired int64
	m.Schedule("a", func() { atomic.AddInt64(&fired, 1) })
	m.Schedule("b", func() { atomic.AddInt64(&fired, 1) })

	time.Sleep(80 * time.Millisecond)

	if got := atomic.LoadInt64(&fired); got != 2 {
		t.Errorf("expected 2 executions, got %d", got)
	}
}

func TestExplicitDelayOverrides(t *testing.T) {
	m := NewManager(time.Hour)

	var fired int64
	m.ScheduleDelay("k", func() { atomic.AddInt64(&fired, 1) }, 10*time.Millisecond)

	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt64(&fired); got != 1 {
		t.Errorf("expected execution with explicit delay, got %d", got)
	}
}

func TestAdaptiveDelaySlowHistory(t *testing.T) {
	m := NewManager(300 * time.Millisecond)

	for i := 0; i < 10; i++ {
		m.RecordExecutionTime(1500 * time.Millisecond)
	}

	if got := m.adaptiveDelay(); got != 600*time.Millisecond {
		t.Errorf("expected doubled delay 600ms, got %v", got)
	}
}

func TestAdaptiveDelayCap(t *testing.T) {
	m := NewManager(800 * time.Millisecond)

	m.RecordExecutionTime(5 * time.Second)

	if got := m.adaptiveDelay(); got != MaxDelay {
		t.Errorf("expected cap %v, got %v", MaxDelay, got)
	}
}

func TestAdaptiveDelayFastHistory(t *testing.T) {
	m := NewManager(300 * time.Millisecond)

	for i := 0; i < 3; i++ {
		m.RecordExecutionTime(20 * time.Millisecond)
	}

	if got := m.adaptiveDelay(); got != 150*time.Millisecond {
		t.Errorf("expected halved delay 150ms, got %v", got)
	}
}

func TestAdaptiveDelayFloor(t *testing.T) {
	m := NewManager(120 * time.Millisecond)

	m.RecordExecutionTime(10 * time.Millisecond)

	if got := m.adaptiveDelay(); got != MinDelay {
		t.Errorf("expected floor %v, got %v", MinDelay, got)
	}
}

func TestHistoryKeepsLastTen(t *testing.T) {
	m := NewManager(300 * time.Millisecond)

	// Ten slow samples, then ten fast ones: only the fast window remains.
	for i := 0; i < 10; i++ {
		m.RecordExecutionTime(2 * time.Second)
	}
	for i := 0; i < 10; i++ {
		m.RecordExecutionTime(10 * time.Millisecond)
	}

	if got := m.adaptiveDelay(); got != 150*time.Millisecond {
		t.Errorf("expected fast-history delay 150ms, got %v", got)
	}
}

func TestCancelAll(t *testing.T) {
	m := NewManager(20 * time.Millisecond)

	var fired int64
	m.Schedule("a", func() { atomic.AddInt64(&fired, 1) })
	m.Schedule("b", func() { atomic.AddInt64(&fired, 1) })

	m.CancelAll()
	time.Sleep(80 * time.Millisecond)

	if got := atomic.LoadInt64(&fired); got != 0 {
		t.Errorf("expected no executions after CancelAll, got %d", got)
	}
	if m.Pending() != 0 {
		t.Errorf("expected no pending keys, got %d", m.Pending())
	}
}

func TestFlushAll(t *testing.T) {
	m := NewManager(time.Hour)

	var fired int64
	m.Schedule("a", func() { atomic.AddInt64(&fired, 1) })
	m.Schedule("b", func() { atomic.AddInt64(&fired, 1) })

	m.FlushAll()

	if got := atomic.LoadInt64(&fired); got != 2 {
		t.Errorf("expected both calls to run on flush, got %d", got)
	}
	if m.Pending() != 0 {
		t.Errorf("expected no pending keys, got %d", m.Pending())
	}
}

func TestFlushAllRacingTimer(t *testing.T) {
	// A call whose timer expires while FlushAll is running must still run
	// exactly once, never be dropped.
	m := NewManager(time.Hour)

	for i := 0; i < 200; i++ {
		var fired int64
		m.ScheduleDelay("k", func() { atomic.AddInt64(&fired, 1) }, time.Microsecond)
		time.Sleep(time.Microsecond)
		m.FlushAll()

		// The timer goroutine may get there first and still be running.
		deadline := time.Now().Add(100 * time.Millisecond)
		for atomic.LoadInt64(&fired) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if got := atomic.LoadInt64(&fired); got != 1 {
			t.Fatalf("iteration %d: callback ran %d times, want exactly 1", i, got)
		}
	}
}
