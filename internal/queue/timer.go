package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// Timer measures per-job wall-clock time, excluding paused intervals, plus the
// span from the first job start to the last job completion. Misuse (double
// start, stop without start, resume without pause) returns ErrConflict.
type Timer struct {
	mu     sync.Mutex
	now    func() time.Time
	timers map[domain.JobName]*jobTimer

	firstStart time.Time
	lastEnd    time.Time
}

type jobTimer struct {
	start       time.Time
	end         time.Time
	pausedTotal time.Duration
	pauseStart  time.Time
	stopped     bool
	paused      bool
}

// NewTimer creates a timer using the wall clock.
func NewTimer() *Timer {
	return NewTimerWithClock(time.Now)
}

// NewTimerWithClock creates a timer with an injectable clock for tests.
func NewTimerWithClock(now func() time.Time) *Timer {
	return &Timer{now: now, timers: make(map[domain.JobName]*jobTimer)}
}

// Start begins timing a job.
func (t *Timer) Start(name domain.JobName) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.timers[name]; ok {
		return fmt.Errorf("%w: timer for %s already started", domain.ErrConflict, name)
	}
	now := t.now()
	t.timers[name] = &jobTimer{start: now}
	if t.firstStart.IsZero() {
		t.firstStart = now
	}
	return nil
}

// Pause suspends timing while the job is frozen.
func (t *Timer) Pause(name domain.JobName) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	jt, ok := t.timers[name]
	if !ok || jt.stopped {
		return fmt.Errorf("%w: timer for %s is not running", domain.ErrConflict, name)
	}
	if jt.paused {
		return fmt.Errorf("%w: timer for %s already paused", domain.ErrConflict, name)
	}
	jt.paused = true
	jt.pauseStart = t.now()
	return nil
}

// Resume continues timing after a pause.
func (t *Timer) Resume(name domain.JobName) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	jt, ok := t.timers[name]
	if !ok || jt.stopped {
		return fmt.Errorf("%w: timer for %s is not running", domain.ErrConflict, name)
	}
	if !jt.paused {
		return fmt.Errorf("%w: timer for %s is not paused", domain.ErrConflict, name)
	}
	jt.pausedTotal += t.now().Sub(jt.pauseStart)
	jt.paused = false
	return nil
}

// Stop ends timing for a job. A job stopped while paused has the final pause
// interval excluded as well.
func (t *Timer) Stop(name domain.JobName) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	jt, ok := t.timers[name]
	if !ok {
		return fmt.Errorf("%w: timer for %s was never started", domain.ErrConflict, name)
	}
	if jt.stopped {
		return fmt.Errorf("%w: timer for %s already stopped", domain.ErrConflict, name)
	}
	now := t.now()
	if jt.paused {
		jt.pausedTotal += now.Sub(jt.pauseStart)
		jt.paused = false
	}
	jt.end = now
	jt.stopped = true
	t.lastEnd = now
	return nil
}

// JobTime returns the job's elapsed time minus paused intervals.
func (t *Timer) JobTime(name domain.JobName) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	jt, ok := t.timers[name]
	if !ok || !jt.stopped {
		return 0, fmt.Errorf("%w: timer for %s has not been stopped", domain.ErrConflict, name)
	}
	return jt.end.Sub(jt.start) - jt.pausedTotal, nil
}

// TotalTime returns the span from the first job start to the last completion.
func (t *Timer) TotalTime() (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.firstStart.IsZero() || t.lastEnd.IsZero() {
		return 0, fmt.Errorf("%w: no jobs have both started and finished", domain.ErrConflict)
	}
	return t.lastEnd.Sub(t.firstStart), nil
}
