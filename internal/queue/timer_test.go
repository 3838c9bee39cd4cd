package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// fakeClock is an advanceable clock for timer tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTimer_ExcludesPausedIntervals(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimerWithClock(clock.now)

	if err := timer.Start(domain.JobCanneal); err != nil {
		t.Fatal(err)
	}
	clock.advance(10 * time.Second)
	if err := timer.Pause(domain.JobCanneal); err != nil {
		t.Fatal(err)
	}
	clock.advance(5 * time.Second)
	if err := timer.Resume(domain.JobCanneal); err != nil {
		t.Fatal(err)
	}
	clock.advance(10 * time.Second)
	if err := timer.Stop(domain.JobCanneal); err != nil {
		t.Fatal(err)
	}

	elapsed, err := timer.JobTime(domain.JobCanneal)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed != 20*time.Second {
		t.Errorf("expected 20s excluding pause, got %s", elapsed)
	}
}

func TestTimer_StopWhilePaused(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimerWithClock(clock.now)

	if err := timer.Start(domain.JobDedup); err != nil {
		t.Fatal(err)
	}
	clock.advance(8 * time.Second)
	if err := timer.Pause(domain.JobDedup); err != nil {
		t.Fatal(err)
	}
	clock.advance(4 * time.Second)
	if err := timer.Stop(domain.JobDedup); err != nil {
		t.Fatal(err)
	}

	elapsed, err := timer.JobTime(domain.JobDedup)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed != 8*time.Second {
		t.Errorf("expected 8s, the trailing pause must be excluded, got %s", elapsed)
	}
}

func TestTimer_MisuseFailsLoudly(t *testing.T) {
	timer := NewTimerWithClock(newFakeClock().now)

	if err := timer.Stop(domain.JobVips); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("stop without start: expected ErrConflict, got %v", err)
	}
	if err := timer.Start(domain.JobVips); err != nil {
		t.Fatal(err)
	}
	if err := timer.Start(domain.JobVips); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("double start: expected ErrConflict, got %v", err)
	}
	if err := timer.Resume(domain.JobVips); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("resume without pause: expected ErrConflict, got %v", err)
	}
	if _, err := timer.JobTime(domain.JobVips); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("job time before stop: expected ErrConflict, got %v", err)
	}
}

func TestTimer_TotalTimeSpansFirstStartToLastEnd(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimerWithClock(clock.now)

	if err := timer.Start(domain.JobCanneal); err != nil {
		t.Fatal(err)
	}
	clock.advance(5 * time.Second)
	if err := timer.Start(domain.JobDedup); err != nil {
		t.Fatal(err)
	}
	clock.advance(5 * time.Second)
	if err := timer.Stop(domain.JobCanneal); err != nil {
		t.Fatal(err)
	}
	clock.advance(10 * time.Second)
	if err := timer.Stop(domain.JobDedup); err != nil {
		t.Fatal(err)
	}

	total, err := timer.TotalTime()
	if err != nil {
		t.Fatal(err)
	}
	if total != 20*time.Second {
		t.Errorf("expected total 20s, got %s", total)
	}
}

func TestTimer_TotalTimeWithoutRuns(t *testing.T) {
	timer := NewTimerWithClock(newFakeClock().now)
	if _, err := timer.TotalTime(); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}
