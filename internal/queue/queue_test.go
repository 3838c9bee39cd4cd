package queue

import (
	"errors"
	"testing"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/runner"
)

func handle(name domain.JobName) runner.Handle {
	return runner.Handle{Name: name, ContainerID: "cid-" + string(name)}
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := New()
	jobs := []domain.JobName{domain.JobCanneal, domain.JobDedup, domain.JobVips}
	if err := q.EnqueueAll(jobs); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	for _, want := range jobs {
		got, ok := q.NextPending()
		if !ok || got != want {
			t.Fatalf("expected next pending %s, got %s (ok=%v)", want, got, ok)
		}
		if err := q.RecordStart(got, handle(got), domain.NewCoreSet(2, 3), 2); err != nil {
			t.Fatalf("record start failed: %v", err)
		}
	}
	if _, ok := q.NextPending(); ok {
		t.Error("pending queue should be drained")
	}
}

func TestQueue_DuplicateEnqueueRejected(t *testing.T) {
	q := New()
	err := q.EnqueueAll([]domain.JobName{domain.JobCanneal, domain.JobCanneal})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestQueue_ExactlyOneSet(t *testing.T) {
	q := New()
	if err := q.EnqueueAll([]domain.JobName{domain.JobCanneal}); err != nil {
		t.Fatal(err)
	}

	// Starting a job that is not at the head is a conflict.
	if err := q.RecordStart(domain.JobDedup, handle(domain.JobDedup), domain.NewCoreSet(2), 1); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for non-head start, got %v", err)
	}

	if err := q.RecordStart(domain.JobCanneal, handle(domain.JobCanneal), domain.NewCoreSet(2), 1); err != nil {
		t.Fatal(err)
	}
	if err := q.RecordCompletion(domain.JobCanneal); err != nil {
		t.Fatal(err)
	}

	// Completing a job twice is a conflict.
	if err := q.RecordCompletion(domain.JobCanneal); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for double completion, got %v", err)
	}

	completed := q.Completed()
	if len(completed) != 1 || completed[0] != domain.JobCanneal {
		t.Errorf("unexpected completed set: %v", completed)
	}
	if !q.Empty() {
		t.Error("queue should be empty after the only job completed")
	}
}

func TestQueue_RunningSnapshotInStartOrder(t *testing.T) {
	q := New()
	jobs := []domain.JobName{domain.JobVips, domain.JobCanneal, domain.JobDedup}
	if err := q.EnqueueAll(jobs); err != nil {
		t.Fatal(err)
	}
	for _, name := range jobs {
		if err := q.RecordStart(name, handle(name), domain.NewCoreSet(1, 2), 2); err != nil {
			t.Fatal(err)
		}
	}

	running := q.Running()
	if len(running) != 3 {
		t.Fatalf("expected 3 running jobs, got %d", len(running))
	}
	for i, name := range jobs {
		if running[i].Name != name {
			t.Errorf("running[%d] = %s, want %s", i, running[i].Name, name)
		}
	}

	// Snapshot core sets must be copies.
	if err := q.RecordCores(domain.JobVips, domain.NewCoreSet(3)); err != nil {
		t.Fatal(err)
	}
	if running[0].Cores.Contains(3) {
		t.Error("snapshot leaked internal state")
	}
}

func TestQueue_RecordCoresUnknownJob(t *testing.T) {
	q := New()
	if err := q.RecordCores(domain.JobFerret, domain.NewCoreSet(1)); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}
