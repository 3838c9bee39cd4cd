// Package queue tracks which batch jobs are pending, running, or completed,
// and measures per-job wall-clock time excluding paused intervals.
package queue

import (
	"fmt"
	"sync"

	eq "github.com/eapache/queue"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/runner"
)

// RunningJob is the bookkeeping record for one started job.
type RunningJob struct {
	Name    domain.JobName
	Handle  runner.Handle
	Cores   domain.CoreSet
	Threads int
	Paused  bool
}

// Queue holds the pending FIFO, the running set, and the completed set.
// A job is in exactly one of the three at any time.
type Queue struct {
	mu        sync.RWMutex
	pending   *eq.Queue
	running   map[domain.JobName]*RunningJob
	order     []domain.JobName // running jobs in start order
	completed []domain.JobName
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		pending: eq.New(),
		running: make(map[domain.JobName]*RunningJob),
	}
}

// EnqueueAll populates the pending queue with the run's job list, in order.
// It is called once at startup; duplicate names are rejected.
func (q *Queue) EnqueueAll(names []domain.JobName) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[domain.JobName]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: job %s listed twice", domain.ErrAlreadyExists, name)
		}
		seen[name] = struct{}{}
	}
	for _, name := range names {
		q.pending.Add(name)
	}
	return nil
}

// NextPending returns the next job awaiting start without removing it.
// The job leaves the pending queue only when RecordStart confirms it launched.
func (q *Queue) NextPending() (domain.JobName, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.pending.Length() == 0 {
		return "", false
	}
	return q.pending.Peek().(domain.JobName), true
}

// RecordStart moves the job at the head of the pending queue into the running
// set. The started job must be the head; anything else is a bookkeeping bug.
func (q *Queue) RecordStart(name domain.JobName, h runner.Handle, cores domain.CoreSet, threads int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending.Length() == 0 || q.pending.Peek().(domain.JobName) != name {
		return fmt.Errorf("%w: job %s is not next in the pending queue", domain.ErrConflict, name)
	}
	if _, exists := q.running[name]; exists {
		return fmt.Errorf("%w: job %s already running", domain.ErrConflict, name)
	}

	q.pending.Remove()
	q.running[name] = &RunningJob{Name: name, Handle: h, Cores: cores, Threads: threads}
	q.order = append(q.order, name)
	return nil
}

// RecordCompletion moves a running job into the completed set.
func (q *Queue) RecordCompletion(name domain.JobName) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.running[name]; !ok {
		return fmt.Errorf("%w: job %s is not running", domain.ErrConflict, name)
	}
	delete(q.running, name)
	for i, n := range q.order {
		if n == name {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.completed = append(q.completed, name)
	return nil
}

// RecordCores updates the bookkept core set of a running job.
func (q *Queue) RecordCores(name domain.JobName, cores domain.CoreSet) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.running[name]
	if !ok {
		return fmt.Errorf("%w: job %s is not running", domain.ErrConflict, name)
	}
	job.Cores = cores
	return nil
}

// RecordPaused flips the paused flag of a running job.
func (q *Queue) RecordPaused(name domain.JobName, paused bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.running[name]
	if !ok {
		return fmt.Errorf("%w: job %s is not running", domain.ErrConflict, name)
	}
	job.Paused = paused
	return nil
}

// Running returns the running jobs in start order.
func (q *Queue) Running() []RunningJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]RunningJob, 0, len(q.order))
	for _, name := range q.order {
		job := q.running[name]
		out = append(out, RunningJob{
			Name:    job.Name,
			Handle:  job.Handle,
			Cores:   job.Cores.Clone(),
			Threads: job.Threads,
			Paused:  job.Paused,
		})
	}
	return out
}

// Get returns the running record for a job.
func (q *Queue) Get(name domain.JobName) (RunningJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.running[name]
	if !ok {
		return RunningJob{}, false
	}
	return *job, true
}

// PendingLen returns the number of jobs awaiting start.
func (q *Queue) PendingLen() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pending.Length()
}

// Completed returns the completed job names in completion order.
func (q *Queue) Completed() []domain.JobName {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]domain.JobName, len(q.completed))
	copy(out, q.completed)
	return out
}

// Empty reports whether both the pending queue and the running set are empty,
// which is the control loop's termination condition.
func (q *Queue) Empty() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pending.Length() == 0 && len(q.running) == 0
}
