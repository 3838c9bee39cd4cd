// Package scheduler implements the colocation state machine and its control
// loop. One Controller instance owns the core-to-workload mapping for one
// managed service; nothing else mutates that mapping.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/affinity"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/events"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/monitor"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/queue"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/runner"
)

// Config holds the state machine parameters. Thresholds are configuration,
// not contract: tests and deployments pick their own watermarks.
type Config struct {
	TickInterval      time.Duration
	TotalCores        int
	ServiceCore       int
	SharedCore        int
	HighWatermark     float64
	LowWatermark      float64
	EvictionThreshold float64
	Jobs              []domain.JobName
	JobThreads        int // 0 = one thread per batch core at start time
	MaxConcurrentJobs int
	ServiceThreads    int
}

// Controller runs the colocation control loop: sample, evaluate one state
// transition, reap finished jobs, refill from the queue, log everything.
type Controller struct {
	cfg     Config
	sampler monitor.Sampler
	aff     affinity.Controller
	runner  runner.Runner
	jobs    *queue.Queue
	timer   *queue.Timer
	events  *events.Logger
	logger  *zap.Logger

	// mu guards the snapshot fields read by the status server; the control
	// loop itself is single-threaded.
	mu      sync.RWMutex
	state   domain.ColocationState
	service domain.ServiceAllocation
	evicted []domain.JobName // jobs pushed off the shared core, restore order is LIFO
}

// New creates a controller. The event logger must already be open: a run that
// cannot produce its audit trail is not allowed to start.
func New(
	cfg Config,
	sampler monitor.Sampler,
	aff affinity.Controller,
	run runner.Runner,
	jobs *queue.Queue,
	timer *queue.Timer,
	ev *events.Logger,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		cfg:     cfg,
		sampler: sampler,
		aff:     aff,
		runner:  run,
		jobs:    jobs,
		timer:   timer,
		events:  ev,
		logger:  logger.With(zap.String("component", "scheduler")),
		state:   domain.StateSoloCore,
		service: domain.ServiceAllocation{
			Cores:   domain.NewCoreSet(cfg.ServiceCore),
			Threads: cfg.ServiceThreads,
		},
	}
}

// Run executes the control loop until the job queue and running set are both
// empty, or ctx is canceled. On cancellation it stops running jobs
// best-effort and reports whether cleanup fully succeeded.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.startup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Shutdown requested")
			return c.shutdown(context.WithoutCancel(ctx))
		case <-ticker.C:
			c.tick(ctx)
			if c.jobs.Empty() {
				return c.finish()
			}
		}
	}
}

// startup pins the service to its dedicated core, enqueues the job list, and
// launches the first batch of jobs.
func (c *Controller) startup(ctx context.Context) error {
	if err := c.jobs.EnqueueAll(c.cfg.Jobs); err != nil {
		return err
	}

	if err := c.aff.Set(ctx, c.service.Cores); err != nil {
		// The service may come up after us; the next transition retries.
		c.logger.Warn("Could not pin service at startup", zap.Error(err))
		c.noteEvent(c.events.Custom(domain.ServiceSubject, "initial_pinning_failed"))
	}
	c.noteEvent(c.events.JobStart(domain.ServiceSubject, c.service.Cores, c.service.Threads))

	c.logger.Info("Controller started",
		zap.Int("total_cores", c.cfg.TotalCores),
		zap.String("service_cores", c.service.Cores.String()),
		zap.Int("queued_jobs", c.jobs.PendingLen()),
	)

	c.refill(ctx)
	return nil
}

// tick runs one control loop iteration: sample, transition evaluation, then
// bookkeeping (reap finished jobs, refill from the queue). A failed sample
// skips the whole iteration, bookkeeping included, not just the transition;
// everything waits for the next successful reading. A panic inside a tick is
// contained: the loop logs it and carries on at the next tick.
func (c *Controller) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Tick panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	sample, err := c.sampler.Sample(ctx)
	if err != nil {
		// Fail open: no sample, no action this tick.
		c.logger.Warn("Utilization sample failed", zap.Error(err))
		return
	}

	c.evaluateTransition(ctx, sample)
	c.reap(ctx)
	c.refill(ctx)
	c.checkInvariants()
}

// checkInvariants validates the core-ownership bookkeeping after each tick.
// A violation means a bug in the transition logic, not an external failure;
// it is logged loudly and the loop keeps going.
func (c *Controller) checkInvariants() {
	running := c.jobs.Running()
	jobs := make([]domain.Job, 0, len(running))
	for _, j := range running {
		lifecycle := domain.JobRunning
		if j.Paused {
			lifecycle = domain.JobPaused
		}
		jobs = append(jobs, domain.Job{
			Name:      j.Name,
			Cores:     j.Cores,
			Threads:   j.Threads,
			Lifecycle: lifecycle,
		})
	}

	c.mu.RLock()
	service := c.service.Cores
	c.mu.RUnlock()

	if err := domain.ValidateAssignment(c.cfg.TotalCores, service, jobs); err != nil {
		c.logger.Error("Core bookkeeping invariant violated", zap.Error(err))
	}
}

// reap polls every running job and retires the finished ones: stop the timer,
// log completion, release the container and its cores.
func (c *Controller) reap(ctx context.Context) {
	for _, job := range c.jobs.Running() {
		status, err := c.runner.Status(ctx, job.Handle)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// The container vanished under us; account the job as failed.
				c.logger.Warn("Job container disappeared", zap.String("job", job.Name.String()))
				status = runner.StatusFailed
			} else {
				c.logger.Warn("Status poll failed",
					zap.String("job", job.Name.String()),
					zap.Error(err),
				)
				continue
			}
		}
		if status != runner.StatusCompleted && status != runner.StatusFailed {
			continue
		}

		c.retire(ctx, job, status)
	}
}

// retire finalizes one finished job.
func (c *Controller) retire(ctx context.Context, job queue.RunningJob, status runner.Status) {
	if err := c.timer.Stop(job.Name); err != nil {
		c.logger.Error("Timer bookkeeping broken", zap.String("job", job.Name.String()), zap.Error(err))
	}
	c.noteEvent(c.events.JobEnd(job.Name.String()))
	if elapsed, err := c.timer.JobTime(job.Name); err == nil {
		c.noteEvent(c.events.Custom(job.Name.String(),
			fmt.Sprintf("execution_time_%.2f_seconds", elapsed.Seconds())))
	}
	if status == runner.StatusFailed {
		c.noteEvent(c.events.Custom(job.Name.String(), "exited_with_error"))
	}
	if err := c.runner.Remove(ctx, job.Handle); err != nil {
		c.logger.Warn("Container cleanup failed", zap.String("job", job.Name.String()), zap.Error(err))
	}
	if err := c.jobs.RecordCompletion(job.Name); err != nil {
		c.logger.Error("Queue bookkeeping broken", zap.String("job", job.Name.String()), zap.Error(err))
	}
	c.dropEvicted(job.Name)

	c.logger.Info("Job finished",
		zap.String("job", job.Name.String()),
		zap.String("status", string(status)),
	)
}

// refill starts queued jobs until the concurrency cap is reached. Jobs start
// on the current state's batch allocation, not on any previous owner's cores:
// freed cores return to the shared pool. A start failure leaves the job
// queued; there is no retry within the tick.
func (c *Controller) refill(ctx context.Context) {
	for len(c.jobs.Running()) < c.cfg.MaxConcurrentJobs {
		name, ok := c.jobs.NextPending()
		if !ok {
			return
		}

		cores := c.batchCores()
		threads := c.cfg.JobThreads
		if threads <= 0 {
			threads = cores.Size()
		}

		h, err := c.runner.Start(ctx, name, cores, threads)
		if err != nil {
			c.logger.Error("Job start failed, leaving it queued",
				zap.String("job", name.String()),
				zap.Error(err),
			)
			c.noteEvent(c.events.Custom(name.String(), "start_failed"))
			return
		}

		if err := c.jobs.RecordStart(name, h, cores, threads); err != nil {
			c.logger.Error("Queue bookkeeping broken", zap.String("job", name.String()), zap.Error(err))
			return
		}
		if err := c.timer.Start(name); err != nil {
			c.logger.Error("Timer bookkeeping broken", zap.String("job", name.String()), zap.Error(err))
		}
		c.noteEvent(c.events.JobStart(name.String(), cores, threads))

		c.logger.Info("Job started",
			zap.String("job", name.String()),
			zap.String("cores", cores.String()),
			zap.Int("threads", threads),
		)
	}
}

// finish logs the run totals and closes the event stream.
func (c *Controller) finish() error {
	if total, err := c.timer.TotalTime(); err == nil {
		c.noteEvent(c.events.Custom(domain.SchedulerSubject,
			fmt.Sprintf("total_time_%.2f_seconds", total.Seconds())))
		c.logger.Info("All jobs completed", zap.Duration("total", total))
	} else {
		c.logger.Info("Run finished without completed jobs")
	}
	return c.events.Close()
}

// shutdown stops every running job best-effort, leaves the service affinity
// as last set, and closes the event stream. Errors are logged and collected,
// never thrown past the cleanup phase.
func (c *Controller) shutdown(ctx context.Context) error {
	var failed bool
	for _, job := range c.jobs.Running() {
		if err := c.runner.Stop(ctx, job.Handle); err != nil {
			// One attempt per job; move on.
			c.logger.Error("Stopping job failed", zap.String("job", job.Name.String()), zap.Error(err))
			failed = true
			continue
		}
		c.noteEvent(c.events.Custom(job.Name.String(), "stopped_on_shutdown"))
		c.noteEvent(c.events.JobEnd(job.Name.String()))
		if err := c.timer.Stop(job.Name); err != nil {
			c.logger.Warn("Timer bookkeeping broken on shutdown", zap.Error(err))
		}
	}

	if err := c.events.Close(); err != nil {
		c.logger.Error("Closing event stream failed", zap.Error(err))
		failed = true
	}
	if failed {
		return fmt.Errorf("%w: shutdown cleanup incomplete", domain.ErrOperationFailed)
	}
	return nil
}

// noteEvent downgrades event-log write failures to log lines. The stream is
// the durable artifact; a single failed append must not take the loop down.
func (c *Controller) noteEvent(err error) {
	if err != nil {
		c.logger.Error("Event log write failed", zap.Error(err))
	}
}

// dropEvicted removes a finished job from the restore stack.
func (c *Controller) dropEvicted(name domain.JobName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.evicted {
		if n == name {
			c.evicted = append(c.evicted[:i], c.evicted[i+1:]...)
			return
		}
	}
}
