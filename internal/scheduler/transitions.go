package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/queue"
)

// evaluateTransition applies at most one state transition based on the
// current tick's sample. Thresholds compare against this sample only; the
// hysteresis band between the watermarks is the only smoothing.
//
// Per transition the order is fixed: compute the new core set, make the
// external call, update the state variable, log. A failed external call
// leaves both the state variable and the bookkeeping untouched, so the next
// tick re-evaluates from the pre-failure state.
func (c *Controller) evaluateTransition(ctx context.Context, sample []float64) {
	util := sample[c.cfg.ServiceCore]

	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	switch state {
	case domain.StateSoloCore:
		if util > c.cfg.HighWatermark {
			c.expandService(ctx, util)
		}
	case domain.StateColocated:
		if util < c.cfg.LowWatermark && len(c.evictedSnapshot()) == 0 {
			c.shrinkService(ctx, util)
		} else if util > c.cfg.EvictionThreshold {
			c.evictOne(ctx, util)
		}
	case domain.StateIsolated:
		if util < c.cfg.LowWatermark {
			c.restoreOne(ctx, util)
		}
	}
}

// expandService grows the service onto the shared core (S0 -> S1). Jobs are
// not moved yet; they keep using the shared core concurrently.
func (c *Controller) expandService(ctx context.Context, util float64) {
	newCores := domain.NewCoreSet(c.cfg.ServiceCore, c.cfg.SharedCore)
	if !c.applyServiceCores(ctx, newCores, util) {
		return
	}
	c.setState(domain.StateColocated, util)
	c.noteEvent(c.events.Custom(domain.ServiceSubject,
		fmt.Sprintf("colocated_with_jobs_on_core%d", c.cfg.SharedCore)))
}

// shrinkService confines the service back to its dedicated core (S1 -> S0).
// Only legal while no job has been evicted.
func (c *Controller) shrinkService(ctx context.Context, util float64) {
	newCores := domain.NewCoreSet(c.cfg.ServiceCore)
	if !c.applyServiceCores(ctx, newCores, util) {
		return
	}
	c.setState(domain.StateSoloCore, util)
	c.noteEvent(c.events.Custom(domain.ServiceSubject,
		fmt.Sprintf("removed_from_core%d", c.cfg.SharedCore)))
}

// applyServiceCores performs the affinity call and the service-side logging
// shared by expand and shrink. Returns false when the transition must not
// proceed.
func (c *Controller) applyServiceCores(ctx context.Context, cores domain.CoreSet, util float64) bool {
	if err := c.aff.Set(ctx, cores); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Service process gone; not fatal, the next tick retries.
			c.logger.Warn("Service process not found", zap.Float64("utilization", util))
			c.noteEvent(c.events.Custom(domain.ServiceSubject, "process_not_found"))
		} else {
			c.logger.Error("Service affinity change failed",
				zap.String("cores", cores.String()),
				zap.Float64("utilization", util),
				zap.Error(err),
			)
		}
		return false
	}

	c.mu.Lock()
	old := c.service.Cores
	c.service.Cores = cores
	c.mu.Unlock()

	c.noteEvent(c.events.UpdateCores(domain.ServiceSubject, cores))
	c.logger.Info("Service re-pinned",
		zap.String("old_cores", old.String()),
		zap.String("new_cores", cores.String()),
		zap.Float64("utilization", util),
	)
	return true
}

// evictOne pushes a single colocated job off the shared core (S1 -> S1, or
// S1 -> S2 when it was the last one). One job per tick keeps reassignment
// from stampeding; the victim is the earliest-started job still occupying
// the shared core.
func (c *Controller) evictOne(ctx context.Context, util float64) {
	var victim *queue.RunningJob
	for _, job := range c.jobs.Running() {
		if job.Cores.Contains(c.cfg.SharedCore) {
			j := job
			victim = &j
			break
		}
	}
	if victim == nil {
		// Nothing left to evict: the shared core already belongs to the
		// service alone.
		c.setState(domain.StateIsolated, util)
		return
	}

	newCores := victim.Cores.Without(c.cfg.SharedCore)
	if newCores.Empty() {
		newCores = c.isolatedBatchCores()
	}

	if err := c.runner.Reassign(ctx, victim.Handle, newCores); err != nil {
		// Bookkeeping keeps the old core set; no partial success assumed.
		c.logger.Error("Eviction reassign failed",
			zap.String("job", victim.Name.String()),
			zap.Error(err),
		)
		return
	}

	if err := c.jobs.RecordCores(victim.Name, newCores); err != nil {
		c.logger.Error("Queue bookkeeping broken", zap.String("job", victim.Name.String()), zap.Error(err))
	}
	c.mu.Lock()
	c.evicted = append(c.evicted, victim.Name)
	c.mu.Unlock()

	c.noteEvent(c.events.UpdateCores(victim.Name.String(), newCores))
	c.noteEvent(c.events.Custom(victim.Name.String(),
		fmt.Sprintf("moved_off_core%d", c.cfg.SharedCore)))
	c.logger.Info("Job evicted from shared core",
		zap.String("job", victim.Name.String()),
		zap.String("new_cores", newCores.String()),
		zap.Float64("utilization", util),
	)

	// Last colocated job gone: the service now owns its cores exclusively.
	if !c.anyJobOnSharedCore() {
		c.setState(domain.StateIsolated, util)
	}
}

// restoreOne re-admits the most recently evicted job onto the shared core
// (S2 -> S2, or S2 -> S1 when the stack empties). Restore order is LIFO.
func (c *Controller) restoreOne(ctx context.Context, util float64) {
	for {
		c.mu.Lock()
		if len(c.evicted) == 0 {
			c.mu.Unlock()
			c.setState(domain.StateColocated, util)
			return
		}
		name := c.evicted[len(c.evicted)-1]
		c.evicted = c.evicted[:len(c.evicted)-1]
		c.mu.Unlock()

		job, ok := c.jobs.Get(name)
		if !ok {
			// Evicted job finished in the meantime; fall through to the
			// next stack entry.
			continue
		}

		newCores := job.Cores.With(c.cfg.SharedCore)
		if err := c.runner.Reassign(ctx, job.Handle, newCores); err != nil {
			c.logger.Error("Restore reassign failed",
				zap.String("job", name.String()),
				zap.Error(err),
			)
			// Put it back; the next tick retries the same job.
			c.mu.Lock()
			c.evicted = append(c.evicted, name)
			c.mu.Unlock()
			return
		}

		if err := c.jobs.RecordCores(name, newCores); err != nil {
			c.logger.Error("Queue bookkeeping broken", zap.String("job", name.String()), zap.Error(err))
		}
		c.noteEvent(c.events.UpdateCores(name.String(), newCores))
		c.noteEvent(c.events.Custom(name.String(),
			fmt.Sprintf("restored_to_core%d", c.cfg.SharedCore)))
		c.logger.Info("Job restored to shared core",
			zap.String("job", name.String()),
			zap.Float64("utilization", util),
		)

		c.mu.RLock()
		empty := len(c.evicted) == 0
		c.mu.RUnlock()
		if empty {
			c.setState(domain.StateColocated, util)
		}
		return
	}
}

// setState records a transition and logs it with the triggering utilization.
func (c *Controller) setState(next domain.ColocationState, util float64) {
	c.mu.Lock()
	old := c.state
	c.state = next
	c.mu.Unlock()
	if old == next {
		return
	}

	c.noteEvent(c.events.Custom(domain.SchedulerSubject,
		fmt.Sprintf("state_%s_to_%s_util_%.1f", old, next, util)))
	c.logger.Info("Colocation state changed",
		zap.String("from", old.String()),
		zap.String("to", next.String()),
		zap.Float64("utilization", util),
	)
}

// batchCores returns the cores batch jobs may start on in the current state.
// Everything but the service's dedicated core while solo or colocated; the
// shared core is off-limits while isolated.
func (c *Controller) batchCores() domain.CoreSet {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	if state == domain.StateIsolated {
		return c.isolatedBatchCores()
	}
	return domain.FullCoreSet(c.cfg.TotalCores).Without(c.cfg.ServiceCore)
}

// isolatedBatchCores returns the batch allocation with the shared core
// reserved for the service.
func (c *Controller) isolatedBatchCores() domain.CoreSet {
	return domain.FullCoreSet(c.cfg.TotalCores).
		Without(c.cfg.ServiceCore).
		Without(c.cfg.SharedCore)
}

// anyJobOnSharedCore reports whether a running job still occupies the shared core.
func (c *Controller) anyJobOnSharedCore() bool {
	for _, job := range c.jobs.Running() {
		if job.Cores.Contains(c.cfg.SharedCore) {
			return true
		}
	}
	return false
}

func (c *Controller) evictedSnapshot() []domain.JobName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.JobName, len(c.evicted))
	copy(out, c.evicted)
	return out
}
