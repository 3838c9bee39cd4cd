// Package runner starts, pauses, moves, and stops the isolated batch jobs.
// Jobs execute as Docker containers pinned to a cpuset; the scheduler only
// ever talks to the Runner interface.
package runner

import (
	"context"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// Handle identifies one launched job instance.
type Handle struct {
	Name        domain.JobName
	ContainerID string
}

// Status is the observed execution state of a launched job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusUnknown   Status = "unknown"
)

// Runner launches and manages batch jobs. All calls are synchronous
// acknowledgments; none of them waits for job completion.
type Runner interface {
	// Start launches the job pinned to cores with the given worker thread
	// count. On failure no handle is returned and the job stays queued;
	// retrying is the caller's decision.
	Start(ctx context.Context, name domain.JobName, cores domain.CoreSet, threads int) (Handle, error)

	// Reassign changes the live cpuset of a running or paused job without
	// restarting it.
	Reassign(ctx context.Context, h Handle, cores domain.CoreSet) error

	// Pause freezes execution without releasing cores.
	Pause(ctx context.Context, h Handle) error

	// Resume unfreezes a paused job.
	Resume(ctx context.Context, h Handle) error

	// Stop requests graceful termination with a bounded grace period, then
	// forces it. Stopping an already-stopped job succeeds without effect.
	Stop(ctx context.Context, h Handle) error

	// Status reports the job's current execution state without blocking.
	Status(ctx context.Context, h Handle) (Status, error)

	// Remove cleans up the exited job's container.
	Remove(ctx context.Context, h Handle) error
}
