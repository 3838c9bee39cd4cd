// Package affinity controls the CPU affinity of the managed service process.
// Platform-specific implementations live in separate files guarded by build
// tags; only Linux can actually re-pin a process.
package affinity

import (
	"context"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// Controller gets and sets which cores the service process may run on. Both
// operations apply to the process and every worker thread it owns at call
// time; the thread set is re-enumerated on each call, never cached.
type Controller interface {
	// Get returns the union of permitted cores across all service threads.
	// Returns domain.ErrNotFound when the service process is not running.
	Get(ctx context.Context) (domain.CoreSet, error)

	// Set pins the service process and all its current threads to cores.
	// On partial failure the threads that were already updated are left as
	// they are and the call reports domain.ErrOperationFailed.
	Set(ctx context.Context, cores domain.CoreSet) error
}
