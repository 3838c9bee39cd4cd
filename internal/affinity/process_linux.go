//go:build linux

package affinity

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// ProcessController applies affinity changes to a process identified by name,
// covering every thread listed under /proc/<pid>/task at call time.
type ProcessController struct {
	processName string
	logger      *zap.Logger
}

var _ Controller = (*ProcessController)(nil)

// NewProcessController creates a controller for the named process, typically
// "memcached". The process is looked up fresh on every call so a service
// restart (new PID) is picked up automatically.
func NewProcessController(processName string, logger *zap.Logger) *ProcessController {
	return &ProcessController{
		processName: processName,
		logger:      logger.With(zap.String("component", "affinity"), zap.String("process", processName)),
	}
}

// Get returns the union of permitted cores across all threads of the service.
func (c *ProcessController) Get(ctx context.Context) (domain.CoreSet, error) {
	pid, err := c.findPID(ctx)
	if err != nil {
		return domain.CoreSet{}, err
	}
	tids, err := listThreads(pid)
	if err != nil {
		return domain.CoreSet{}, err
	}

	union := domain.CoreSet{}
	for _, tid := range tids {
		var set unix.CPUSet
		if err := unix.SchedGetaffinity(tid, &set); err != nil {
			// Thread may have exited between the scan and the query.
			continue
		}
		union = union.Union(coresFromCPUSet(set))
	}
	if union.Empty() {
		return domain.CoreSet{}, fmt.Errorf("%w: no readable threads for pid %d", domain.ErrNotFound, pid)
	}
	return union, nil
}

// Set pins the service process and all its current threads to cores. Threads
// updated before a failure keep the new mask; there is no rollback.
func (c *ProcessController) Set(ctx context.Context, cores domain.CoreSet) error {
	if cores.Empty() {
		return fmt.Errorf("%w: refusing to set empty affinity", domain.ErrInvalidArgument)
	}
	pid, err := c.findPID(ctx)
	if err != nil {
		return err
	}
	tids, err := listThreads(pid)
	if err != nil {
		return err
	}

	set := cpuSetFromCores(cores)
	var failed []int
	for _, tid := range tids {
		if err := unix.SchedSetaffinity(tid, &set); err != nil {
			failed = append(failed, tid)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: setting affinity %s failed for %d/%d threads of pid %d (tids %v)",
			domain.ErrOperationFailed, cores, len(failed), len(tids), pid, failed)
	}

	c.logger.Debug("Affinity applied",
		zap.Int("pid", pid),
		zap.String("cores", cores.String()),
		zap.Int("threads", len(tids)),
	)
	return nil
}

// findPID scans the process table for the first process with the configured
// name. The scan runs on every call; PIDs are never cached.
func (c *ProcessController) findPID(ctx context.Context) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: scanning process table: %v", domain.ErrTransient, err)
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if name == c.processName {
			return int(p.Pid), nil
		}
	}
	return 0, fmt.Errorf("%w: process %q not running", domain.ErrNotFound, c.processName)
}

// listThreads enumerates the thread IDs of pid from /proc/<pid>/task.
func listThreads(pid int) ([]int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: pid %d has no task directory", domain.ErrNotFound, pid)
		}
		return nil, fmt.Errorf("%w: reading task directory for pid %d: %v", domain.ErrTransient, pid, err)
	}
	tids := make([]int, 0, len(entries))
	for _, entry := range entries {
		tid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	if len(tids) == 0 {
		return nil, fmt.Errorf("%w: pid %d has no threads", domain.ErrNotFound, pid)
	}
	return tids, nil
}

func cpuSetFromCores(cores domain.CoreSet) unix.CPUSet {
	var set unix.CPUSet
	for _, i := range cores.Indices() {
		set.Set(i)
	}
	return set
}

func coresFromCPUSet(set unix.CPUSet) domain.CoreSet {
	var indices []int
	for i := 0; i < len(set)*64; i++ {
		if set.IsSet(i) {
			indices = append(indices, i)
		}
	}
	return domain.NewCoreSet(indices...)
}
