package domain

import "fmt"

// JobName identifies one batch workload. The set of valid names is closed and
// fixed at configuration time; name validation happens once, when the job list
// is loaded, never during the control loop.
type JobName string

// Canonical batch workloads.
const (
	JobBlackscholes JobName = "blackscholes"
	JobCanneal      JobName = "canneal"
	JobDedup        JobName = "dedup"
	JobFerret       JobName = "ferret"
	JobFreqmine     JobName = "freqmine"
	JobRadix        JobName = "radix"
	JobVips         JobName = "vips"
)

// Reserved event-log subjects that are not batch jobs.
const (
	ServiceSubject   = "memcached"
	SchedulerSubject = "scheduler"
)

var knownJobs = map[JobName]struct{}{
	JobBlackscholes: {},
	JobCanneal:      {},
	JobDedup:        {},
	JobFerret:       {},
	JobFreqmine:     {},
	JobRadix:        {},
	JobVips:         {},
}

// JobFromString validates a configured job name against the closed workload set.
func JobFromString(s string) (JobName, error) {
	name := JobName(s)
	if _, ok := knownJobs[name]; !ok {
		return "", fmt.Errorf("%w: unknown job %q", ErrInvalidArgument, s)
	}
	return name, nil
}

// String returns the job name.
func (j JobName) String() string { return string(j) }

// JobLifecycle is the lifecycle state of a batch job.
type JobLifecycle string

const (
	JobQueued    JobLifecycle = "queued"
	JobRunning   JobLifecycle = "running"
	JobPaused    JobLifecycle = "paused"
	JobCompleted JobLifecycle = "completed"
	JobFailed    JobLifecycle = "failed"
)

// Terminal reports whether the lifecycle state is final.
func (l JobLifecycle) Terminal() bool {
	return l == JobCompleted || l == JobFailed
}

// Job is one batch workload tracked by the scheduler.
type Job struct {
	Name      JobName
	Cores     CoreSet
	Threads   int
	Lifecycle JobLifecycle
}

// ServiceAllocation describes the cores and worker threads of the managed
// latency-critical service. The service is never stopped, only re-pinned.
type ServiceAllocation struct {
	Cores   CoreSet
	Threads int
}

// ValidateAssignment checks the core-ownership invariants: every assigned core
// must be inside the machine's core set, and a running or paused job must own
// at least one core.
func ValidateAssignment(totalCores int, service CoreSet, jobs []Job) error {
	machine := FullCoreSet(totalCores)
	if !service.Intersect(machine).Equal(service) {
		return fmt.Errorf("%w: service cores %s outside machine cores %s",
			ErrInvalidArgument, service, machine)
	}
	for _, job := range jobs {
		if job.Lifecycle != JobRunning && job.Lifecycle != JobPaused {
			continue
		}
		if job.Cores.Empty() {
			return fmt.Errorf("%w: job %s is %s with no cores assigned",
				ErrInvalidArgument, job.Name, job.Lifecycle)
		}
		if !job.Cores.Intersect(machine).Equal(job.Cores) {
			return fmt.Errorf("%w: job %s cores %s outside machine cores %s",
				ErrInvalidArgument, job.Name, job.Cores, machine)
		}
	}
	return nil
}
