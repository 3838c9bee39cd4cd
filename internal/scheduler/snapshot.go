package scheduler

// JobSnapshot is the status-API view of one running job.
type JobSnapshot struct {
	Name    string `json:"name"`
	Cores   []int  `json:"cores"`
	Threads int    `json:"threads"`
	Paused  bool   `json:"paused"`
}

// Snapshot is a point-in-time view of the allocation state for observers.
type Snapshot struct {
	State        string        `json:"state"`
	ServiceCores []int         `json:"service_cores"`
	Running      []JobSnapshot `json:"running"`
	Pending      int           `json:"pending"`
	Completed    []string      `json:"completed"`
	Evicted      []string      `json:"evicted"`
}

// Snapshot returns the current allocation state. Safe to call concurrently
// with the control loop.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	state := c.state.String()
	serviceCores := c.service.Cores.Indices()
	evicted := make([]string, len(c.evicted))
	for i, name := range c.evicted {
		evicted[i] = name.String()
	}
	c.mu.RUnlock()

	running := c.jobs.Running()
	jobs := make([]JobSnapshot, len(running))
	for i, job := range running {
		jobs[i] = JobSnapshot{
			Name:    job.Name.String(),
			Cores:   job.Cores.Indices(),
			Threads: job.Threads,
			Paused:  job.Paused,
		}
	}

	completedNames := c.jobs.Completed()
	completed := make([]string, len(completedNames))
	for i, name := range completedNames {
		completed[i] = name.String()
	}

	return Snapshot{
		State:        state,
		ServiceCores: serviceCores,
		Running:      jobs,
		Pending:      c.jobs.PendingLen(),
		Completed:    completed,
		Evicted:      evicted,
	}
}
