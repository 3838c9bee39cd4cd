package domain

// ColocationState describes the current division of cores between the service
// and the batch jobs. Exactly one state is active at a time; only the
// scheduler's state machine transitions between them.
type ColocationState int

const (
	// StateSoloCore: the service is confined to its single dedicated core and
	// batch jobs own every remaining core.
	StateSoloCore ColocationState = iota

	// StateColocated: the service has expanded onto the shared core, which
	// batch jobs still use concurrently.
	StateColocated

	// StateIsolated: every batch job has been evicted from the service's
	// expanded core set; the service runs isolated on its cores.
	StateIsolated
)

// String returns the state name used in logs and the status API.
func (s ColocationState) String() string {
	switch s {
	case StateSoloCore:
		return "solo_core"
	case StateColocated:
		return "colocated"
	case StateIsolated:
		return "isolated"
	default:
		return "unknown"
	}
}
