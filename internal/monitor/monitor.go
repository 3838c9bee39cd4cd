// Package monitor samples per-core CPU utilization for the scheduler's
// control loop.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// Sampler produces one fresh per-core utilization reading per call.
type Sampler interface {
	// Sample blocks for the sampling interval and returns one utilization
	// percentage (0-100) per core. It never returns a cached reading.
	Sample(ctx context.Context) ([]float64, error)
}

// CPUMonitor samples per-core utilization through the OS CPU accounting.
type CPUMonitor struct {
	interval time.Duration
	cores    int
	logger   *zap.Logger
}

// NewCPUMonitor creates a monitor for the given core count. It fails fast when
// the machine does not expose the expected number of cores.
func NewCPUMonitor(cores int, interval time.Duration, logger *zap.Logger) (*CPUMonitor, error) {
	if cores <= 0 {
		return nil, fmt.Errorf("%w: core count must be positive, got %d", domain.ErrInvalidArgument, cores)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: sampling interval must be positive, got %s", domain.ErrInvalidArgument, interval)
	}

	available, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("querying core count: %w", err)
	}
	if available < cores {
		return nil, fmt.Errorf("%w: configured for %d cores but machine has %d",
			domain.ErrInvalidArgument, cores, available)
	}

	return &CPUMonitor{
		interval: interval,
		cores:    cores,
		logger:   logger.With(zap.String("component", "monitor")),
	}, nil
}

// Sample returns the utilization of cores 0..cores-1 measured over the
// configured interval. Failures are reported as transient: the caller skips
// the tick and samples again on the next one.
func (m *CPUMonitor) Sample(ctx context.Context) ([]float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, m.interval, true)
	if err != nil {
		return nil, fmt.Errorf("%w: sampling per-core utilization: %v", domain.ErrTransient, err)
	}
	if len(percentages) < m.cores {
		return nil, fmt.Errorf("%w: sample has %d cores, expected %d",
			domain.ErrTransient, len(percentages), m.cores)
	}
	return percentages[:m.cores], nil
}
