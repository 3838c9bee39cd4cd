//go:build !linux

package affinity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// ProcessController is a stub on platforms without sched_setaffinity support.
type ProcessController struct {
	processName string
	logger      *zap.Logger
}

var _ Controller = (*ProcessController)(nil)

// NewProcessController creates the stub controller.
func NewProcessController(processName string, logger *zap.Logger) *ProcessController {
	return &ProcessController{
		processName: processName,
		logger:      logger.With(zap.String("component", "affinity"), zap.String("process", processName)),
	}
}

// Get is unsupported off Linux.
func (c *ProcessController) Get(ctx context.Context) (domain.CoreSet, error) {
	return domain.CoreSet{}, fmt.Errorf("%w: process affinity is only supported on linux", domain.ErrOperationFailed)
}

// Set is unsupported off Linux.
func (c *ProcessController) Set(ctx context.Context, cores domain.CoreSet) error {
	return fmt.Errorf("%w: process affinity is only supported on linux", domain.ErrOperationFailed)
}
