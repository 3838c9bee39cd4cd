package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// containerPrefix names every container this scheduler creates, so stale ones
// from earlier runs can be found and pruned.
const containerPrefix = "parsec_"

// dockerAPI is the slice of the Docker client the runner needs. *client.Client
// satisfies it; tests substitute a mock.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerUpdate(ctx context.Context, containerID string, updateConfig container.UpdateConfig) (container.ContainerUpdateOKBody, error)
	ContainerPause(ctx context.Context, containerID string) error
	ContainerUnpause(ctx context.Context, containerID string) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// DockerRunner runs batch jobs as Docker containers pinned via cpuset.
type DockerRunner struct {
	api       dockerAPI
	runID     string
	stopGrace time.Duration
	logger    *zap.Logger
}

var _ Runner = (*DockerRunner)(nil)

// NewDockerRunner creates a runner on top of the local Docker daemon.
func NewDockerRunner(runID string, stopGrace time.Duration, logger *zap.Logger) (*DockerRunner, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connecting to docker daemon: %w", err)
	}
	return newDockerRunner(api, runID, stopGrace, logger), nil
}

func newDockerRunner(api dockerAPI, runID string, stopGrace time.Duration, logger *zap.Logger) *DockerRunner {
	return &DockerRunner{
		api:       api,
		runID:     runID,
		stopGrace: stopGrace,
		logger:    logger.With(zap.String("component", "runner")),
	}
}

// containerName builds the per-run container name for a job.
func (r *DockerRunner) containerName(name domain.JobName) string {
	return fmt.Sprintf("%s%s_%s", containerPrefix, name, r.runID)
}

// Start creates and starts the job's container pinned to cores.
func (r *DockerRunner) Start(ctx context.Context, name domain.JobName, cores domain.CoreSet, threads int) (Handle, error) {
	img, err := imageFor(name)
	if err != nil {
		return Handle{}, err
	}
	if cores.Empty() || threads <= 0 {
		return Handle{}, fmt.Errorf("%w: job %s needs cores and threads (got %q, %d)",
			domain.ErrInvalidArgument, name, cores, threads)
	}

	resp, err := r.api.ContainerCreate(ctx,
		&container.Config{
			Image: img,
			Cmd:   jobCommand(name, threads),
		},
		&container.HostConfig{
			Resources: container.Resources{CpusetCpus: cores.String()},
		},
		nil, nil, r.containerName(name),
	)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: creating container for %s: %v", domain.ErrOperationFailed, name, err)
	}

	if err := r.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return Handle{}, fmt.Errorf("%w: starting container for %s: %v", domain.ErrOperationFailed, name, err)
	}

	r.logger.Info("Job container started",
		zap.String("job", name.String()),
		zap.String("container_id", resp.ID),
		zap.String("cores", cores.String()),
		zap.Int("threads", threads),
	)
	return Handle{Name: name, ContainerID: resp.ID}, nil
}

// Reassign updates the live cpuset of the job's container.
func (r *DockerRunner) Reassign(ctx context.Context, h Handle, cores domain.CoreSet) error {
	if cores.Empty() {
		return fmt.Errorf("%w: refusing to assign empty cpuset to %s", domain.ErrInvalidArgument, h.Name)
	}
	_, err := r.api.ContainerUpdate(ctx, h.ContainerID, container.UpdateConfig{
		Resources: container.Resources{CpusetCpus: cores.String()},
	})
	if err != nil {
		return fmt.Errorf("%w: updating cpuset of %s to %s: %v", domain.ErrOperationFailed, h.Name, cores, err)
	}
	r.logger.Info("Job cores reassigned",
		zap.String("job", h.Name.String()),
		zap.String("cores", cores.String()),
	)
	return nil
}

// Pause freezes the job's container.
func (r *DockerRunner) Pause(ctx context.Context, h Handle) error {
	if err := r.api.ContainerPause(ctx, h.ContainerID); err != nil {
		return fmt.Errorf("%w: pausing %s: %v", domain.ErrOperationFailed, h.Name, err)
	}
	return nil
}

// Resume unfreezes the job's container.
func (r *DockerRunner) Resume(ctx context.Context, h Handle) error {
	if err := r.api.ContainerUnpause(ctx, h.ContainerID); err != nil {
		return fmt.Errorf("%w: resuming %s: %v", domain.ErrOperationFailed, h.Name, err)
	}
	return nil
}

// Stop terminates the job's container, granting the configured grace period
// before the kill. Stopping a container that is already gone or already
// stopped succeeds.
func (r *DockerRunner) Stop(ctx context.Context, h Handle) error {
	grace := int(r.stopGrace.Seconds())
	err := r.api.ContainerStop(ctx, h.ContainerID, container.StopOptions{Timeout: &grace})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: stopping %s: %v", domain.ErrOperationFailed, h.Name, err)
	}
	return nil
}

// Status maps the container's inspect state onto the job status enum.
func (r *DockerRunner) Status(ctx context.Context, h Handle) (Status, error) {
	info, err := r.api.ContainerInspect(ctx, h.ContainerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return StatusUnknown, fmt.Errorf("%w: container of %s", domain.ErrNotFound, h.Name)
		}
		return StatusUnknown, fmt.Errorf("%w: inspecting %s: %v", domain.ErrTransient, h.Name, err)
	}
	return statusFromState(info.State), nil
}

// Remove deletes the job's exited container. Missing containers are fine.
func (r *DockerRunner) Remove(ctx context.Context, h Handle) error {
	err := r.api.ContainerRemove(ctx, h.ContainerID, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: removing container of %s: %v", domain.ErrOperationFailed, h.Name, err)
	}
	return nil
}

// PruneStale force-removes leftover benchmark containers from earlier runs so
// their names and cpusets do not collide with this run.
func (r *DockerRunner) PruneStale(ctx context.Context) error {
	list, err := r.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", containerPrefix)),
	})
	if err != nil {
		return fmt.Errorf("%w: listing containers: %v", domain.ErrTransient, err)
	}
	for _, c := range list {
		if err := r.api.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
			r.logger.Warn("Failed to remove stale container",
				zap.String("container_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("Removed stale container", zap.Strings("names", c.Names))
	}
	return nil
}

// PullImages fetches the images for the given jobs ahead of the run, so the
// first Start does not pay the pull latency while the control loop is ticking.
func (r *DockerRunner) PullImages(ctx context.Context, names []domain.JobName) error {
	for _, name := range names {
		img, err := imageFor(name)
		if err != nil {
			return err
		}
		reader, err := r.api.ImagePull(ctx, img, image.PullOptions{})
		if err != nil {
			return fmt.Errorf("%w: pulling %s: %v", domain.ErrOperationFailed, img, err)
		}
		_, copyErr := io.Copy(io.Discard, reader)
		reader.Close()
		if copyErr != nil {
			return fmt.Errorf("%w: pulling %s: %v", domain.ErrOperationFailed, img, copyErr)
		}
		r.logger.Info("Image ready", zap.String("image", img))
	}
	return nil
}

// statusFromState maps Docker's container state to the job status enum.
func statusFromState(state *types.ContainerState) Status {
	if state == nil {
		return StatusUnknown
	}
	switch strings.ToLower(state.Status) {
	case "running", "paused", "restarting", "created":
		return StatusRunning
	case "exited":
		if state.ExitCode == 0 {
			return StatusCompleted
		}
		return StatusFailed
	default: // "dead", "removing"
		return StatusUnknown
	}
}
