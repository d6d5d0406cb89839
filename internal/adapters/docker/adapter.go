package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

const (
	composeProjectLabel = "com.docker.compose.project"
	descriptionLabel    = "org.opencontainers.image.description"
	stopTimeoutSeconds  = 10
)

// dockerAPI is the subset of the Docker SDK client used by the adapter.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
	Ping(ctx context.Context) (types.Ping, error)
}

// Adapter implements ports.ContainerService using Docker SDK
type Adapter struct {
	cli dockerAPI
	log logrus.FieldLogger
}

// NewAdapter creates a Docker adapter from the environment (DOCKER_HOST etc.).
func NewAdapter(log logrus.FieldLogger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newAdapter(cli, log), nil
}

func newAdapter(cli dockerAPI, log logrus.FieldLogger) *Adapter {
	return &Adapter{cli: cli, log: log.WithField("component", "docker")}
}

// ListContainers returns every container, running or not, sorted by name.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	result := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		result = append(result, toDomain(c))
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func toDomain(c types.Container) domain.Container {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	id := c.ID
	if len(id) > 12 {
		id = id[:12]
	}

	out := domain.Container{
		ID:          id,
		Name:        name,
		Image:       c.Image,
		Status:      domain.StatusFromState(c.State),
		State:       c.Status,
		Installed:   true,
		Port:        publicPort(c.Ports),
		PrivatePort: privatePort(c.Ports),
		Description: c.Labels[descriptionLabel],
		Group:       c.Labels[composeProjectLabel],
	}
	if out.Group == "" {
		out.Group = domain.DefaultGroup
	}
	for _, m := range c.Mounts {
		out.Volumes = append(out.Volumes, m.Source+":"+m.Destination)
	}
	if c.NetworkSettings != nil {
		for _, n := range c.NetworkSettings.Networks {
			if n != nil && n.IPAddress != "" {
				out.IPAddress = n.IPAddress
				break
			}
		}
	}
	return out
}

func publicPort(ports []types.Port) string {
	for _, p := range ports {
		if p.PublicPort != 0 {
			return strconv.Itoa(int(p.PublicPort))
		}
	}
	return ""
}

func privatePort(ports []types.Port) int {
	for _, p := range ports {
		if p.PrivatePort != 0 && (p.Type == "" || p.Type == "tcp") {
			return int(p.PrivatePort)
		}
	}
	return 0
}

// InstallContainer pulls image and creates and starts a container from it.
func (a *Adapter) InstallContainer(ctx context.Context, image, name string) (string, error) {
	if err := a.pull(ctx, image); err != nil {
		return "", err
	}

	resp, err := a.cli.ContainerCreate(ctx, &container.Config{
		Image: image,
	}, &container.HostConfig{
		RestartPolicy:   container.RestartPolicy{Name: "unless-stopped"},
		PublishAllPorts: true,
	}, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	a.log.WithFields(logrus.Fields{"image": image, "name": name, "id": resp.ID}).Info("Installed container")
	return resp.ID, nil
}

// ToggleContainer stops a running container and starts any other.
func (a *Adapter) ToggleContainer(ctx context.Context, name string) (domain.Status, error) {
	info, err := a.cli.ContainerInspect(ctx, name)
	if err != nil {
		return domain.StatusUnknown, fmt.Errorf("failed to inspect container: %w", err)
	}

	if info.ContainerJSONBase != nil && info.State != nil && info.State.Running {
		if err := a.stop(ctx, name); err != nil {
			return domain.StatusUnknown, err
		}
		a.log.WithField("name", name).Info("Stopped container")
		return domain.StatusStopped, nil
	}

	if err := a.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return domain.StatusUnknown, fmt.Errorf("failed to start container: %w", err)
	}
	a.log.WithField("name", name).Info("Started container")
	return domain.StatusRunning, nil
}

// RestartContainer restarts a container.
func (a *Adapter) RestartContainer(ctx context.Context, name string) error {
	timeout := stopTimeoutSeconds
	if err := a.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to restart container: %w", err)
	}
	a.log.WithField("name", name).Info("Restarted container")
	return nil
}

// UpdateContainer pulls the latest image of a container and recreates it with the same
// configuration. Network attachments keep their aliases only.
func (a *Adapter) UpdateContainer(ctx context.Context, name string) error {
	info, err := a.cli.ContainerInspect(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}
	if info.Config == nil || info.ContainerJSONBase == nil {
		return fmt.Errorf("container %s has no config", name)
	}

	if err := a.pull(ctx, info.Config.Image); err != nil {
		return err
	}

	wasRunning := info.State != nil && info.State.Running
	if wasRunning {
		if err := a.stop(ctx, name); err != nil {
			return err
		}
	}
	if err := a.cli.ContainerRemove(ctx, info.ID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove old container: %w", err)
	}

	var netCfg *network.NetworkingConfig
	if info.NetworkSettings != nil && len(info.NetworkSettings.Networks) > 0 {
		netCfg = &network.NetworkingConfig{EndpointsConfig: map[string]*network.EndpointSettings{}}
		for netName, es := range info.NetworkSettings.Networks {
			settings := &network.EndpointSettings{}
			if es != nil {
				settings.Aliases = es.Aliases
			}
			netCfg.EndpointsConfig[netName] = settings
		}
	}

	resp, err := a.cli.ContainerCreate(ctx, info.Config, info.HostConfig, netCfg, nil, strings.TrimPrefix(info.Name, "/"))
	if err != nil {
		return fmt.Errorf("failed to recreate container: %w", err)
	}
	if wasRunning {
		if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
	}

	a.log.WithFields(logrus.Fields{"name": name, "image": info.Config.Image, "id": resp.ID}).Info("Updated container")
	return nil
}

// GetContainerLogs returns the last tail lines of stdout and stderr as plain text.
// tail <= 0 returns the whole log.
func (a *Adapter) GetContainerLogs(ctx context.Context, name string, tail int) (io.ReadCloser, error) {
	info, err := a.cli.ContainerInspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
	}
	if tail > 0 {
		options.Tail = strconv.Itoa(tail)
	}
	logs, err := a.cli.ContainerLogs(ctx, name, options)
	if err != nil {
		return nil, fmt.Errorf("failed to get container logs: %w", err)
	}
	if info.Config != nil && info.Config.Tty {
		return logs, nil
	}

	// Non-TTY logs are multiplexed; demultiplex into one text stream.
	pr, pw := io.Pipe()
	go func() {
		defer logs.Close()
		_, err := stdcopy.StdCopy(pw, pw, logs)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// Ping checks that the Docker daemon answers.
func (a *Adapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return nil
}

func (a *Adapter) stop(ctx context.Context, name string) error {
	timeout := stopTimeoutSeconds
	if err := a.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

func (a *Adapter) pull(ctx context.Context, image string) error {
	reader, err := a.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	a.log.WithField("image", image).Debug("Pulled image")
	return nil
}
