package ports

import (
	"context"
	"io"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// ContainerService defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerService interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	// InstallContainer pulls image and starts a new container called name.
	InstallContainer(ctx context.Context, image, name string) (string, error)
	// ToggleContainer stops a running container or starts a stopped one and returns the new status.
	ToggleContainer(ctx context.Context, name string) (domain.Status, error)
	RestartContainer(ctx context.Context, name string) error
	// UpdateContainer pulls the container's image again and recreates it.
	UpdateContainer(ctx context.Context, name string) error
	GetContainerLogs(ctx context.Context, name string, tail int) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}
