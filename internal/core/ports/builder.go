package ports

import (
	"context"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// BuilderService turns a source repository into a runnable image.
type BuilderService interface {
	// BuildImage clones req.RepoURL and builds req.Image from it, returning the image tag.
	BuildImage(ctx context.Context, req domain.BuildRequest) (string, error)
}
