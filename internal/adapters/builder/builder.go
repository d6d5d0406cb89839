package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// cloneFunc checks out a repository into dir.
type cloneFunc func(ctx context.Context, dir string, req domain.BuildRequest) error

// imageBuilder is the part of the Docker SDK client used to build images.
type imageBuilder interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
}

// Adapter implements ports.BuilderService with go-git and the Docker build API.
type Adapter struct {
	cli   imageBuilder
	clone cloneFunc
	log   logrus.FieldLogger
}

func NewBuilderAdapter(log logrus.FieldLogger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, clone: gitClone, log: log.WithField("component", "builder")}, nil
}

// BuildImage clones req.RepoURL at req.Ref and builds req.Image from its Dockerfile.
func (a *Adapter) BuildImage(ctx context.Context, req domain.BuildRequest) (string, error) {
	tmpDir, err := os.MkdirTemp("", "lighthouse-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	log := a.log.WithFields(logrus.Fields{"repo": req.RepoURL, "ref": req.Ref, "image": req.Image})
	log.Info("Cloning repository")
	if err := a.clone(ctx, tmpDir, req); err != nil {
		return "", fmt.Errorf("failed to clone repo: %w", err)
	}

	tar, err := archive.TarWithOptions(tmpDir, &archive.TarOptions{ExcludePatterns: []string{".git"}})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}
	defer tar.Close()

	dockerfile := req.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	log.Info("Building image")
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{req.Image},
		Dockerfile: dockerfile,
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	if err := drainBuildOutput(resp.Body); err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	log.Info("Built image")
	return req.Image, nil
}

// drainBuildOutput reads the build stream to completion and returns the first error message in it.
func drainBuildOutput(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg struct {
			Error string `json:"error"`
		}
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if msg.Error != "" {
			return errors.New(msg.Error)
		}
	}
}

func gitClone(ctx context.Context, dir string, req domain.BuildRequest) error {
	opts := &git.CloneOptions{
		URL:          req.RepoURL,
		Depth:        1,
		SingleBranch: true,
	}
	if req.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(req.Ref)
	}
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	return err
}
