package domain

import (
	"errors"
	"strings"
)

// InstallRequest describes a container to install, either from a registry image or from source.
type InstallRequest struct {
	Name    string `json:"name"`
	Image   string `json:"image"`
	RepoURL string `json:"repo_url"`
	Ref     string `json:"ref,omitempty"`
}

// BuildRequest describes an image build from a git repository.
type BuildRequest struct {
	RepoURL    string
	Ref        string
	Image      string
	Dockerfile string
}

// Validate fills in derived fields and rejects requests that name neither an image nor a repository.
func (r *InstallRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Image = strings.TrimSpace(r.Image)
	r.RepoURL = strings.TrimSpace(r.RepoURL)
	if r.Image == "" && r.RepoURL == "" {
		return errors.New("image name or repo url is required")
	}
	if r.Image == "" {
		r.Image = "lighthouse/" + repoBaseName(r.RepoURL) + ":latest"
	}
	return nil
}

func repoBaseName(repoURL string) string {
	name := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)
	if name == "" {
		return "app"
	}
	return name
}
