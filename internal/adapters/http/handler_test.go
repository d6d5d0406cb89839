package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-paas/internal/adapters/sqlite"
	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/logging"
)

type fakeContainers struct {
	containers []domain.Container
	installed  []string
	toggled    []string
	restarted  []string
	updated    []string
	logs       string
	pingErr    error
	listErr    error
}

func (f *fakeContainers) ListContainers(context.Context) ([]domain.Container, error) {
	return f.containers, f.listErr
}

func (f *fakeContainers) InstallContainer(_ context.Context, image, name string) (string, error) {
	f.installed = append(f.installed, image+"|"+name)
	return "cid-" + name, nil
}

func (f *fakeContainers) ToggleContainer(_ context.Context, name string) (domain.Status, error) {
	for i, c := range f.containers {
		if c.Name != name {
			continue
		}
		f.toggled = append(f.toggled, name)
		if c.Status == domain.StatusRunning {
			f.containers[i].Status = domain.StatusStopped
		} else {
			f.containers[i].Status = domain.StatusRunning
		}
		return f.containers[i].Status, nil
	}
	return domain.StatusUnknown, fmt.Errorf("container %s: %w", name, domain.ErrNotFound)
}

func (f *fakeContainers) RestartContainer(_ context.Context, name string) error {
	f.restarted = append(f.restarted, name)
	return nil
}

func (f *fakeContainers) UpdateContainer(_ context.Context, name string) error {
	f.updated = append(f.updated, name)
	return nil
}

func (f *fakeContainers) GetContainerLogs(_ context.Context, name string, tail int) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(fmt.Sprintf("%s tail=%d\n%s", name, tail, f.logs))), nil
}

func (f *fakeContainers) Ping(context.Context) error { return f.pingErr }

type fakeBuilder struct {
	requests []domain.BuildRequest
	err      error
}

func (f *fakeBuilder) BuildImage(_ context.Context, req domain.BuildRequest) (string, error) {
	f.requests = append(f.requests, req)
	return req.Image, f.err
}

type testServer struct {
	app        *fiber.App
	containers *fakeContainers
	builder    *fakeBuilder
	store      *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logging.Discard()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	containers := &fakeContainers{containers: []domain.Container{
		{Name: "plex", Status: domain.StatusRunning, Installed: true, Group: "media"},
		{Name: "jellyfin", Status: domain.StatusStopped, Installed: true, Group: "media"},
		{Name: "grafana", Status: domain.StatusRunning, Installed: true},
	}}
	builder := &fakeBuilder{}

	app := NewApp(Handlers{
		Containers: NewContainerHandler(containers, builder, store, log),
		Categories: NewCategoryHandler(store, containers, log),
		Proxy:      NewProxyHandler(containers, "apps.test", log),
	}, log)
	return &testServer{app: app, containers: containers, builder: builder, store: store}
}

func (s *testServer) do(t *testing.T, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	} else {
		out["text"] = string(raw)
	}
	return resp, out
}

func TestListContainersGroupsByRawGroup(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/api/containers", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	media := body["media"].(map[string]any)["containers"].([]any)
	assert.Len(t, media, 2)
	def := body[domain.DefaultGroup].(map[string]any)["containers"].([]any)
	assert.Equal(t, "grafana", def[0].(map[string]any)["name"])
}

func TestListContainersFailure(t *testing.T) {
	s := newTestServer(t)
	s.containers.listErr = errors.New("daemon down")

	resp, body := s.do(t, http.MethodGet, "/api/containers", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["message"], "daemon down")
}

func TestCategoryCRUD(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, name := range []string{"A", "B"} {
		_, err := s.store.CreateCategory(ctx, domain.Category{Name: name})
		require.NoError(t, err)
	}

	resp, body := s.do(t, http.MethodPost, "/api/categories", map[string]any{
		"name": "Media", "icon": "film", "containers": []string{"plex", "jellyfin"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "success", body["status"])
	id := body["id"].(string)
	require.NotEmpty(t, id)

	resp, body = s.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	categories := body["categories"].(map[string]any)
	require.Contains(t, categories, id)
	assert.Equal(t, "Media", categories[id].(map[string]any)["name"])

	resp, body = s.do(t, http.MethodPut, "/api/categories?id="+id, map[string]any{
		"name": "Streaming", "icon": "tv", "containers": []string{"plex"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	got, err := s.store.GetCategory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Streaming", got.Name)
	assert.Equal(t, []string{"plex"}, got.Members)
	assert.Equal(t, 2, got.Position, "an edit without position keeps the display order")
	assert.Equal(t, float64(2), body["category"].(map[string]any)["position"])

	resp, body = s.do(t, http.MethodDelete, "/api/categories?id="+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = s.do(t, http.MethodDelete, "/api/categories?id="+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
}

func TestCategoryValidationErrors(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body := s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "A"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "error", body["status"])

	resp, _ = s.do(t, http.MethodPut, "/api/categories", map[string]any{"name": "B"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/categories?id=other", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveOrder(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	a, err := s.store.CreateCategory(ctx, domain.Category{Name: "A"})
	require.NoError(t, err)
	b, err := s.store.CreateCategory(ctx, domain.Category{Name: "B"})
	require.NoError(t, err)

	resp, body := s.do(t, http.MethodPost, "/api/categories/order", map[string]any{
		b.ID:           map[string]int{"position": 0},
		domain.OtherID: map[string]int{"position": 1},
		a.ID:           map[string]int{"position": 2},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "success", body["status"])

	all, err := s.store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, all[b.ID].Position)
	assert.Equal(t, 2, all[a.ID].Position)
}

func TestListGroups(t *testing.T) {
	s := newTestServer(t)
	_, err := s.store.CreateCategory(context.Background(), domain.Category{Name: "Media", Members: []string{"plex", "jellyfin"}})
	require.NoError(t, err)

	resp, body := s.do(t, http.MethodGet, "/api/groups", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	groups := body["groups"].([]any)
	require.Len(t, groups, 2)
	assert.Equal(t, "Media", groups[0].(map[string]any)["key"])
	assert.Equal(t, domain.OtherKey, groups[1].(map[string]any)["key"])
}

func TestToggleContainer(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/toggle/plex", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stopped", body["state"])
	assert.Equal(t, "Container plex stopped", body["message"])

	resp, body = s.do(t, http.MethodPost, "/api/toggle/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
}

func TestInstallFromImage(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/install", map[string]any{"image": "nginx:latest", "name": "web"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "cid-web", body["id"])
	assert.Equal(t, []string{"nginx:latest|web"}, s.containers.installed)
	assert.Empty(t, s.builder.requests)
}

func TestInstallFromRepoBuildsFirst(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/install", map[string]any{"repo_url": "https://github.com/acme/Hello-App.git"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	require.Len(t, s.builder.requests, 1)
	assert.Equal(t, "lighthouse/hello-app:latest", s.builder.requests[0].Image)
	assert.Equal(t, []string{"lighthouse/hello-app:latest|"}, s.containers.installed)
}

func TestInstallBuildFailure(t *testing.T) {
	s := newTestServer(t)
	s.builder.err = errors.New("no Dockerfile")

	resp, body := s.do(t, http.MethodPost, "/api/install", map[string]any{"repo_url": "https://example.com/x.git"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["message"], "Build failed")
	assert.Empty(t, s.containers.installed)
}

func TestInstallRequiresImageOrRepo(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/api/install", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
}

func TestRestartAndUpdate(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/api/container/plex/restart", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/api/update/plex", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/container/jellyfin/restart", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Names recorded by the port must survive later requests reusing the request buffers.
	assert.Equal(t, []string{"plex", "jellyfin"}, s.containers.restarted)
	assert.Equal(t, []string{"plex"}, s.containers.updated)
}

func TestContainerConfig(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/api/container/plex/config", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/container/plex/config", map[string]any{"config": "image: plex\n"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/container/plex/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image: plex\n", body["config"])

	resp, _ = s.do(t, http.MethodPost, "/api/container/plex/config", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContainerLogs(t *testing.T) {
	s := newTestServer(t)
	s.containers.logs = "hello"

	resp, body := s.do(t, http.MethodGet, "/api/container/plex/logs?tail=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "plex tail=5\nhello", body["text"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["docker"])

	s.containers.pingErr = errors.New("refused")
	resp, body = s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unreachable", body["docker"])
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
}
