package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/core/reorder"
	"github.com/melih/lighthouse-paas/internal/logging"
)

type fakeAPI struct {
	mu         sync.Mutex
	containers []domain.Container
	categories map[string]domain.Category
	healthErr  error
	saveErr    error
	saved      []map[string]int
}

func (f *fakeAPI) ListContainers(context.Context) ([]domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Container(nil), f.containers...), nil
}

func (f *fakeAPI) ListCategories(context.Context) (map[string]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.Category, len(f.categories))
	for k, v := range f.categories {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAPI) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeAPI) SaveOrder(_ context.Context, positions map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, positions)
	return f.saveErr
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		containers: []domain.Container{
			{Name: "plex", Status: domain.StatusRunning},
			{Name: "grafana", Status: domain.StatusRunning},
			{Name: "pihole", Status: domain.StatusStopped},
		},
		categories: map[string]domain.Category{
			"m": {ID: "m", Name: "Media", Icon: "film", Members: []string{"plex"}, Position: 0},
			"n": {ID: "n", Name: "Network", Icon: "wifi", Members: []string{"pihole"}, Position: 1},
		},
	}
}

func groupKeys(groups []domain.Group) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return keys
}

func itemIDs(items []reorder.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestRefreshBuildsGroupsAndManagerList(t *testing.T) {
	api := newFakeAPI()
	s := NewSession(api, WithLogger(logging.Discard()))

	require.NoError(t, s.Refresh(context.Background()))
	snap := s.Snapshot()

	assert.Equal(t, []string{"Media", "Network", "Other"}, groupKeys(snap.Groups))
	assert.Equal(t, "grafana", snap.Groups[2].Containers[0].Name)
	assert.Equal(t, []string{"m", "n", domain.OtherID}, itemIDs(snap.Categories))
	assert.True(t, snap.Healthy)
	assert.Empty(t, snap.HealthError)
}

func TestHealthFailureIsRecorded(t *testing.T) {
	api := newFakeAPI()
	api.healthErr = errors.New("connection refused")
	s := NewSession(api, WithLogger(logging.Discard()))

	require.NoError(t, s.Refresh(context.Background()))
	snap := s.Snapshot()
	assert.False(t, snap.Healthy)
	assert.Equal(t, "connection refused", snap.HealthError)
}

func TestMovePersistsFullOrder(t *testing.T) {
	api := newFakeAPI()
	var changes int
	s := NewSession(api, WithLogger(logging.Discard()), OnChange(func(Snapshot) { changes++ }))
	require.NoError(t, s.Refresh(context.Background()))
	before := changes

	commit, err := s.Move(context.Background(), domain.OtherID, "m")
	require.NoError(t, err)
	require.NotNil(t, commit)

	want := map[string]int{domain.OtherID: 0, "m": 1, "n": 2}
	if diff := cmp.Diff(want, commit.Positions); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, api.saved, 1)
	assert.Equal(t, want, api.saved[0])
	assert.Equal(t, []string{domain.OtherID, "m", "n"}, itemIDs(s.Snapshot().Categories))
	assert.Greater(t, changes, before)
}

func TestMoveFailureRollsBackWhenConfigured(t *testing.T) {
	api := newFakeAPI()
	api.saveErr = errors.New("db locked")
	s := NewSession(api, WithLogger(logging.Discard()), WithReorderRollback())
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.Move(context.Background(), "n", "m")
	require.Error(t, err)
	assert.Equal(t, []string{"m", "n", domain.OtherID}, itemIDs(s.Snapshot().Categories))
}

func TestCategoryRefreshDeferredWhileDragging(t *testing.T) {
	api := newFakeAPI()
	s := NewSession(api, WithLogger(logging.Discard()))
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.Reorder().DragStart("m"))
	s.SetCategories(map[string]domain.Category{
		"x": {ID: "x", Name: "Tools", Members: []string{"grafana"}},
	})

	// Groups follow the new categories immediately; the manager list waits for the drag.
	assert.Equal(t, []string{"Tools", "Other"}, groupKeys(s.Snapshot().Groups))
	assert.Equal(t, []string{"m", "n", domain.OtherID}, itemIDs(s.Snapshot().Categories))

	s.Reorder().DragEnd()
	s.SetCategories(map[string]domain.Category{
		"x": {ID: "x", Name: "Tools", Members: []string{"grafana"}},
	})
	assert.Equal(t, []string{"x", domain.OtherID}, itemIDs(s.Snapshot().Categories))
}

func TestRunPollsUntilCancelled(t *testing.T) {
	api := newFakeAPI()
	s := NewSession(api,
		WithLogger(logging.Discard()),
		WithIntervals(Intervals{Containers: 10 * time.Millisecond, Categories: 10 * time.Millisecond, Health: 10 * time.Millisecond}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(s.Snapshot().Groups) == 3
	}, time.Second, 5*time.Millisecond)

	api.mu.Lock()
	api.containers = append(api.containers, domain.Container{Name: "jellyfin", Status: domain.StatusRunning})
	api.categories["m"] = domain.Category{ID: "m", Name: "Media", Members: []string{"plex", "jellyfin"}}
	api.mu.Unlock()

	require.Eventually(t, func() bool {
		groups := s.Snapshot().Groups
		return len(groups) > 0 && groups[0].Key == "Media" && len(groups[0].Containers) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
