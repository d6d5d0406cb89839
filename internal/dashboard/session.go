// Package dashboard holds the client-side view model: the latest containers and categories,
// the groups derived from them, and the category reorder controller.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/core/grouping"
	"github.com/melih/lighthouse-paas/internal/core/ports"
	"github.com/melih/lighthouse-paas/internal/core/reorder"
	"github.com/melih/lighthouse-paas/internal/poller"
)

// API is the part of the backend the session reads from.
type API interface {
	ports.OrderStore
	ListContainers(ctx context.Context) ([]domain.Container, error)
	ListCategories(ctx context.Context) (map[string]domain.Category, error)
	Health(ctx context.Context) error
}

// Intervals sets how often each resource is polled.
type Intervals struct {
	Containers time.Duration
	Categories time.Duration
	Health     time.Duration
}

// DefaultIntervals match the refresh rates of the web dashboard.
var DefaultIntervals = Intervals{
	Containers: 5 * time.Second,
	Categories: 30 * time.Second,
	Health:     10 * time.Second,
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Groups      []domain.Group
	Categories  []reorder.Item
	Healthy     bool
	HealthError string
	UpdatedAt   time.Time
}

// Option configures a Session.
type Option func(*Session)

func WithIntervals(i Intervals) Option {
	return func(s *Session) { s.intervals = i }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// OnChange registers a callback run after every state change.
func OnChange(fn func(Snapshot)) Option {
	return func(s *Session) { s.onChange = fn }
}

// WithReorderRollback makes failed reorders revert the list.
func WithReorderRollback() Option {
	return func(s *Session) { s.reorderOpts = append(s.reorderOpts, reorder.WithRollback()) }
}

type Session struct {
	api         API
	log         logrus.FieldLogger
	intervals   Intervals
	onChange    func(Snapshot)
	reorderOpts []reorder.Option

	mu         sync.Mutex
	containers []domain.Container
	categories map[string]domain.Category
	groups     []domain.Group
	healthy    bool
	healthErr  string
	updatedAt  time.Time

	reorder *reorder.Controller
}

func NewSession(api API, opts ...Option) *Session {
	s := &Session{
		api:       api,
		log:       logrus.StandardLogger(),
		intervals: DefaultIntervals,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reorder = reorder.New(reorder.ItemsFromCategories(nil), api,
		append([]reorder.Option{reorder.WithLogger(s.log)}, s.reorderOpts...)...)
	return s
}

// Refresh fetches containers, categories and health once.
func (s *Session) Refresh(ctx context.Context) error {
	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		return err
	}
	containers, err := s.api.ListContainers(ctx)
	if err != nil {
		return err
	}
	s.SetCategories(categories)
	s.SetContainers(containers)
	s.SetHealth(s.api.Health(ctx))
	return nil
}

// Run polls every resource on its own interval until ctx is done.
func (s *Session) Run(ctx context.Context) {
	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(poller.New("containers", s.intervals.Containers, s.api.ListContainers, s.SetContainers,
		poller.WithLogger[[]domain.Container](s.log)).Run)
	run(poller.New("categories", s.intervals.Categories, s.api.ListCategories, s.SetCategories,
		poller.WithLogger[map[string]domain.Category](s.log)).Run)
	run(poller.New("health", s.intervals.Health, s.checkHealth, func(r healthResult) { s.SetHealth(r.err) },
		poller.WithLogger[healthResult](s.log)).Run)

	wg.Wait()
}

type healthResult struct{ err error }

// checkHealth folds a failed health check into a successful poll so an unhealthy backend is
// recorded instead of only logged.
func (s *Session) checkHealth(ctx context.Context) (healthResult, error) {
	err := s.api.Health(ctx)
	if ctx.Err() != nil {
		return healthResult{}, ctx.Err()
	}
	return healthResult{err: err}, nil
}

// SetContainers stores a fresh container list and regroups.
func (s *Session) SetContainers(containers []domain.Container) {
	s.mu.Lock()
	s.containers = containers
	s.regroupLocked()
	s.mu.Unlock()
	s.notify()
}

// SetCategories stores a fresh category set, regroups and resets the reorder list unless a
// drag is in progress.
func (s *Session) SetCategories(categories map[string]domain.Category) {
	s.mu.Lock()
	s.categories = categories
	s.regroupLocked()
	s.mu.Unlock()
	if !s.reorder.Reset(reorder.ItemsFromCategories(categories)) {
		s.log.Debug("Category refresh deferred: drag in progress")
	}
	s.notify()
}

func (s *Session) SetHealth(err error) {
	s.mu.Lock()
	s.healthy = err == nil
	s.healthErr = ""
	if err != nil {
		s.healthErr = err.Error()
	}
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) regroupLocked() {
	s.groups = grouping.GroupContainers(s.containers, s.categories)
	s.updatedAt = time.Now()
}

// Reorder returns the controller of the category manager list.
func (s *Session) Reorder() *reorder.Controller {
	return s.reorder
}

// Move reorders category id before beforeID and persists the new order.
func (s *Session) Move(ctx context.Context, id, beforeID string) (*reorder.Commit, error) {
	commit, err := s.reorder.Move(ctx, id, beforeID)
	if commit != nil {
		s.notify()
	}
	return commit, err
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Groups:      append([]domain.Group(nil), s.groups...),
		Categories:  s.reorder.Items(),
		Healthy:     s.healthy,
		HealthError: s.healthErr,
		UpdatedAt:   s.updatedAt,
	}
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}
