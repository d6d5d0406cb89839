// Package reorder implements drag-and-drop reordering of categories with optimistic persistence.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/core/grouping"
	"github.com/melih/lighthouse-paas/internal/core/ports"
)

// State is the phase of the current drag gesture.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrUnknownItem = errors.New("unknown item")

// Item is one entry of the reorderable category list.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Commit is the result of a drop that changed the order.
type Commit struct {
	Order     []string
	Positions map[string]int
}

// Option configures a Controller.
type Option func(*Controller)

// WithRollback restores the previous order when persisting a commit fails.
func WithRollback() Option {
	return func(c *Controller) { c.rollback = true }
}

// WithLogger sets the logger used to report failed commits.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller sequences one drag gesture at a time over an ordered list of items.
type Controller struct {
	mu          sync.Mutex
	items       []Item
	state       State
	dragged     string
	highlighted string

	store    ports.OrderStore
	rollback bool
	log      logrus.FieldLogger
}

// New returns a controller over a copy of items.
func New(items []Item, store ports.OrderStore, opts ...Option) *Controller {
	c := &Controller{
		items: append([]Item(nil), items...),
		store: store,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ItemsFromCategories builds the manager list: persisted categories in display order followed by
// the synthesized Other item.
func ItemsFromCategories(categories map[string]domain.Category) []Item {
	sorted := grouping.SortedCategories(categories)
	items := make([]Item, 0, len(sorted)+1)
	for _, c := range sorted {
		items = append(items, Item{ID: c.ID, Name: c.Name, Icon: c.Icon})
	}
	return append(items, Item{ID: domain.OtherID, Name: domain.OtherKey, Icon: domain.DefaultOtherIcon})
}

// Items returns a copy of the current order.
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.items...)
}

// Reset replaces the list. It is ignored while a gesture is in progress.
func (c *Controller) Reset(items []Item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return false
	}
	c.items = append([]Item(nil), items...)
	return true
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dragged returns the id of the item being dragged, or "" when idle.
func (c *Controller) Dragged() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragged
}

// Highlighted returns the id of the current drop zone, or "".
func (c *Controller) Highlighted() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlighted
}

// DragStart begins a gesture on id.
func (c *Controller) DragStart(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	c.state = Dragging
	c.dragged = id
	c.highlighted = ""
	return nil
}

// DragEnter marks id as the drop zone, replacing any previous highlight.
func (c *Controller) DragEnter(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging || c.indexOf(id) < 0 {
		return
	}
	c.highlighted = id
}

// DragLeave clears the highlight if it is on id.
func (c *Controller) DragLeave(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.highlighted == id {
		c.highlighted = ""
	}
}

// DragEnd clears all gesture state. It is called after every gesture, dropped or cancelled.
func (c *Controller) DragEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
	c.dragged = ""
	c.highlighted = ""
}

// Drop moves the dragged item before targetID and persists the full position mapping.
// Dropping onto the dragged item itself or outside any item (unknown or empty target) is a no-op
// and returns a nil Commit. The new order is applied before the store is called; on a store
// failure the order is kept unless the controller was built WithRollback.
func (c *Controller) Drop(ctx context.Context, targetID string) (*Commit, error) {
	c.mu.Lock()
	if c.state != Dragging || targetID == "" || targetID == c.dragged || c.indexOf(targetID) < 0 {
		c.mu.Unlock()
		return nil, nil
	}
	snapshot := append([]Item(nil), c.items...)
	dragged := c.dragged
	c.items = moveBefore(c.items, c.indexOf(dragged), targetID)
	commit := newCommit(c.items)
	c.mu.Unlock()

	if c.store == nil {
		return commit, nil
	}
	if err := c.store.SaveOrder(ctx, commit.Positions); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"dragged":  dragged,
			"target":   targetID,
			"rollback": c.rollback,
		}).Errorln("Failed to persist category order")
		if c.rollback {
			c.mu.Lock()
			c.items = snapshot
			c.mu.Unlock()
		}
		return commit, fmt.Errorf("failed to save category order: %w", err)
	}
	return commit, nil
}

// Move runs a complete gesture: drag id, drop on beforeID, end.
func (c *Controller) Move(ctx context.Context, id, beforeID string) (*Commit, error) {
	if err := c.DragStart(id); err != nil {
		return nil, err
	}
	defer c.DragEnd()
	c.DragEnter(beforeID)
	return c.Drop(ctx, beforeID)
}

func (c *Controller) indexOf(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func moveBefore(items []Item, from int, targetID string) []Item {
	moved := items[from]
	rest := make([]Item, 0, len(items))
	rest = append(rest, items[:from]...)
	rest = append(rest, items[from+1:]...)

	out := make([]Item, 0, len(items))
	for _, it := range rest {
		if it.ID == targetID {
			out = append(out, moved)
		}
		out = append(out, it)
	}
	return out
}

func newCommit(items []Item) *Commit {
	commit := &Commit{
		Order:     make([]string, len(items)),
		Positions: make(map[string]int, len(items)),
	}
	for i, it := range items {
		commit.Order[i] = it.ID
		commit.Positions[it.ID] = i
	}
	return commit
}
