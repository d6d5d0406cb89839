package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rodaine/table"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/client"
	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/core/grouping"
	"github.com/melih/lighthouse-paas/internal/dashboard"
)

var errUsage = errors.New("invalid usage")

type errorRespond struct {
	ErrorMessage string `json:"error"`
}

type app struct {
	api      *client.Client
	out      io.Writer
	json     bool
	interval time.Duration
	tail     int
	log      logrus.FieldLogger
}

func (c *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "groups":
		return c.groups(ctx)
	case "categories":
		return c.categories(ctx)
	case "reorder":
		if len(rest) != 2 {
			return fmt.Errorf("%w: reorder <id> <before-id>", errUsage)
		}
		return c.reorder(ctx, rest[0], rest[1])
	case "toggle", "update", "restart", "logs":
		if len(rest) != 1 {
			return fmt.Errorf("%w: %s <name>", errUsage, cmd)
		}
		return c.containerAction(ctx, cmd, rest[0])
	case "watch":
		return c.watch(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (c *app) groups(ctx context.Context) error {
	groups, err := c.api.Groups(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return c.printJSON(groups)
	}
	c.printGroups(groups)
	return nil
}

func (c *app) categories(ctx context.Context) error {
	cats, err := c.api.ListCategories(ctx)
	if err != nil {
		return err
	}
	sorted := grouping.SortedCategories(cats)
	if c.json {
		return c.printJSON(sorted)
	}
	tbl := table.New("Position", "Id", "Name", "Icon", "Containers").WithWriter(c.out)
	for _, cat := range sorted {
		tbl.AddRow(cat.Position, cat.ID, cat.Name, cat.Icon, strings.Join(cat.Members, ", "))
	}
	tbl.Print()
	return nil
}

func (c *app) reorder(ctx context.Context, id, beforeID string) error {
	s := dashboard.NewSession(c.api, dashboard.WithLogger(c.log), dashboard.WithReorderRollback())
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	commit, err := s.Move(ctx, id, beforeID)
	if err != nil {
		return err
	}
	if commit == nil {
		return fmt.Errorf("nothing to reorder: %q is not a drop target for %q", beforeID, id)
	}
	if c.json {
		return c.printJSON(commit.Positions)
	}
	tbl := table.New("Position", "Id").WithWriter(c.out)
	for i, itemID := range commit.Order {
		tbl.AddRow(i, itemID)
	}
	tbl.Print()
	return nil
}

func (c *app) containerAction(ctx context.Context, action, name string) error {
	switch action {
	case "toggle":
		state, err := c.api.Toggle(ctx, name)
		if err != nil {
			return err
		}
		return c.message(map[string]string{"name": name, "state": string(state)}, "%s is now %s", name, state)
	case "update":
		if err := c.api.Update(ctx, name); err != nil {
			return err
		}
		return c.message(map[string]string{"name": name, "status": "updated"}, "%s updated", name)
	case "restart":
		if err := c.api.Restart(ctx, name); err != nil {
			return err
		}
		return c.message(map[string]string{"name": name, "status": "restarted"}, "%s restarted", name)
	default:
		logs, err := c.api.Logs(ctx, name, c.tail)
		if err != nil {
			return err
		}
		if c.json {
			return c.printJSON(map[string]string{"name": name, "logs": logs})
		}
		_, err = io.WriteString(c.out, logs)
		return err
	}
}

// watch prints the groups whenever the polled state changes, until ctx is done.
func (c *app) watch(ctx context.Context) error {
	var (
		mu   sync.Mutex
		last string
	)
	s := dashboard.NewSession(c.api,
		dashboard.WithLogger(c.log),
		dashboard.WithIntervals(dashboard.Intervals{
			Containers: c.interval,
			Categories: c.interval,
			Health:     c.interval,
		}),
		dashboard.OnChange(func(snap dashboard.Snapshot) {
			key := render(snap.Groups)
			if !snap.Healthy {
				key += "\n! " + snap.HealthError
			}
			mu.Lock()
			defer mu.Unlock()
			if key == last {
				return
			}
			last = key
			if c.json {
				_ = c.printJSON(snap)
				return
			}
			fmt.Fprintf(c.out, "--- %s ---\n", snap.UpdatedAt.Format(time.TimeOnly))
			c.printGroups(snap.Groups)
			if !snap.Healthy {
				fmt.Fprintf(c.out, "backend unhealthy: %s\n", snap.HealthError)
			}
		}),
	)
	s.Run(ctx)
	return nil
}

// render is a change key of groups.
func render(groups []domain.Group) string {
	var b strings.Builder
	for _, g := range groups {
		b.WriteString(g.Key)
		for _, ct := range g.Containers {
			fmt.Fprintf(&b, "|%s:%s", ct.Name, ct.Status)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (c *app) printGroups(groups []domain.Group) {
	tbl := table.New("Group", "Container", "Status", "Port", "Image").WithWriter(c.out)
	for _, g := range groups {
		for _, ct := range g.Containers {
			tbl.AddRow(g.Key, ct.Name, ct.Status, ct.Port, ct.Image)
		}
	}
	tbl.Print()
}

func (c *app) message(v any, format string, args ...any) error {
	if c.json {
		return c.printJSON(v)
	}
	_, err := fmt.Fprintf(c.out, format+"\n", args...)
	return err
}

func (c *app) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *app) fail(err error) {
	if !c.json {
		fmt.Fprintf(os.Stderr, "dashctl: %v\n", err)
		return
	}
	data, marshalErr := json.Marshal(errorRespond{ErrorMessage: err.Error()})
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "dashctl: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, string(data))
}
