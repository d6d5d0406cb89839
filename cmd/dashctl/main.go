// Command dashctl drives a lighthouse dashboard backend from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/melih/lighthouse-paas/internal/client"
	"github.com/melih/lighthouse-paas/internal/logging"
)

const usage = `Usage: dashctl [flags] <command> [args]

Commands:
  groups                      list containers grouped by category
  categories                  list categories in display order
  reorder <id> <before-id>    move a category before another and save the order
  toggle <name>               start or stop a container
  update <name>               pull the latest image and recreate a container
  restart <name>              restart a container
  logs <name>                 print the last log lines of a container
  watch                       poll the backend and print groups on every change

Flags:
`

func main() {
	server := flag.StringP("server", "s", envOr("LIGHTHOUSE_URL", "http://localhost:3000"), "backend base URL")
	asJSON := flag.Bool("json", false, "print output as JSON")
	interval := flag.DurationP("interval", "i", 5*time.Second, "poll interval of watch")
	tail := flag.IntP("tail", "n", 200, "number of log lines")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logging.New(logging.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	c, err := client.New(*server)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{
		api:      c,
		out:      os.Stdout,
		json:     *asJSON,
		interval: *interval,
		tail:     *tail,
		log:      log,
	}
	if err := app.run(ctx, flag.Args()); err != nil {
		app.fail(err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
