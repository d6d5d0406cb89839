package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/melih/lighthouse-paas/internal/adapters/builder"
	"github.com/melih/lighthouse-paas/internal/adapters/docker"
	"github.com/melih/lighthouse-paas/internal/adapters/http"
	"github.com/melih/lighthouse-paas/internal/adapters/sqlite"
	"github.com/melih/lighthouse-paas/internal/config"
	"github.com/melih/lighthouse-paas/internal/logging"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to the INI config file")
	port := flag.StringP("port", "p", "", "listen port, overrides the config file")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "lighthouse: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, port string) error {
	// 1. Configuration and logging
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadWithDefaults()
	}
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Infrastructure adapters
	store, err := sqlite.Open(ctx, cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	dockerAdapter, err := docker.NewAdapter(log)
	if err != nil {
		return fmt.Errorf("failed to initialize Docker adapter: %w", err)
	}
	if err := dockerAdapter.Ping(ctx); err != nil {
		log.WithError(err).Warn("Docker daemon is not reachable yet")
	}

	builderAdapter, err := builder.NewBuilderAdapter(log)
	if err != nil {
		return fmt.Errorf("failed to initialize builder: %w", err)
	}

	// 3. HTTP handlers and routes
	app := http.NewApp(http.Handlers{
		Containers: http.NewContainerHandler(dockerAdapter, builderAdapter, store, log),
		Categories: http.NewCategoryHandler(store, dockerAdapter, log),
		Proxy:      http.NewProxyHandler(dockerAdapter, cfg.ProxyDomain, log),
	}, log)

	// 4. Serve until signalled
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Addr(), "db": cfg.DBPath}).Info("Server starting")
		errCh <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
