// Command kudos-server runs the development backend: a feed of seeded posts
// with idempotent like and bookmark endpoints and optional failure injection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmcdole/kudos/internal/config"
	"github.com/mmcdole/kudos/internal/devserver"
	"github.com/mmcdole/kudos/internal/log"
	"github.com/mmcdole/kudos/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var (
		showVersion bool
		addr        string
		memory      bool
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&addr, "addr", "", "listen address (overrides config)")
	flag.BoolVar(&memory, "memory", false, "keep all data in memory")
	flag.Parse()

	if showVersion {
		fmt.Printf("kudos-server %s\n", Version)
		return
	}

	if err := run(addr, memory); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, memory bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr != "" {
		cfg.DevServer.Addr = addr
	}
	if memory {
		cfg.DevServer.DBPath = ""
	}

	// The server logs to stderr regardless of the client log file
	logger, err := log.SetupLogger(&config.LoggingConfig{Level: cfg.Logging.Level})
	if err != nil {
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	s, err := store.Open(cfg.DevServer.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	seeded, err := devserver.Seed(s, cfg.DevServer.SeedPosts, time.Now())
	if err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}
	logger.Info("store ready", "path", cfg.DevServer.DBPath, "posts", s.CountPosts(), "seeded", seeded)

	handler, err := devserver.NewHandler(s, devserver.Options{
		FailRate: cfg.DevServer.FailRate,
		Latency:  cfg.DevServer.Latency,
	}, prometheus.NewRegistry(), logger)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return devserver.Serve(ctx, cfg.DevServer.Addr, handler.Routes(), logger, nil)
}
