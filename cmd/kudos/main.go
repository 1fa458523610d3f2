package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/mmcdole/kudos/internal/adapter/api"
	"github.com/mmcdole/kudos/internal/appstate"
	"github.com/mmcdole/kudos/internal/cache"
	"github.com/mmcdole/kudos/internal/config"
	"github.com/mmcdole/kudos/internal/engagement"
	"github.com/mmcdole/kudos/internal/feed"
	"github.com/mmcdole/kudos/internal/log"
	"github.com/mmcdole/kudos/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var (
		showVersion bool
		opts        options
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&opts.list, "list", false, "print the first feed page and exit")
	flag.StringVar(&opts.search, "search", "", "print the posts matching a query and exit")
	flag.StringVar(&opts.post, "post", "", "print one post by ID and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("kudos %s\n", Version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options select a headless mode; the zero value runs the TUI
type options struct {
	list   bool
	search string
	post   string
}

func run(opts options) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting kudos", "version", Version, "server", cfg.Server.URL)

	appstate.Init(cfg.Cache, cache.WithLogger(logger))
	state := appstate.Default()

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, state.Responses, logger)
		if err != nil {
			return fmt.Errorf("failed to start metrics: %w", err)
		}
		defer stop()
	}

	client := api.NewClient(cfg.Server.URL, cfg.Server.Token, logger,
		api.WithTimeout(cfg.Server.Timeout),
		api.WithCache(state.Responses, api.TTLs{
			Page:       cfg.Feed.PageTTL,
			Post:       cfg.Feed.PostTTL,
			Engagement: cfg.Feed.EngagementTTL,
		}),
	)

	feedSvc := feed.NewService(client, cfg.Feed.PageSize, logger)
	engagementSvc := engagement.NewService(client, state.Engagement, terminalSharer(), cfg.Engagement, logger)

	switch {
	case opts.search != "":
		return printSearch(os.Stdout, feedSvc, engagementSvc, opts.search, cfg.Server.Timeout)
	case opts.post != "":
		return printPost(os.Stdout, feedSvc, engagementSvc, opts.post, cfg.Server.Timeout)
	case opts.list || !term.IsTerminal(int(os.Stdout.Fd())):
		return printFeed(os.Stdout, feedSvc, engagementSvc, cfg.Server.Timeout)
	}

	model := tui.NewModel(feedSvc, engagementSvc, client, cfg.Feed.ScrollThrottle, logger)

	// Run the TUI
	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI")

	final, err := p.Run()
	if m, ok := final.(tui.Model); ok {
		// Settle scheduled commits before exit
		m.Close()
	}
	if err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// terminalSharer returns an OSC 52 sharer inside an SSH session, where the
// clipboard fallback would copy on the remote host. Elsewhere it returns nil.
func terminalSharer() engagement.Sharer {
	if os.Getenv("SSH_TTY") == "" && os.Getenv("SSH_CONNECTION") == "" {
		return nil
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return engagement.TerminalSharer{Out: os.Stderr, Tmux: os.Getenv("TMUX") != ""}
}

// serveMetrics exposes the response cache counters on addr
func serveMetrics(addr string, rc *cache.Cache, logger *slog.Logger) (func(), error) {
	registry := prometheus.NewRegistry()
	if err := rc.Register("kudos", registry); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
