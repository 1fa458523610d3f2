// Package engagement implements optimistic like and bookmark toggles.
//
// A Controller is created per visible entity. Toggles apply to the visible
// state immediately and are committed to the server after a debounce window.
// Three independent guards shape the traffic:
//
//   - a per-controller rate limit absorbs accidental double fires,
//   - a per-action pending set keeps at most one commit in flight,
//   - the debounce coalesces a burst into one write.
//
// A toggle arriving while its action is pending is dropped, not queued, so
// the last accepted click wins rather than the last click.
package engagement

import (
	"log/slog"
	"time"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/timing"
)

// Defaults used when a Config field is zero
const (
	DefaultMinInterval   = 100 * time.Millisecond
	DefaultCommitDelay   = 300 * time.Millisecond
	DefaultCommitTimeout = 10 * time.Second
)

// Config holds controller timing
type Config struct {
	MinInterval   time.Duration `mapstructure:"min_interval"`
	CommitDelay   time.Duration `mapstructure:"commit_delay"`
	CommitTimeout time.Duration `mapstructure:"commit_timeout"`
	ShareBaseURL  string        `mapstructure:"share_base_url"`
}

func (c Config) withDefaults() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.CommitDelay <= 0 {
		c.CommitDelay = DefaultCommitDelay
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = DefaultCommitTimeout
	}
	return c
}

// Service builds controllers and the batch loader over one client and mirror
type Service struct {
	client domain.EngagementClient
	mirror *Mirror
	sharer Sharer
	cfg    Config
	logger *slog.Logger
}

// NewService creates a new engagement service. sharer may be nil.
func NewService(
	client domain.EngagementClient,
	mirror *Mirror,
	sharer Sharer,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mirror == nil {
		mirror = NewMirror()
	}
	return &Service{
		client: client,
		mirror: mirror,
		sharer: sharer,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Mirror returns the shared engagement mirror
func (s *Service) Mirror() *Mirror {
	return s.mirror
}

// Loader returns a batch loader seeding this service's mirror
func (s *Service) Loader() *Loader {
	return NewLoader(s.client, s.mirror, s.logger)
}

// NewController creates a controller for one entity. A mirrored state, if
// present, is fresher than initial and wins; otherwise initial is mirrored.
func (s *Service) NewController(key domain.EntityKey, initial domain.EngagementState) *Controller {
	state, ok := s.mirror.Get(key)
	if !ok {
		state = initial.Normalize()
		s.mirror.Put(key, state)
	}

	c := &Controller{
		key:     key,
		client:  s.client,
		mirror:  s.mirror,
		sharer:  s.sharer,
		cfg:     s.cfg,
		logger:  s.logger.With("entity", key.String()),
		limiter: timing.NewThrottle(s.cfg.MinInterval),
		state:   state,
		pending: make(map[domain.Action]bool),
	}
	c.commits = map[domain.Action]*timing.Debouncer[commitRequest]{
		domain.ActionLike:     timing.NewDebouncer(c.commit, s.cfg.CommitDelay),
		domain.ActionBookmark: timing.NewDebouncer(c.commit, s.cfg.CommitDelay),
	}
	return c
}
