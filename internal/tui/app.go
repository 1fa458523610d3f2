package tui

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/engagement"
	"github.com/mmcdole/kudos/internal/feed"
	"github.com/mmcdole/kudos/internal/timing"
	"github.com/mmcdole/kudos/internal/tui/components"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateHelp
)

const (
	// Vertical layout: single footer line
	ChromeHeight = 1

	// Rows from the end at which the next page is requested
	PrefetchThreshold = 3

	// Buffered controller updates before the observer starts dropping
	updateBuffer = 256

	statusTimeout = 3 * time.Second
)

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Services
	FeedSvc       *feed.Service
	EngagementSvc *engagement.Service
	Recorder      ShareRecorder

	Keys KeyMap
	Help help.Model
	List *components.FeedList

	// One controller per loaded post, keyed by post ID
	controllers map[string]*engagement.Controller
	updates     chan domain.EngagementUpdate

	pageThrottle *timing.Throttle
	loadingPage  bool

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	SpinnerFrame int

	logger *slog.Logger
}

// NewModel creates a new application model. scrollThrottle bounds how often
// scrolling near the end may request another page.
func NewModel(
	feedSvc *feed.Service,
	engagementSvc *engagement.Service,
	recorder ShareRecorder,
	scrollThrottle time.Duration,
	logger *slog.Logger,
) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		State:         StateBrowsing,
		FeedSvc:       feedSvc,
		EngagementSvc: engagementSvc,
		Recorder:      recorder,
		Keys:          DefaultKeyMap(),
		Help:          newHelp(),
		List:          components.NewFeedList("Feed"),
		controllers:   make(map[string]*engagement.Controller),
		updates:       make(chan domain.EngagementUpdate, updateBuffer),
		pageThrottle:  timing.NewThrottle(scrollThrottle),
		loadingPage:   true,
		logger:        logger,
	}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	m.List.SetLoading(true)
	return tea.Batch(
		LoadPageCmd(m.FeedSvc, m.EngagementSvc.Loader(), 1),
		WaitForEngagementCmd(m.updates),
		TickCmd(100*time.Millisecond),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.List.SetSize(m.Width, m.Height-ChromeHeight)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.SpinnerFrame++
		m.List.SetSpinnerFrame(m.SpinnerFrame)
		return m, TickCmd(100 * time.Millisecond)

	case PageLoadedMsg:
		m.loadingPage = false
		m.List.SetLoading(false)
		for _, post := range msg.Page.Posts {
			state, ok := msg.Engagement[post.ID]
			m.ensureController(post, state, ok)
		}
		m.List.SetPosts(m.FeedSvc.Posts())
		m.logger.Debug("page loaded", "page", msg.Page.Page, "posts", len(msg.Page.Posts), "hasMore", msg.Page.HasMore)
		return m, nil

	case EngagementMsg:
		m.List.SetView(msg.Update)
		cmds := []tea.Cmd{WaitForEngagementCmd(m.updates)}
		if msg.Update.Error != "" {
			cmds = append(cmds, m.setStatus(msg.Update.Error, true))
		}
		return m, tea.Batch(cmds...)

	case SharedMsg:
		switch msg.Method {
		case engagement.SharedPlatform:
			cmd := m.setStatus("Shared "+msg.Title, false)
			return m, cmd
		case engagement.SharedClipboard:
			cmd := m.setStatus("Link copied to clipboard", false)
			return m, cmd
		default:
			cmd := m.setStatus("Couldn't share "+msg.Title, true)
			return m, cmd
		}

	case RefreshedMsg:
		if msg.Failed > 0 {
			cmd := m.setStatus(fmt.Sprintf("Refresh failed for %d of %d", msg.Failed, msg.Count), true)
			return m, cmd
		}
		cmd := m.setStatus("Refreshed", false)
		return m, cmd

	case ErrMsg:
		m.loadingPage = false
		m.List.SetLoading(false)
		m.logger.Error("command failed", "error", msg.Err, "context", msg.Context)
		cmd := m.setStatus(msg.Error(), true)
		return m, cmd

	case ClearStatusMsg:
		if m.StatusMsg == msg.Text {
			m.StatusMsg = ""
			m.StatusIsErr = false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Typing into the filter swallows every other key
	if m.List.FilterFocused() {
		return m, m.List.Update(msg)
	}

	if m.State == StateHelp {
		if key.Matches(msg, m.Keys.Quit) {
			return m, tea.Quit
		}
		m.State = StateBrowsing
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, m.Keys.Like):
		cmd := m.toggle(domain.ActionLike)
		return m, cmd

	case key.Matches(msg, m.Keys.Bookmark):
		cmd := m.toggle(domain.ActionBookmark)
		return m, cmd

	case key.Matches(msg, m.Keys.Share):
		ctrl, post, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, ShareCmd(ctrl, m.Recorder, post.Title)

	case key.Matches(msg, m.Keys.Refresh):
		ctrl, _, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, RefreshCmd([]*engagement.Controller{ctrl})

	case key.Matches(msg, m.Keys.Reload):
		cmd := m.reload()
		return m, cmd
	}

	cmd := m.List.Update(msg)
	loadCmd := m.maybeLoadMore()
	return m, tea.Batch(cmd, loadCmd)
}

// toggle flips action on the selected post. A dropped toggle (too fast,
// or a commit still in flight) leaves a hint in the status line.
func (m *Model) toggle(action domain.Action) tea.Cmd {
	ctrl, _, ok := m.selected()
	if !ok {
		return nil
	}
	if !ctrl.Toggle(action) {
		return m.setStatus("Still saving, try again in a moment", false)
	}
	m.List.SetView(ctrl.View())
	return nil
}

// reload forgets the loaded feed and starts again from page one.
// Controllers stay alive so pending commits still settle.
func (m *Model) reload() tea.Cmd {
	if m.loadingPage {
		return nil
	}
	m.FeedSvc.Invalidate()
	m.List.SetPosts(nil)
	m.loadingPage = true
	m.List.SetLoading(true)
	return LoadPageCmd(m.FeedSvc, m.EngagementSvc.Loader(), 1)
}

// maybeLoadMore requests the next page when the cursor nears the end
func (m *Model) maybeLoadMore() tea.Cmd {
	if m.loadingPage || !m.FeedSvc.HasMore() || !m.List.NearEnd(PrefetchThreshold) {
		return nil
	}
	if !m.pageThrottle.Allow() {
		return nil
	}
	m.loadingPage = true
	m.List.SetLoading(true)
	return LoadPageCmd(m.FeedSvc, m.EngagementSvc.Loader(), m.FeedSvc.LastPage()+1)
}

// ensureController creates the controller of a loaded post, or seeds the
// existing one with a freshly loaded state. Seeding is skipped while a
// commit is pending.
func (m *Model) ensureController(post domain.Post, state domain.EngagementState, loaded bool) {
	if ctrl, ok := m.controllers[post.ID]; ok {
		if loaded {
			ctrl.Seed(state)
			m.List.SetView(ctrl.View())
		}
		return
	}
	ctrl := m.EngagementSvc.NewController(post.Key(), state)
	ctrl.Observe(NewChannelObserver(m.updates))
	m.controllers[post.ID] = ctrl
	m.List.SetView(ctrl.View())
}

func (m *Model) selected() (*engagement.Controller, domain.Post, bool) {
	post, ok := m.List.Selected()
	if !ok {
		return nil, domain.Post{}, false
	}
	ctrl, ok := m.controllers[post.ID]
	return ctrl, post, ok
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.StatusMsg = text
	m.StatusIsErr = isErr
	return ClearStatusCmd(text, statusTimeout)
}

// Close sends any scheduled commits now and detaches every controller.
// Call it after the program exits.
func (m Model) Close() {
	for _, ctrl := range m.controllers {
		ctrl.Flush()
		ctrl.Close()
	}
}
