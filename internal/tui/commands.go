package tui

import (
	"context"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/engagement"
	"github.com/mmcdole/kudos/internal/feed"
)

// refreshConcurrency bounds parallel refresh requests
const refreshConcurrency = 4

// ShareRecorder reports a completed share to the server
type ShareRecorder interface {
	RecordShare(ctx context.Context, key domain.EntityKey) error
}

// Command factories for async operations

// LoadPageCmd loads one feed page, then the engagement of its posts in a
// single batch request
func LoadPageCmd(feedSvc *feed.Service, loader *engagement.Loader, page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		p, err := feedSvc.Page(ctx, page)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading feed"}
		}

		ids := make([]string, len(p.Posts))
		for i, post := range p.Posts {
			ids[i] = post.ID
		}
		states := loader.Load(ctx, domain.EntityPost, ids)
		return PageLoadedMsg{Page: p, Engagement: states}
	}
}

// WaitForEngagementCmd reads the next controller update from ch
func WaitForEngagementCmd(ch <-chan domain.EngagementUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return EngagementMsg{Update: update}
	}
}

// ShareCmd shares a post and, if it went out, records the share
func ShareCmd(ctrl *engagement.Controller, recorder ShareRecorder, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		method := ctrl.Share(ctx)
		if method != engagement.ShareFailed && recorder != nil {
			// Best effort
			_ = recorder.RecordShare(ctx, ctrl.Key())
		}
		return SharedMsg{Key: ctrl.Key(), Title: title, Method: method}
	}
}

// RefreshCmd re-fetches the authoritative state of each controller
func RefreshCmd(ctrls []*engagement.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var failed atomic.Int32
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(refreshConcurrency)
		for _, c := range ctrls {
			g.Go(func() error {
				if err := c.Refresh(ctx); err != nil {
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		return RefreshedMsg{Count: len(ctrls), Failed: int(failed.Load())}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd clears text from the status line after a delay
func ClearStatusCmd(text string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{Text: text}
	})
}
