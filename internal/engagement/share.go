package engagement

import (
	"context"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
)

// Sharer is a platform share capability (OS share sheet, messaging bridge)
type Sharer interface {
	Share(ctx context.Context, url string) error
}

// TerminalSharer puts the URL on the clipboard of the user's own terminal
// with an OSC 52 escape sequence. It works across SSH, where the local
// clipboard tools of the host are out of reach.
type TerminalSharer struct {
	Out  io.Writer
	Tmux bool // wrap the sequence for tmux passthrough
}

// Share writes the OSC 52 sequence for url to Out
func (s TerminalSharer) Share(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seq := osc52.New(url)
	if s.Tmux {
		seq = seq.Tmux()
	}
	_, err := seq.WriteTo(s.Out)
	return err
}

// ShareMethod reports how a share was delivered
type ShareMethod string

const (
	SharedPlatform  ShareMethod = "platform"
	SharedClipboard ShareMethod = "clipboard"
	ShareFailed     ShareMethod = "none"
)

// writeClipboard is replaced in tests
var writeClipboard = clipboard.WriteAll

// Share hands the entity URL to the platform sharer if there is one,
// otherwise copies it to the clipboard. Failures fall through silently;
// share has no optimistic state and no commit.
func (c *Controller) Share(ctx context.Context) ShareMethod {
	url := c.ShareURL()

	if c.sharer != nil {
		err := c.sharer.Share(ctx, url)
		if err == nil {
			c.logger.Debug("shared via platform", "url", url)
			return SharedPlatform
		}
		c.logger.Debug("platform share unavailable", "error", err)
	}

	if err := writeClipboard(url); err != nil {
		c.logger.Debug("clipboard unavailable", "error", err)
		return ShareFailed
	}
	c.logger.Debug("copied share url", "url", url)
	return SharedClipboard
}

// ShareURL returns the public URL of the entity
func (c *Controller) ShareURL() string {
	base := strings.TrimRight(c.cfg.ShareBaseURL, "/")
	return base + "/" + c.key.Type.Collection() + "/" + c.key.ID
}
