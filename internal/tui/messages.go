package tui

import (
	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/engagement"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// PageLoadedMsg signals that a feed page and its engagement have loaded
type PageLoadedMsg struct {
	Page       domain.Page
	Engagement map[string]domain.EngagementState
}

// EngagementMsg carries a controller update from the observer channel
type EngagementMsg struct {
	Update domain.EngagementUpdate
}

// SharedMsg signals that a share attempt finished
type SharedMsg struct {
	Key    domain.EntityKey
	Title  string
	Method engagement.ShareMethod
}

// RefreshedMsg signals that visible posts were re-fetched
type RefreshedMsg struct {
	Count  int
	Failed int
}

// TickMsg drives the spinner
type TickMsg struct{}

// ClearStatusMsg clears the status line if it still shows the given text
type ClearStatusMsg struct {
	Text string
}
