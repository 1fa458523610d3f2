package tui

import "github.com/mmcdole/kudos/internal/domain"

// ChannelObserver adapts domain.EngagementObserver to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan<- domain.EngagementUpdate
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- domain.EngagementUpdate) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnEngagement sends the update to the channel (non-blocking if full).
// A dropped update is harmless: the model re-reads View() on the next one.
func (o *ChannelObserver) OnEngagement(update domain.EngagementUpdate) {
	select {
	case o.ch <- update:
	default: // Non-blocking if channel full
	}
}
