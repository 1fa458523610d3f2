package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/timing"
)

// commitRequest is the argument of a debounced commit
type commitRequest struct {
	action   domain.Action
	desired  bool
	original domain.EngagementState
}

// ObserverFunc adapts a function to domain.EngagementObserver
type ObserverFunc func(domain.EngagementUpdate)

// OnEngagement calls f(update)
func (f ObserverFunc) OnEngagement(update domain.EngagementUpdate) { f(update) }

// Controller is the optimistic state machine of one entity
type Controller struct {
	key     domain.EntityKey
	client  domain.EngagementClient
	mirror  *Mirror
	sharer  Sharer
	cfg     Config
	logger  *slog.Logger
	limiter *timing.Throttle
	commits map[domain.Action]*timing.Debouncer[commitRequest]

	mu       sync.Mutex
	state    domain.EngagementState
	pending  map[domain.Action]bool
	loading  bool
	err      string
	observer domain.EngagementObserver
	closed   bool
}

// Key returns the entity this controller manages
func (c *Controller) Key() domain.EntityKey {
	return c.key
}

// View returns the observable surface: state, loading flag and last error
func (c *Controller) View() domain.EngagementUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// State returns the visible engagement state
func (c *Controller) State() domain.EngagementState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports whether a commit for action is outstanding
func (c *Controller) Pending(action domain.Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[action]
}

// Observe registers the observer notified on every visible change.
// A nil observer detaches the current one.
func (c *Controller) Observe(observer domain.EngagementObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = observer
}

// Close detaches the observer and ignores further toggles. Commits already
// scheduled or in flight still settle and update the mirror.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = nil
	c.closed = true
}

// ToggleLike flips the like state optimistically. It reports whether the
// toggle was accepted.
func (c *Controller) ToggleLike() bool {
	return c.toggle(domain.ActionLike)
}

// ToggleBookmark flips the bookmark state optimistically. It reports whether
// the toggle was accepted.
func (c *Controller) ToggleBookmark() bool {
	return c.toggle(domain.ActionBookmark)
}

// Toggle flips an arbitrary action by name
func (c *Controller) Toggle(action domain.Action) bool {
	if !action.Valid() {
		return false
	}
	return c.toggle(action)
}

func (c *Controller) toggle(action domain.Action) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if !c.limiter.Allow() {
		c.mu.Unlock()
		c.logger.Debug("toggle rate limited", "action", action)
		return false
	}
	if c.pending[action] {
		c.mu.Unlock()
		c.logger.Debug("toggle dropped, commit pending", "action", action)
		return false
	}

	original := c.state
	desired := !original.Active(action)
	c.state = original.WithAction(action, desired)
	c.err = ""
	c.mirror.Put(c.key, c.state)

	// The pending guard above means each scheduled commit is the only one
	// for its action, so original is the snapshot it rolls back to.
	c.pending[action] = true
	c.mirror.Pin(c.key)
	c.commits[action].Call(commitRequest{action: action, desired: desired, original: original})

	update, observer := c.viewLocked(), c.observer
	c.mu.Unlock()

	c.logger.Debug("optimistic toggle", "action", action, "desired", desired)
	notify(observer, update)
	return true
}

// commit runs when the debounce window of an action elapses
func (c *Controller) commit(req commitRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CommitTimeout)
	defer cancel()

	err := c.send(ctx, req)

	c.mu.Lock()
	delete(c.pending, req.action)
	c.mirror.Unpin(c.key)
	if err != nil {
		c.state = c.state.Restore(req.action, req.original)
		c.err = fmt.Sprintf("failed to update %s", req.action)
		c.mirror.Put(c.key, c.state)
	}
	update, observer := c.viewLocked(), c.observer
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("commit failed, reverted", "action", req.action, "error", err)
	} else {
		c.logger.Debug("commit confirmed", "action", req.action, "desired", req.desired)
	}
	notify(observer, update)
}

// send performs the network write; panics from the client are converted
// into a network failure
func (c *Controller) send(ctx context.Context, req commitRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrNetworkFailure, r)
		}
	}()

	if err := c.client.Commit(ctx, c.key, req.action, req.desired); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	return nil
}

// Flush fires any scheduled commits now instead of waiting for the window
func (c *Controller) Flush() {
	for _, d := range c.commits {
		d.Flush()
	}
}

// Refresh fetches the authoritative state and replaces the local state
// unconditionally, pending optimism included
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	update, observer := c.viewLocked(), c.observer
	c.mu.Unlock()
	notify(observer, update)

	v, err, _ := c.mirror.flight.Do(c.key.String(), func() (any, error) {
		return c.client.FetchEngagement(ctx, c.key)
	})

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.err = "failed to refresh"
	} else {
		c.state = v.(domain.EngagementState).Normalize()
		c.err = ""
		c.mirror.Put(c.key, c.state)
	}
	update, observer = c.viewLocked(), c.observer
	c.mu.Unlock()
	notify(observer, update)

	if err != nil {
		c.logger.Warn("refresh failed", "error", err)
		return fmt.Errorf("refresh %s: %w", c.key, err)
	}
	return nil
}

// Seed applies a state loaded elsewhere (batch loader) unless an action is
// pending. It reports whether the state was applied.
func (c *Controller) Seed(state domain.EngagementState) bool {
	c.mu.Lock()
	if len(c.pending) > 0 {
		c.mu.Unlock()
		return false
	}
	c.state = state.Normalize()
	c.mirror.Put(c.key, c.state)
	update, observer := c.viewLocked(), c.observer
	c.mu.Unlock()

	notify(observer, update)
	return true
}

// ClearCache removes this entity from the engagement mirror
func (c *Controller) ClearCache() {
	c.mirror.Delete(c.key)
}

func (c *Controller) viewLocked() domain.EngagementUpdate {
	return domain.EngagementUpdate{
		Key:     c.key,
		State:   c.state,
		Loading: c.loading,
		Error:   c.err,
	}
}

func notify(observer domain.EngagementObserver, update domain.EngagementUpdate) {
	if observer != nil {
		observer.OnEngagement(update)
	}
}
