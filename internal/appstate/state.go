// Package appstate owns the process-wide shared state: the response cache
// and the engagement mirror. Both live in one object so they share a
// lifecycle and can be reset together.
package appstate

import (
	"sync"

	"github.com/mmcdole/kudos/internal/cache"
	"github.com/mmcdole/kudos/internal/engagement"
)

// State is the shared client state
type State struct {
	Responses  *cache.Cache
	Engagement *engagement.Mirror
}

// New creates a state with a fresh cache and mirror
func New(cfg cache.Config, opts ...cache.Option) *State {
	return &State{
		Responses:  cache.New(cfg, opts...),
		Engagement: engagement.NewMirror(),
	}
}

// Clear resets both stores
func (s *State) Clear() {
	s.Responses.Clear()
	s.Engagement.Clear()
}

var (
	defaultOnce  sync.Once
	defaultState *State
)

// Default returns the process-wide state, created with default limits on
// first use. Init replaces it when called first.
func Default() *State {
	defaultOnce.Do(func() {
		defaultState = New(cache.Config{})
	})
	return defaultState
}

// Init configures the process-wide state. It returns false if Default was
// already initialised, in which case cfg is ignored.
func Init(cfg cache.Config, opts ...cache.Option) bool {
	initialised := false
	defaultOnce.Do(func() {
		defaultState = New(cfg, opts...)
		initialised = true
	})
	return initialised
}
