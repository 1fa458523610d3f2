package engagement

import (
	"sync"

	"github.com/mmcdole/kudos/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Mirror holds the last known engagement state of every entity the client
// has seen, keyed by "type-id". Controllers write through to it; the batch
// loader seeds it. Entities with a commit in flight are pinned so a seed
// cannot overwrite optimistic state before the commit settles.
type Mirror struct {
	mu     sync.RWMutex
	states map[string]domain.EngagementState
	pinned map[string]int

	// refreshes of the same entity share one request
	flight singleflight.Group
}

// NewMirror creates an empty mirror
func NewMirror() *Mirror {
	return &Mirror{
		states: make(map[string]domain.EngagementState),
		pinned: make(map[string]int),
	}
}

// Get returns the mirrored state of an entity
func (m *Mirror) Get(key domain.EntityKey) (domain.EngagementState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[key.String()]
	return s, ok
}

// Put stores state unconditionally
func (m *Mirror) Put(key domain.EntityKey, state domain.EngagementState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key.String()] = state
}

// Seed stores state unless the entity is pinned. It reports whether it stored.
func (m *Mirror) Seed(key domain.EntityKey, state domain.EngagementState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key.String()
	if m.pinned[k] > 0 {
		return false
	}
	m.states[k] = state
	return true
}

// Pin marks an entity as having a commit in flight
func (m *Mirror) Pin(key domain.EntityKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned[key.String()]++
}

// Unpin releases one Pin
func (m *Mirror) Unpin(key domain.EntityKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key.String()
	if m.pinned[k] <= 1 {
		delete(m.pinned, k)
		return
	}
	m.pinned[k]--
}

// Delete drops an entity's state
func (m *Mirror) Delete(key domain.EntityKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key.String())
}

// Len returns the number of mirrored entities
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Clear drops all state. Pins are kept; they belong to in-flight commits.
func (m *Mirror) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]domain.EngagementState)
}
