package engagement

import (
	"context"
	"log/slog"

	"github.com/mmcdole/kudos/internal/domain"
)

// Loader fetches engagement for many entities in one request and seeds the
// mirror, so list views do not issue one request per item
type Loader struct {
	client domain.EngagementClient
	mirror *Mirror
	logger *slog.Logger
}

// NewLoader creates a batch loader
func NewLoader(client domain.EngagementClient, mirror *Mirror, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if mirror == nil {
		mirror = NewMirror()
	}
	return &Loader{client: client, mirror: mirror, logger: logger}
}

// Load returns the engagement of ids. It never fails: on error it returns
// whatever the client managed to return, possibly nothing. Callers treat a
// missing id as not loaded yet. Entities with a commit in flight keep their
// optimistic state, which is what Load returns for them.
func (l *Loader) Load(ctx context.Context, entityType domain.EntityType, ids []string) map[string]domain.EngagementState {
	result := make(map[string]domain.EngagementState)

	unique := dedupe(ids)
	if len(unique) == 0 {
		return result
	}

	states, err := l.client.FetchEngagementBatch(ctx, entityType, unique)
	if err != nil {
		l.logger.Warn("batch engagement load failed", "error", err, "type", entityType, "requested", len(unique), "received", len(states))
	}

	wanted := make(map[string]struct{}, len(unique))
	for _, id := range unique {
		wanted[id] = struct{}{}
	}

	for id, state := range states {
		if _, ok := wanted[id]; !ok {
			continue
		}
		key := domain.EntityKey{Type: entityType, ID: id}
		state = state.Normalize()
		if !l.mirror.Seed(key, state) {
			if current, ok := l.mirror.Get(key); ok {
				state = current
			}
		}
		result[id] = state
	}

	l.logger.Debug("batch engagement loaded", "type", entityType, "requested", len(unique), "loaded", len(result))
	return result
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
