package domain

import "context"

// EngagementClient is the network side of the engagement controller
type EngagementClient interface {
	// Commit asks the server to set action to desired for the entity.
	// The endpoint is idempotent.
	Commit(ctx context.Context, key EntityKey, action Action, desired bool) error

	// FetchEngagement returns the authoritative state for one entity
	FetchEngagement(ctx context.Context, key EntityKey) (EngagementState, error)

	// FetchEngagementBatch returns states for many entities in one request.
	// Entities the server does not know are absent from the map.
	FetchEngagementBatch(ctx context.Context, entityType EntityType, ids []string) (map[string]EngagementState, error)
}

// FeedClient reads feed content
type FeedClient interface {
	// GetPage returns one page of posts (1-based)
	GetPage(ctx context.Context, page, limit int) (Page, error)

	// GetPost returns a single post
	GetPost(ctx context.Context, id string) (*Post, error)
}

// EngagementObserver receives state changes from a controller
type EngagementObserver interface {
	OnEngagement(update EngagementUpdate)
}

// EngagementUpdate is pushed to observers whenever visible state changes
type EngagementUpdate struct {
	Key     EntityKey
	State   EngagementState
	Loading bool
	Error   string
}
