package domain

import (
	"fmt"
	"time"
)

// EntityType names the kind of content an engagement belongs to ("post", "team", ...)
type EntityType string

const (
	EntityPost    EntityType = "post"
	EntityComment EntityType = "comment"
)

// Collection returns the plural path segment used by the API ("posts")
func (t EntityType) Collection() string {
	return string(t) + "s"
}

// Action is a user engagement that can be toggled
type Action string

const (
	ActionLike     Action = "like"
	ActionBookmark Action = "bookmark"
)

// Valid reports whether a is a known toggle action
func (a Action) Valid() bool {
	return a == ActionLike || a == ActionBookmark
}

// ParseAction converts a path segment to an Action
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// EngagementState is the per-entity engagement snapshot shown to the user.
// Counts are server-of-record values; the client only moves LikeCount by one
// as a speculative mirror of the eventual server state.
type EngagementState struct {
	IsLiked      bool `json:"isLiked"`
	IsBookmarked bool `json:"isBookmarked"`
	LikeCount    int  `json:"likeCount"`
	CommentCount int  `json:"commentCount"`
	ShareCount   int  `json:"shareCount"`
}

// Active returns the boolean for an action
func (s EngagementState) Active(a Action) bool {
	switch a {
	case ActionLike:
		return s.IsLiked
	case ActionBookmark:
		return s.IsBookmarked
	}
	return false
}

// WithAction returns a copy of s with the action set to on.
// Likes move LikeCount by one, never below zero.
func (s EngagementState) WithAction(a Action, on bool) EngagementState {
	switch a {
	case ActionLike:
		if s.IsLiked == on {
			return s
		}
		s.IsLiked = on
		if on {
			s.LikeCount++
		} else if s.LikeCount > 0 {
			s.LikeCount--
		}
	case ActionBookmark:
		s.IsBookmarked = on
	}
	return s
}

// Restore copies the fields owned by an action from original into s
func (s EngagementState) Restore(a Action, original EngagementState) EngagementState {
	switch a {
	case ActionLike:
		s.IsLiked = original.IsLiked
		s.LikeCount = original.LikeCount
	case ActionBookmark:
		s.IsBookmarked = original.IsBookmarked
	}
	return s
}

// Normalize clamps counts to zero
func (s EngagementState) Normalize() EngagementState {
	s.LikeCount = max(s.LikeCount, 0)
	s.CommentCount = max(s.CommentCount, 0)
	s.ShareCount = max(s.ShareCount, 0)
	return s
}

// EntityKey identifies a single engageable entity
type EntityKey struct {
	Type EntityType
	ID   string
}

// String returns the "type-id" form used by the engagement mirror
func (k EntityKey) String() string {
	return string(k.Type) + "-" + k.ID
}

// Post is a feed entry on the community platform
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Excerpt   string    `json:"excerpt"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Key returns the engagement key for the post
func (p Post) Key() EntityKey {
	return EntityKey{Type: EntityPost, ID: p.ID}
}

// Age returns a short human-readable age ("3h", "2d")
func (p Post) Age(now time.Time) string {
	d := now.Sub(p.CreatedAt)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// Page is one page of the feed
type Page struct {
	Posts   []Post `json:"posts"`
	Page    int    `json:"page"`
	HasMore bool   `json:"hasMore"`
}
