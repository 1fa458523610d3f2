package api

import (
	"time"

	"github.com/mmcdole/kudos/internal/domain"
)

// CommitRequest is the body of POST /{type}s/{id}/{action}
type CommitRequest struct {
	DesiredState bool `json:"desiredState"`
}

// BatchRequest is the body of POST /{type}s/engagement
type BatchRequest struct {
	IDs []string `json:"ids"`
}

// BatchResponse maps entity IDs to their engagement snapshot.
// IDs the server does not know are omitted.
type BatchResponse struct {
	States map[string]domain.EngagementState `json:"states"`
}

// ErrorResponse is returned by the server on non-2xx statuses
type ErrorResponse struct {
	Error string `json:"error"`
}

// PostDTO is a post as sent on the wire
type PostDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Excerpt   string    `json:"excerpt,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PageResponse is the body of GET /posts
type PageResponse struct {
	Posts   []PostDTO `json:"posts"`
	Page    int       `json:"page"`
	HasMore bool      `json:"hasMore"`
}

// MapPost converts a wire post to the domain type
func MapPost(p PostDTO) domain.Post {
	return domain.Post{
		ID:        p.ID,
		Title:     p.Title,
		Author:    p.Author,
		Excerpt:   p.Excerpt,
		URL:       p.URL,
		CreatedAt: p.CreatedAt,
	}
}

// MapPage converts a wire page to the domain type
func MapPage(resp PageResponse) domain.Page {
	posts := make([]domain.Post, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		posts = append(posts, MapPost(p))
	}
	return domain.Page{Posts: posts, Page: resp.Page, HasMore: resp.HasMore}
}

// FromPost converts a domain post to its wire form
func FromPost(p domain.Post) PostDTO {
	return PostDTO{
		ID:        p.ID,
		Title:     p.Title,
		Author:    p.Author,
		Excerpt:   p.Excerpt,
		URL:       p.URL,
		CreatedAt: p.CreatedAt,
	}
}
