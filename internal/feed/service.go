// Package feed loads pages of posts and keeps the loaded ones searchable.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/kudos/internal/domain"
)

// DefaultPageSize is used when the configured size is not positive
const DefaultPageSize = 20

// Invalidator is implemented by clients that cache feed pages
type Invalidator interface {
	InvalidateFeed() int
}

// Service pages through the feed and indexes what it has loaded
type Service struct {
	client   domain.FeedClient
	pageSize int
	logger   *slog.Logger

	mu      sync.RWMutex
	posts   []domain.Post
	index   map[string]int // post ID -> position in posts
	page    int            // last page merged
	hasMore bool
}

// NewService creates a new feed service
func NewService(client domain.FeedClient, pageSize int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		client:   client,
		pageSize: pageSize,
		logger:   logger,
		index:    make(map[string]int),
		hasMore:  true,
	}
}

// Page fetches one page (1-based) and merges its posts into the loaded set
func (s *Service) Page(ctx context.Context, page int) (domain.Page, error) {
	result, err := s.client.GetPage(ctx, page, s.pageSize)
	if err != nil {
		s.logger.Error("failed to load feed page", "error", err, "page", page)
		return domain.Page{}, fmt.Errorf("load page %d: %w", page, err)
	}

	s.mu.Lock()
	added := s.mergeLocked(result.Posts)
	if page >= s.page {
		s.page = page
		s.hasMore = result.HasMore
	}
	total := len(s.posts)
	s.mu.Unlock()

	s.logger.Debug("loaded feed page", "page", page, "posts", len(result.Posts), "new", added, "total", total)
	return result, nil
}

// Next loads the page after the last one merged. It returns an empty page
// once the server reports no more.
func (s *Service) Next(ctx context.Context) (domain.Page, error) {
	s.mu.RLock()
	next, more := s.page+1, s.hasMore
	s.mu.RUnlock()

	if !more {
		return domain.Page{Page: next - 1}, nil
	}
	return s.Page(ctx, next)
}

func (s *Service) mergeLocked(posts []domain.Post) int {
	added := 0
	for _, p := range posts {
		if i, ok := s.index[p.ID]; ok {
			s.posts[i] = p
			continue
		}
		s.index[p.ID] = len(s.posts)
		s.posts = append(s.posts, p)
		added++
	}
	return added
}

// Post returns a loaded post, or fetches it
func (s *Service) Post(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	i, ok := s.index[id]
	var post domain.Post
	if ok {
		post = s.posts[i]
	}
	s.mu.RUnlock()
	if ok {
		return &post, nil
	}

	p, err := s.client.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load post %s: %w", id, err)
	}
	return p, nil
}

// Posts returns the loaded posts in feed order
func (s *Service) Posts() []domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.posts)
}

// HasMore reports whether another page can be loaded
func (s *Service) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// LastPage returns the last page merged, 0 before the first load
func (s *Service) LastPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// Invalidate forgets every loaded post and drops cached pages
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.posts = nil
	s.index = make(map[string]int)
	s.page = 0
	s.hasMore = true
	s.mu.Unlock()

	if inv, ok := s.client.(Invalidator); ok {
		n := inv.InvalidateFeed()
		s.logger.Debug("invalidated feed", "cachedPages", n)
	}
}

// Search ranks loaded posts against query by title and author.
// Lower scores rank first; posts that do not match at all are omitted.
func (s *Service) Search(query string) []domain.Post {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	s.mu.RLock()
	posts := slices.Clone(s.posts)
	s.mu.RUnlock()

	type rankedPost struct {
		post  domain.Post
		score int
	}

	ranked := make([]rankedPost, 0, len(posts))
	for _, p := range posts {
		score, ok := matchScore(query, p)
		if !ok {
			continue
		}
		ranked = append(ranked, rankedPost{post: p, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	results := make([]domain.Post, len(ranked))
	for i, r := range ranked {
		results[i] = r.post
	}
	s.logger.Debug("search complete", "query", query, "results", len(results))
	return results
}

// matchScore scores a post for query. Lower is better.
func matchScore(query string, p domain.Post) (int, bool) {
	title := strings.ToLower(p.Title)
	author := strings.ToLower(p.Author)

	switch {
	case title == query:
		return 0, true
	case strings.HasPrefix(title, query):
		return 10, true
	case strings.Contains(title, query):
		return 50, true
	case strings.Contains(author, query):
		return 60, true
	}

	// Subsequence match, ranked by edit distance
	if fuzzy.MatchFold(query, title) {
		return 100 + fuzzy.LevenshteinDistance(query, title), true
	}
	if fuzzy.MatchFold(query, author) {
		return 200 + fuzzy.LevenshteinDistance(query, author), true
	}
	return 0, false
}
