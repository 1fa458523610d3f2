package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/engagement"
	"github.com/mmcdole/kudos/internal/feed"
	"github.com/mmcdole/kudos/internal/tui/styles"
)

// searchPages bounds how much of the feed a headless search loads
const searchPages = 5

// printFeed writes the first page with its engagement, for pipes and scripts
func printFeed(w io.Writer, feedSvc *feed.Service, engagementSvc *engagement.Service, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	page, err := feedSvc.Page(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}

	printRows(w, page.Posts, loadStates(ctx, engagementSvc, page.Posts))
	if page.HasMore {
		fmt.Fprintln(w, "...")
	}
	return nil
}

// printSearch loads up to searchPages pages and writes the posts matching
// query, best match first
func printSearch(w io.Writer, feedSvc *feed.Service, engagementSvc *engagement.Service, query string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := feedSvc.Page(ctx, 1); err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	for i := 1; i < searchPages && feedSvc.HasMore(); i++ {
		if _, err := feedSvc.Next(ctx); err != nil {
			return fmt.Errorf("failed to load feed: %w", err)
		}
	}

	results := feedSvc.Search(query)
	if len(results) == 0 {
		fmt.Fprintf(w, "No posts match %q\n", query)
		return nil
	}
	printRows(w, results, loadStates(ctx, engagementSvc, results))
	return nil
}

// printPost writes one post in full with its engagement
func printPost(w io.Writer, feedSvc *feed.Service, engagementSvc *engagement.Service, id string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	post, err := feedSvc.Post(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load post: %w", err)
	}
	st := loadStates(ctx, engagementSvc, []domain.Post{*post})[post.ID]

	fmt.Fprintln(w, post.Title)
	fmt.Fprintf(w, "%s · %s\n", post.Author, post.Age(time.Now()))
	if post.URL != "" {
		fmt.Fprintln(w, post.URL)
	}
	if post.Excerpt != "" {
		fmt.Fprintf(w, "\n%s\n", post.Excerpt)
	}
	fmt.Fprintf(w, "\n%s %d  %s  %d comments  %d shares\n",
		likeChar(st), st.LikeCount, bookmarkChar(st), st.CommentCount, st.ShareCount)
	return nil
}

func loadStates(ctx context.Context, engagementSvc *engagement.Service, posts []domain.Post) map[string]domain.EngagementState {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return engagementSvc.Loader().Load(ctx, domain.EntityPost, ids)
}

func printRows(w io.Writer, posts []domain.Post, states map[string]domain.EngagementState) {
	for _, p := range posts {
		st := states[p.ID]
		fmt.Fprintf(w, "%s %4d %s  %s  %s  (%s)\n", likeChar(st), st.LikeCount, bookmarkChar(st), p.ID, p.Title, p.Author)
	}
}

func likeChar(st domain.EngagementState) string {
	if st.IsLiked {
		return styles.LikedChar
	}
	return styles.UnlikedChar
}

func bookmarkChar(st domain.EngagementState) string {
	if st.IsBookmarked {
		return styles.BookmarkedChar
	}
	return styles.UnbookmarkedChar
}
