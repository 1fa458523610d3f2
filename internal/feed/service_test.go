package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/log"
)

type fakeFeed struct {
	mu          sync.Mutex
	pages       map[int]domain.Page
	posts       map[string]domain.Post
	err         error
	pageCalls   []int
	invalidated int
}

func (f *fakeFeed) GetPage(ctx context.Context, page, limit int) (domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, page)
	if f.err != nil {
		return domain.Page{}, f.err
	}
	return f.pages[page], nil
}

func (f *fakeFeed) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (f *fakeFeed) InvalidateFeed() int {
	f.invalidated++
	return 2
}

func post(id, title, author string) domain.Post {
	return domain.Post{ID: id, Title: title, Author: author}
}

func twoPages() *fakeFeed {
	return &fakeFeed{
		pages: map[int]domain.Page{
			1: {Page: 1, HasMore: true, Posts: []domain.Post{
				post("1", "Go generics in practice", "ana"),
				post("2", "Caching at the edge", "ben"),
			}},
			2: {Page: 2, HasMore: false, Posts: []domain.Post{
				post("2", "Caching at the edge (updated)", "ben"),
				post("3", "Optimistic UI patterns", "cleo"),
			}},
		},
		posts: map[string]domain.Post{"9": post("9", "Remote", "dan")},
	}
}

func TestPagingMergesAndStops(t *testing.T) {
	client := twoPages()
	svc := NewService(client, 2, log.NullLogger())
	ctx := context.Background()

	_, err := svc.Next(ctx)
	require.NoError(t, err)
	assert.True(t, svc.HasMore())

	_, err = svc.Next(ctx)
	require.NoError(t, err)
	assert.False(t, svc.HasMore())
	assert.Equal(t, 2, svc.LastPage())

	posts := svc.Posts()
	require.Len(t, posts, 3)
	assert.Equal(t, "Caching at the edge (updated)", posts[1].Title, "duplicates update in place")

	page, err := svc.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, []int{1, 2}, client.pageCalls)
}

func TestPageError(t *testing.T) {
	client := twoPages()
	client.err = errors.New("offline")
	svc := NewService(client, 0, log.NullLogger())

	_, err := svc.Page(context.Background(), 1)
	require.Error(t, err)
	assert.Empty(t, svc.Posts())
	assert.Equal(t, 0, svc.LastPage())
}

func TestPostPrefersLoaded(t *testing.T) {
	svc := NewService(twoPages(), 2, log.NullLogger())
	ctx := context.Background()
	_, err := svc.Page(ctx, 1)
	require.NoError(t, err)

	p, err := svc.Post(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Go generics in practice", p.Title)

	p, err = svc.Post(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, "Remote", p.Title)

	_, err = svc.Post(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvalidate(t *testing.T) {
	client := twoPages()
	svc := NewService(client, 2, log.NullLogger())
	_, err := svc.Page(context.Background(), 1)
	require.NoError(t, err)

	svc.Invalidate()

	assert.Empty(t, svc.Posts())
	assert.True(t, svc.HasMore())
	assert.Equal(t, 1, client.invalidated)
}

func TestSearchRanking(t *testing.T) {
	svc := NewService(twoPages(), 2, log.NullLogger())
	ctx := context.Background()
	for range 2 {
		_, err := svc.Next(ctx)
		require.NoError(t, err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"caching at the edge (updated)", []string{"2"}},
		{"go", []string{"1"}},
		{"patterns", []string{"3"}},
		{"cleo", []string{"3"}},
		{"optui", []string{"3"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.query), func(t *testing.T) {
			got := svc.Search(tt.query)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSearchPrefersPrefixOverContains(t *testing.T) {
	client := &fakeFeed{pages: map[int]domain.Page{1: {Page: 1, Posts: []domain.Post{
		post("a", "Why caching matters", "x"),
		post("b", "Caching basics", "y"),
	}}}}
	svc := NewService(client, 2, log.NullLogger())
	_, err := svc.Page(context.Background(), 1)
	require.NoError(t, err)

	got := svc.Search("caching")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}
