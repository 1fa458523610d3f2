package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/kudos/internal/cache"
	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/log"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *cache.Cache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rc := cache.New(cache.Config{}, cache.WithLogger(log.NullLogger()))
	c := NewClient(srv.URL, "tok", log.NullLogger(),
		WithCache(rc, TTLs{}),
		WithRetryDelay(time.Millisecond),
	)
	return c, rc
}

func TestCommitSendsDesiredState(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody CommitRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))

	key := domain.EntityKey{Type: domain.EntityPost, ID: "p1"}
	require.NoError(t, c.Commit(context.Background(), key, domain.ActionLike, true))

	assert.Equal(t, "POST /posts/p1/like", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.True(t, gotBody.DesiredState)
}

func TestCommitIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	key := domain.EntityKey{Type: domain.EntityPost, ID: "p1"}
	err := c.Commit(context.Background(), key, domain.ActionBookmark, false)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCommitRejectsUnknownAction(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	err := c.Commit(context.Background(), domain.EntityKey{Type: domain.EntityPost, ID: "p1"}, domain.Action("share"), true)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestCommitInvalidatesEntityEntries(t *testing.T) {
	c, rc := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rc.Set("posts/1", "post", nil, 0)
	rc.Set("posts/1/engagement", "state", nil, 0)
	rc.Set("posts/10", "other post", nil, 0)
	rc.Set("posts/engagement", "batch", cache.Params{"ids": "1,10"}, 0)
	rc.Set("comments/engagement", "batch", cache.Params{"ids": "1"}, 0)

	key := domain.EntityKey{Type: domain.EntityPost, ID: "1"}
	require.NoError(t, c.Commit(context.Background(), key, domain.ActionLike, true))

	_, ok := rc.Lookup("posts/1", nil)
	assert.False(t, ok)
	_, ok = rc.Lookup("posts/1/engagement", nil)
	assert.False(t, ok)
	_, ok = rc.Lookup("posts/engagement", cache.Params{"ids": "1,10"})
	assert.False(t, ok)

	_, ok = rc.Lookup("posts/10", nil)
	assert.True(t, ok, "a different id sharing the prefix survives")
	_, ok = rc.Lookup("comments/engagement", cache.Params{"ids": "1"})
	assert.True(t, ok, "another entity type survives")
}

func TestFailedCommitKeepsCache(t *testing.T) {
	c, rc := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	rc.Set("posts/1", "post", nil, 0)

	key := domain.EntityKey{Type: domain.EntityPost, ID: "1"}
	require.Error(t, c.Commit(context.Background(), key, domain.ActionLike, true))

	_, ok := rc.Lookup("posts/1", nil)
	assert.True(t, ok)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(PostDTO{ID: "p1", Title: "hello"})
	}))

	post, err := c.GetPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "hello", post.Title)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "boom"})
	}))

	_, err := c.GetPost(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthFailed},
		{"not found", http.StatusNotFound, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			_, err := c.GetPost(context.Background(), "missing")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestServerOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(srv.URL, "", log.NullLogger())
	_, err := c.GetPage(context.Background(), 1, 10)
	assert.ErrorIs(t, err, domain.ErrServerOffline)
}

func TestGetPageIsCached(t *testing.T) {
	var calls atomic.Int32
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c, rc := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(PageResponse{
			Posts:   []PostDTO{{ID: "a", Title: "A", CreatedAt: created}},
			Page:    2,
			HasMore: true,
		})
	}))

	first, err := c.GetPage(context.Background(), 2, 5)
	require.NoError(t, err)
	second, err := c.GetPage(context.Background(), 2, 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, first.HasMore)
	assert.Equal(t, created, first.Posts[0].CreatedAt)

	// callers get their own slice
	first.Posts[0].Title = "mutated"
	third, err := c.GetPage(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "A", third.Posts[0].Title)

	assert.Equal(t, 1, c.InvalidateFeed())
	assert.Equal(t, 0, rc.Stats().Entries)
}

func TestFetchEngagementBatch(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/posts/engagement", r.URL.Path)
		var req BatchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.IDs)
		_ = json.NewEncoder(w).Encode(BatchResponse{States: map[string]domain.EngagementState{
			"a": {IsLiked: true, LikeCount: 3},
		}})
	}))

	states, err := c.FetchEngagementBatch(context.Background(), domain.EntityPost, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.EngagementState{"a": {IsLiked: true, LikeCount: 3}}, states)

	// same set in a different order hits the cache
	_, err = c.FetchEngagementBatch(context.Background(), domain.EntityPost, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	empty, err := c.FetchEngagementBatch(context.Background(), domain.EntityPost, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchEngagementBypassesCache(t *testing.T) {
	var calls atomic.Int32
	c, rc := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/comments/c9/engagement", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.EngagementState{LikeCount: int(n)})
	}))

	key := domain.EntityKey{Type: domain.EntityComment, ID: "c9"}
	first, err := c.FetchEngagement(context.Background(), key)
	require.NoError(t, err)
	second, err := c.FetchEngagement(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, 1, first.LikeCount)
	assert.Equal(t, 2, second.LikeCount)
	assert.Zero(t, rc.Stats().Entries)
}

func TestInvalidateFeedDropsPagesAndBatches(t *testing.T) {
	c, rc := newTestClient(t, http.NotFoundHandler())
	rc.Set("posts", domain.Page{}, cache.Params{"page": 1, "limit": 20}, 0)
	rc.Set("posts/engagement", map[string]domain.EngagementState{}, cache.Params{"ids": "a,b"}, 0)
	rc.Set("posts/7", domain.Post{ID: "7"}, nil, 0)

	assert.Equal(t, 2, c.InvalidateFeed())

	_, ok := rc.Lookup("posts/7", nil)
	assert.True(t, ok)
	assert.Equal(t, 1, rc.Stats().Entries)
}

func TestRecordShare(t *testing.T) {
	var gotPath string
	c, rc := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	rc.Set("posts/7/engagement", "state", nil, 0)

	require.NoError(t, c.RecordShare(context.Background(), domain.EntityKey{Type: domain.EntityPost, ID: "7"}))
	assert.Equal(t, "POST /posts/7/share", gotPath)

	_, ok := rc.Lookup("posts/7/engagement", nil)
	assert.False(t, ok)
}
