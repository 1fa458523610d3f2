package appstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/kudos/internal/cache"
	"github.com/mmcdole/kudos/internal/domain"
)

func TestClearResetsBothStores(t *testing.T) {
	s := New(cache.Config{MaxEntries: 5})
	key := domain.EntityKey{Type: domain.EntityPost, ID: "1"}

	s.Responses.Set("posts", "page", nil, time.Minute)
	s.Engagement.Put(key, domain.EngagementState{LikeCount: 1})

	s.Clear()

	_, ok := cache.Get[string](s.Responses, "posts", nil)
	require.False(t, ok)
	_, ok = s.Engagement.Get(key)
	require.False(t, ok)
	require.Equal(t, 5, s.Responses.Stats().MaxEntries)
}

func TestDefaultIsShared(t *testing.T) {
	a := Default()
	b := Default()
	require.Same(t, a, b)
	require.False(t, Init(cache.Config{MaxEntries: 1}))
}
