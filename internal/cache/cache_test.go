package cache

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(cfg Config) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(cfg, WithClock(clock.Now)), clock
}

func TestKeyIsCanonical(t *testing.T) {
	require.Equal(t, "teams?", Key("teams", nil))
	require.Equal(t, "teams?page=1", Key("teams", Params{"page": 1}))
	require.Equal(t,
		Key("teams", Params{"page": 2, "limit": 20, "q": "go"}),
		Key("teams", Params{"q": "go", "limit": 20, "page": 2}),
	)
	require.Equal(t, "teams?limit=20&page=2", Key("teams", Params{"page": 2, "limit": 20}))
	require.NotEqual(t, Key("teams", Params{"page": 1}), Key("projects", Params{"page": 1}))
}

func TestTTL(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		hit     bool
	}{
		{name: "just stored", elapsed: 0, hit: true},
		{name: "before expiry", elapsed: 999 * time.Millisecond, hit: true},
		{name: "at expiry", elapsed: time.Second, hit: false},
		{name: "after expiry", elapsed: time.Hour, hit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestCache(Config{})
			c.Set("posts", "payload", Params{"page": 1}, time.Second)
			clock.Advance(tt.elapsed)

			got, ok := Get[string](c, "posts", Params{"page": 1})
			require.Equal(t, tt.hit, ok)
			if tt.hit {
				require.Equal(t, "payload", got)
			} else {
				require.Empty(t, got)
			}
		})
	}
}

func TestDefaultTTL(t *testing.T) {
	c, clock := newTestCache(Config{DefaultTTL: time.Minute})
	c.Set("posts", 1, nil, 0)

	clock.Advance(59 * time.Second)
	_, ok := Get[int](c, "posts", nil)
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = Get[int](c, "posts", nil)
	require.False(t, ok)
}

func TestSetReplaces(t *testing.T) {
	c, _ := newTestCache(Config{})
	c.Set("posts", "old", Params{"page": 1}, time.Minute)
	c.Set("posts", "new", Params{"page": 1}, time.Minute)

	got, ok := Get[string](c, "posts", Params{"page": 1})
	require.True(t, ok)
	require.Equal(t, "new", got)
	require.Equal(t, 1, c.Stats().Entries)
}

func TestGetWrongType(t *testing.T) {
	c, _ := newTestCache(Config{})
	c.Set("posts", []string{"a"}, nil, time.Minute)

	_, ok := Get[map[string]int](c, "posts", nil)
	require.False(t, ok)

	got, ok := Get[[]string](c, "posts", nil)
	require.True(t, ok)
	require.Equal(t, []string{"a"}, got)
}

func TestEvictionBound(t *testing.T) {
	c, clock := newTestCache(Config{MaxEntries: 3})

	for i := range 10 {
		c.Set("posts", i, Params{"page": i}, time.Hour)
		clock.Advance(time.Millisecond)
		require.LessOrEqual(t, c.Stats().Entries, 3)
	}

	// the three most recent writes survive
	for i := range 7 {
		_, ok := Get[int](c, "posts", Params{"page": i})
		require.False(t, ok, "page %d should be evicted", i)
	}
	for i := 7; i < 10; i++ {
		got, ok := Get[int](c, "posts", Params{"page": i})
		require.True(t, ok, "page %d should be cached", i)
		require.Equal(t, i, got)
	}
	require.Equal(t, uint64(7), c.Stats().Evictions)
}

func TestEvictionSameTimestampKeepsNewest(t *testing.T) {
	c, _ := newTestCache(Config{MaxEntries: 2})

	c.Set("a", 1, nil, time.Hour)
	c.Set("b", 2, nil, time.Hour)
	c.Set("c", 3, nil, time.Hour)

	_, ok := Get[int](c, "a", nil)
	require.False(t, ok)
	_, ok = Get[int](c, "b", nil)
	require.True(t, ok)
	_, ok = Get[int](c, "c", nil)
	require.True(t, ok)
}

func TestEvictionDropsExpiredFirst(t *testing.T) {
	c, clock := newTestCache(Config{MaxEntries: 2})

	c.Set("old-long", 1, nil, time.Hour)
	clock.Advance(time.Second)
	c.Set("short", 2, nil, time.Second)
	clock.Advance(time.Second)
	c.Set("new", 3, nil, time.Hour)

	// "short" expired, so the older "old-long" survives the cap
	_, ok := Get[int](c, "old-long", nil)
	require.True(t, ok)
	_, ok = Get[int](c, "new", nil)
	require.True(t, ok)
	require.Equal(t, 2, c.Stats().Entries)
}

func TestInvalidatePrecision(t *testing.T) {
	c, _ := newTestCache(Config{})
	c.Set("teams", "p1", Params{"page": 1}, time.Hour)
	c.Set("teams", "p2", Params{"page": 2}, time.Hour)
	c.Set("projects", "p1", Params{"page": 1}, time.Hour)

	require.Equal(t, 2, c.Invalidate("teams"))

	_, ok := Get[string](c, "teams", Params{"page": 1})
	require.False(t, ok)
	_, ok = Get[string](c, "teams", Params{"page": 2})
	require.False(t, ok)
	got, ok := Get[string](c, "projects", Params{"page": 1})
	require.True(t, ok)
	require.Equal(t, "p1", got)
}

func TestInvalidateRegexp(t *testing.T) {
	c, _ := newTestCache(Config{})
	for i := 1; i <= 3; i++ {
		c.Set(fmt.Sprintf("posts/%d", i), i, nil, time.Hour)
	}
	c.Set("posts", "list", Params{"page": 1}, time.Hour)

	require.Equal(t, 2, c.InvalidateRegexp(regexp.MustCompile(`^posts/[12]\?`)))
	require.Equal(t, 0, c.InvalidateRegexp(nil))

	_, ok := Get[int](c, "posts/3", nil)
	require.True(t, ok)
	_, ok = Get[string](c, "posts", Params{"page": 1})
	require.True(t, ok)
}

func TestClearAndStats(t *testing.T) {
	c, _ := newTestCache(Config{MaxEntries: 10, DefaultTTL: time.Minute, MaxSize: 1024})
	c.Set("a", 1, nil, 0)
	c.Set("b", 2, nil, 0)
	Get[int](c, "a", nil)
	Get[int](c, "missing", nil)

	stats := c.Stats()
	require.Equal(t, Stats{
		Entries:    2,
		MaxEntries: 10,
		DefaultTTL: time.Minute,
		MaxSize:    1024,
		Hits:       1,
		Misses:     1,
	}, stats)
	// Stats has no side effects
	require.Equal(t, stats, c.Stats())

	c.Clear()
	require.Zero(t, c.Stats().Entries)
	_, ok := Get[int](c, "a", nil)
	require.False(t, ok)
}

func TestDefaults(t *testing.T) {
	stats := New(Config{}).Stats()
	require.Equal(t, DefaultMaxEntries, stats.MaxEntries)
	require.Equal(t, DefaultTTL, stats.DefaultTTL)
	require.Equal(t, int64(DefaultMaxSize), stats.MaxSize)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	c.Set("a", 1, nil, time.Minute)
	_, ok := Get[int](c, "a", nil)
	require.False(t, ok)
	require.Zero(t, c.Invalidate("a"))
	c.Clear()
	require.Equal(t, Stats{}, c.Stats())
	require.NoError(t, c.Register("x", prometheus.NewRegistry()))
}

func TestMetrics(t *testing.T) {
	c, clock := newTestCache(Config{MaxEntries: 1})
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register("kudos", reg))

	c.Set("a", 1, nil, time.Minute)
	Get[int](c, "a", nil)
	clock.Advance(time.Minute)
	Get[int](c, "a", nil)
	c.Set("b", 2, nil, time.Minute)
	c.Set("c", 3, nil, time.Minute)

	require.InDelta(t, 1, testutil.ToFloat64(c.metrics.hits), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.metrics.misses), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.metrics.evictions), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.metrics.entries), 0)

	// registering twice on the same registry fails
	require.Error(t, c.Register("kudos", reg))
}
