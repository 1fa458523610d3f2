// Package cache is the client-side response cache shared by every read path.
//
// Entries are keyed by a canonical form of (endpoint, params), expire after a
// per-entry TTL, and are bounded in number. Eviction runs on every Set: expired
// entries go first, then the oldest-written entries until the cap is met. This
// is least-recently-written, not least-recently-used.
//
// A nil *Cache is valid and behaves as a cache that never hits.
package cache

import (
	"cmp"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
)

// Defaults used when a Config field is zero
const (
	DefaultMaxEntries = 100
	DefaultTTL        = 5 * time.Minute
	DefaultMaxSize    = 50 << 20
)

// Config holds the cache limits
type Config struct {
	MaxEntries int           `mapstructure:"max_entries"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MaxSize    int64         `mapstructure:"max_size"` // advisory, reported by Stats
}

func (c Config) withDefaults() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	return c
}

// Entry is a stored payload. Entries are replaced, never mutated.
type Entry struct {
	Payload  any
	StoredAt time.Time
	TTL      time.Duration

	seq uint64 // write order, breaks StoredAt ties during eviction
}

// Expired reports whether the entry must no longer be returned at now
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) >= e.TTL
}

// Stats is a point-in-time view of the cache
type Stats struct {
	Entries    int
	MaxEntries int
	DefaultTTL time.Duration
	MaxSize    int64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
}

// Cache is a bounded TTL cache of network responses
type Cache struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry
	seq     uint64
	metrics *metrics

	hits, misses, evictions uint64
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for eviction and invalidation debug output
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates a cache
func New(cfg Config, opts ...Option) *Cache {
	c := &Cache{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		logger:  slog.Default(),
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the payload stored for (endpoint, params) if it has not expired
func (c *Cache) Lookup(endpoint string, params Params) (any, bool) {
	if c == nil {
		return nil, false
	}
	key := Key(endpoint, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok && entry.Expired(c.now()) {
		delete(c.entries, key)
		c.metrics.setEntries(len(c.entries))
		ok = false
	}
	if !ok {
		c.misses++
		c.metrics.miss()
		return nil, false
	}
	c.hits++
	c.metrics.hit()
	return entry.Payload, true
}

// Get returns the payload for (endpoint, params) as a T.
// A payload stored with a different type is reported as a miss.
func Get[T any](c *Cache, endpoint string, params Params) (T, bool) {
	var zero T
	v, ok := c.Lookup(endpoint, params)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Set stores payload for (endpoint, params), replacing any previous entry.
// A non-positive ttl uses the configured default.
func (c *Cache) Set(endpoint string, payload any, params Params, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	key := Key(endpoint, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[key] = Entry{
		Payload:  payload,
		StoredAt: c.now(),
		TTL:      ttl,
		seq:      c.seq,
	}
	c.evict()
	c.metrics.setEntries(len(c.entries))
}

// evict drops expired entries, then the oldest-written until under the cap.
// Caller holds mu.
func (c *Cache) evict() {
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}

	if over := len(c.entries) - c.cfg.MaxEntries; over > 0 {
		type aged struct {
			key   string
			entry Entry
		}
		all := make([]aged, 0, len(c.entries))
		for key, entry := range c.entries {
			all = append(all, aged{key, entry})
		}
		slices.SortFunc(all, func(a, b aged) int {
			if n := a.entry.StoredAt.Compare(b.entry.StoredAt); n != 0 {
				return n
			}
			return cmp.Compare(a.entry.seq, b.entry.seq)
		})
		for _, a := range all[:over] {
			delete(c.entries, a.key)
		}
		removed += over
	}

	if removed > 0 {
		c.evictions += uint64(removed)
		c.metrics.evict(removed)
		c.logger.Debug("cache eviction", "removed", removed, "entries", len(c.entries))
	}
}

// Invalidate removes every entry whose key contains pattern and returns how
// many were removed
func (c *Cache) Invalidate(pattern string) int {
	return c.InvalidateFunc(func(key string) bool {
		return strings.Contains(key, pattern)
	})
}

// InvalidateRegexp removes every entry whose key matches re
func (c *Cache) InvalidateRegexp(re *regexp.Regexp) int {
	if re == nil {
		return 0
	}
	return c.InvalidateFunc(re.MatchString)
}

// InvalidateFunc removes every entry whose key satisfies match
func (c *Cache) InvalidateFunc(match func(key string) bool) int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.metrics.setEntries(len(c.entries))
		c.logger.Debug("cache invalidated", "removed", removed)
	}
	return removed
}

// Clear empties the cache
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.metrics.setEntries(0)
}

// Stats reports the entry count, configured limits and counters
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:    len(c.entries),
		MaxEntries: c.cfg.MaxEntries,
		DefaultTTL: c.cfg.DefaultTTL,
		MaxSize:    c.cfg.MaxSize,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}
