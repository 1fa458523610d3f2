// Package store persists the development backend's posts and engagement.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/kudos/internal/domain"
)

// Bucket names
var (
	bucketPosts      = []byte("posts")
	bucketEngagement = []byte("engagement")
)

// engagementRecord is the stored form of one entity's engagement
type engagementRecord struct {
	Liked        bool `json:"liked"`
	Bookmarked   bool `json:"bookmarked"`
	LikeCount    int  `json:"likeCount"`
	CommentCount int  `json:"commentCount"`
	ShareCount   int  `json:"shareCount"`
}

func (r engagementRecord) state() domain.EngagementState {
	return domain.EngagementState{
		IsLiked:      r.Liked,
		IsBookmarked: r.Bookmarked,
		LikeCount:    r.LikeCount,
		CommentCount: r.CommentCount,
		ShareCount:   r.ShareCount,
	}.Normalize()
}

func recordOf(s domain.EngagementState) engagementRecord {
	s = s.Normalize()
	return engagementRecord{
		Liked:        s.IsLiked,
		Bookmarked:   s.IsBookmarked,
		LikeCount:    s.LikeCount,
		CommentCount: s.CommentCount,
		ShareCount:   s.ShareCount,
	}
}

// Store keeps posts and engagement records in BoltDB with an in-memory
// read cache. An empty path keeps everything in memory.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte

	// Serialises read-modify-write of engagement records
	writeMu sync.Mutex
}

// Open opens (or creates) the store at path
func Open(path string) (*Store, error) {
	if path == "" {
		// Memory-only mode (no persistence)
		return &Store{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPosts, bucketEngagement} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: make(map[string][]byte)}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *Store) get(bucket []byte, key string, dest any) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			data = slices.Clone(v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *Store) set(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucket).Put([]byte(key), data)
		})
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cache[string(bucket)+":"+key] = data
	s.mu.Unlock()
	return nil
}

// keys returns every key in bucket, sorted
func (s *Store) keys(bucket []byte) []string {
	if s.db == nil {
		prefix := string(bucket) + ":"
		s.mu.RLock()
		var keys []string
		for k := range s.cache {
			if rest, ok := strings.CutPrefix(k, prefix); ok {
				keys = append(keys, rest)
			}
		}
		s.mu.RUnlock()
		slices.Sort(keys)
		return keys
	}

	var keys []string
	s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys
}

// === Posts ===

// PutPost stores a post, replacing any post with the same ID
func (s *Store) PutPost(p domain.Post) error {
	if p.ID == "" {
		return errors.New("post has no id")
	}
	return s.set(bucketPosts, p.ID, p)
}

// GetPost returns the post with id
func (s *Store) GetPost(id string) (domain.Post, bool) {
	var p domain.Post
	ok := s.get(bucketPosts, id, &p)
	return p, ok
}

// CountPosts returns the number of stored posts
func (s *Store) CountPosts() int {
	return len(s.keys(bucketPosts))
}

// ListPosts returns one page (1-based) of posts, newest first, and whether
// more pages follow
func (s *Store) ListPosts(page, limit int) ([]domain.Post, bool) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	keys := s.keys(bucketPosts)
	posts := make([]domain.Post, 0, len(keys))
	for _, id := range keys {
		if p, ok := s.GetPost(id); ok {
			posts = append(posts, p)
		}
	}
	slices.SortStableFunc(posts, func(a, b domain.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	start := (page - 1) * limit
	if start >= len(posts) {
		return []domain.Post{}, false
	}
	end := min(start+limit, len(posts))
	return posts[start:end], end < len(posts)
}

// === Engagement ===

func engagementKey(key domain.EntityKey) string {
	return string(key.Type) + "/" + key.ID
}

// Engagement returns the stored state of one entity
func (s *Store) Engagement(key domain.EntityKey) (domain.EngagementState, bool) {
	var rec engagementRecord
	if !s.get(bucketEngagement, engagementKey(key), &rec) {
		return domain.EngagementState{}, false
	}
	return rec.state(), true
}

// Engagements returns the states of the known entities among ids
func (s *Store) Engagements(entityType domain.EntityType, ids []string) map[string]domain.EngagementState {
	out := make(map[string]domain.EngagementState, len(ids))
	for _, id := range ids {
		if st, ok := s.Engagement(domain.EntityKey{Type: entityType, ID: id}); ok {
			out[id] = st
		}
	}
	return out
}

// PutEngagement replaces the stored state of one entity
func (s *Store) PutEngagement(key domain.EntityKey, state domain.EngagementState) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.set(bucketEngagement, engagementKey(key), recordOf(state))
}

// ApplyAction sets action to desired on a known entity. Applying the
// current value again changes nothing.
func (s *Store) ApplyAction(key domain.EntityKey, action domain.Action, desired bool) (domain.EngagementState, error) {
	if !action.Valid() {
		return domain.EngagementState{}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, action)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var rec engagementRecord
	if !s.get(bucketEngagement, engagementKey(key), &rec) {
		return domain.EngagementState{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}

	next := rec.state().WithAction(action, desired)
	if err := s.set(bucketEngagement, engagementKey(key), recordOf(next)); err != nil {
		return domain.EngagementState{}, err
	}
	return next, nil
}

// Share counts one share of the entity
func (s *Store) Share(key domain.EntityKey) (domain.EngagementState, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var rec engagementRecord
	if !s.get(bucketEngagement, engagementKey(key), &rec) {
		return domain.EngagementState{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	rec.ShareCount++
	if err := s.set(bucketEngagement, engagementKey(key), rec); err != nil {
		return domain.EngagementState{}, err
	}
	return rec.state(), nil
}
