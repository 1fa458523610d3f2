package devserver

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/store"
)

var (
	seedTopics = []string{
		"Caching", "Optimistic updates", "Rate limiting", "Debouncing", "Pagination",
		"Offline mode", "Retries", "Feature flags", "Observability", "Idempotency",
	}
	seedAngles = []string{
		"in practice", "without tears", "at scale", "the hard way", "for mobile clients",
		"explained", "gotchas", "from first principles",
	}
	seedAuthors = []string{"ana", "ben", "cleo", "dev", "eli", "fay", "gus", "hana"}
)

// Seed fills an empty store with n demo posts and their engagement. A store
// that already holds posts is left untouched. It returns how many were added.
func Seed(s *store.Store, n int, now time.Time) (int, error) {
	if n <= 0 || s.CountPosts() > 0 {
		return 0, nil
	}

	rng := rand.New(rand.NewPCG(uint64(n), 42))
	for i := range n {
		topic := seedTopics[i%len(seedTopics)]
		angle := seedAngles[(i/len(seedTopics))%len(seedAngles)]
		id := fmt.Sprintf("p%04d", i+1)
		post := domain.Post{
			ID:        id,
			Title:     topic + " " + angle,
			Author:    seedAuthors[rng.IntN(len(seedAuthors))],
			Excerpt:   fmt.Sprintf("Notes on %s %s.", strings.ToLower(topic), angle),
			URL:       "/posts/" + id,
			CreatedAt: now.Add(-time.Duration(i) * 37 * time.Minute),
		}
		if err := s.PutPost(post); err != nil {
			return i, fmt.Errorf("seed post %s: %w", id, err)
		}

		state := domain.EngagementState{
			LikeCount:    rng.IntN(250),
			CommentCount: rng.IntN(40),
			ShareCount:   rng.IntN(15),
		}
		if err := s.PutEngagement(post.Key(), state); err != nil {
			return i, fmt.Errorf("seed engagement %s: %w", id, err)
		}
	}
	return n, nil
}
