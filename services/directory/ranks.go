package directory

import (
	"context"
	"sync"
	"time"

	"crafterDirectory/services/warcraft"

	"github.com/jonboulle/clockwork"
)

type rankEntry struct {
	rank    *int
	expires time.Time
}

// rankCache maps recipe ids to their rank. Entries are valid while the
// clock reads before their expiry.
type rankCache struct {
	mu      sync.RWMutex
	entries map[int]rankEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

func newRankCache(ttl time.Duration, clock clockwork.Clock) *rankCache {
	return &rankCache{
		entries: make(map[int]rankEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *rankCache) get(recipeID int) (*int, bool) {
	c.mu.RLock()
	entry, ok := c.entries[recipeID]
	c.mu.RUnlock()
	if !ok || !c.clock.Now().Before(entry.expires) {
		return nil, false
	}
	return copyRank(entry.rank), true
}

func (c *rankCache) put(recipeID int, rank *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[recipeID] = rankEntry{rank: copyRank(rank), expires: c.clock.Now().Add(c.ttl)}
}

func (c *rankCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyRank(rank *int) *int {
	if rank == nil {
		return nil
	}
	r := *rank
	return &r
}

// CachedRank returns the rank of a recipe if an unexpired entry exists. The
// bool reports a cache hit; a hit may still carry a nil rank for unranked
// recipes.
func (s *Store) CachedRank(recipeID int) (*int, bool) {
	return s.ranks.get(recipeID)
}

// GetRank returns the cached rank or fetches it from the game API. Two
// concurrent misses for the same recipe may both fetch.
func (s *Store) GetRank(ctx context.Context, recipeID int) (*int, error) {
	if rank, ok := s.ranks.get(recipeID); ok {
		return rank, nil
	}
	text, err := s.gateway.FetchRecipeRank(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	rank, err := warcraft.ParseRecipeRank(text)
	if err != nil {
		return nil, err
	}
	s.ranks.put(recipeID, rank)
	return copyRank(rank), nil
}
