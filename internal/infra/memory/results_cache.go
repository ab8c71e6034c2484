package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"watchparty-quiz/internal/domain"
)

// ResultsCache keeps leaderboard snapshots for a short TTL. The quiz service
// drops a room's entry on every write that changes its results.
type ResultsCache struct {
	ttl   time.Duration
	clock func() time.Time
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedResults
}

type cachedResults struct {
	results   domain.RoomResults
	expiresAt time.Time
}

func NewResultsCache(ttl time.Duration) *ResultsCache {
	return &ResultsCache{
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedResults),
	}
}

func (c *ResultsCache) Get(_ context.Context, roomID string) (domain.RoomResults, bool, error) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[roomID]; ok && entry.expiresAt.After(now) {
		return entry.results, true, nil
	}
	return domain.RoomResults{}, false, nil
}

func (c *ResultsCache) Set(_ context.Context, results domain.RoomResults) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[results.RoomID] = cachedResults{
		results:   results,
		expiresAt: c.clock().Add(c.ttlWithJitter()),
	}
	return nil
}

func (c *ResultsCache) Invalidate(_ context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, roomID)
	return nil
}

// ttlWithJitter adds up to 10% to spread expirations. Callers hold c.mu.
func (c *ResultsCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
