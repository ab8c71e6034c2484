package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"watchparty-quiz/internal/domain"
)

// ResultsCache stores leaderboard snapshots as JSON strings so every
// instance behind a load balancer shares them:
//
//	SET watchparty:results:{roomID} {json} EX ttl
type ResultsCache struct {
	client *redis.Client
	ttl    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewResultsCache(client *redis.Client, ttl time.Duration) *ResultsCache {
	return &ResultsCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ResultsCache) Get(ctx context.Context, roomID string) (domain.RoomResults, bool, error) {
	raw, err := c.client.Get(ctx, c.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RoomResults{}, false, nil
	}
	if err != nil {
		return domain.RoomResults{}, false, err
	}
	var results domain.RoomResults
	if err := json.Unmarshal(raw, &results); err != nil {
		// Unreadable entries are treated as misses and overwritten later.
		return domain.RoomResults{}, false, nil
	}
	return results, true, nil
}

func (c *ResultsCache) Set(ctx context.Context, results domain.RoomResults) error {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(results.RoomID), raw, ttl).Err()
}

func (c *ResultsCache) Invalidate(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, c.key(roomID)).Err()
}

func (c *ResultsCache) key(roomID string) string {
	return "watchparty:results:" + roomID
}

func (c *ResultsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
