package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"contest-service/internal/domain"
)

// ContestLoader fetches contest content from a backing store.
type ContestLoader interface {
	GetContest(ctx context.Context, id int64) (domain.Contest, error)
}

// ContestCache caches contests with TTL to avoid repeated store hits on the
// attempt path. Contests are immutable after creation, so staleness only
// matters for the kill-switch, which the TTL bounds.
type ContestCache struct {
	loader ContestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedContest
}

type cachedContest struct {
	contest   domain.Contest
	expiresAt time.Time
}

func NewContestCache(loader ContestLoader, ttl time.Duration) *ContestCache {
	return &ContestCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedContest),
	}
}

func (c *ContestCache) GetContest(ctx context.Context, id int64) (domain.Contest, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.contest, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.contest, nil
		}
		c.mu.RUnlock()

		contest, err := c.loader.GetContest(ctx, id)
		if err != nil {
			return domain.Contest{}, err
		}

		c.mu.Lock()
		c.cache[id] = cachedContest{
			contest:   contest,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return contest, nil
	})
	if err != nil {
		return domain.Contest{}, err
	}
	return result.(domain.Contest), nil
}

func (c *ContestCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
