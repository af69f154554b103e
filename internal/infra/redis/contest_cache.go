package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"contest-service/internal/domain"
)

// ContestLoader fetches contest content from a backing store.
type ContestLoader interface {
	GetContest(ctx context.Context, id int64) (domain.Contest, error)
}

// ContestCache caches contest content (questions and answer keys included)
// as JSON under contest:{id} and falls back to the loader on a miss. The
// cache is server-side only; answer keys are stripped at the service layer
// before anything reaches a client.
type ContestCache struct {
	client *redis.Client
	loader ContestLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContestCache(client *redis.Client, loader ContestLoader, ttl time.Duration) *ContestCache {
	return &ContestCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContestCache) GetContest(ctx context.Context, id int64) (domain.Contest, error) {
	key := c.key(id)

	if contest, ok := c.fromCache(ctx, key); ok {
		return contest, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if contest, ok := c.fromCache(ctx, key); ok {
			return contest, nil
		}

		contest, err := c.loader.GetContest(ctx, id)
		if err != nil {
			return domain.Contest{}, err
		}

		data, err := json.Marshal(contest)
		if err != nil {
			return domain.Contest{}, fmt.Errorf("marshal contest: %w", err)
		}
		// best-effort: a failed SET just means the next read loads again
		_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		return contest, nil
	})
	if err != nil {
		return domain.Contest{}, err
	}
	return result.(domain.Contest), nil
}

func (c *ContestCache) fromCache(ctx context.Context, key string) (domain.Contest, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Contest{}, false
	}
	var contest domain.Contest
	if err := json.Unmarshal(raw, &contest); err != nil {
		return domain.Contest{}, false
	}
	return contest, true
}

func (c *ContestCache) key(id int64) string {
	return "contest:" + strconv.FormatInt(id, 10)
}

func (c *ContestCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
