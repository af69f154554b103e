package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"contest-service/internal/domain"
)

type countingLoader struct {
	calls   int32
	contest domain.Contest
	err     error
}

func (l *countingLoader) GetContest(ctx context.Context, id int64) (domain.Contest, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.err != nil {
		return domain.Contest{}, l.err
	}
	return l.contest, nil
}

func testContest() domain.Contest {
	return domain.Contest{
		ID:          1,
		Title:       "Trivia",
		IsActive:    true,
		MaxAttempts: 2,
		Questions: []domain.Question{
			{ID: 1, ContestID: 1, Text: "Q1", Option1: "a", Option2: "b", Option3: "c", CorrectAnswer: "1", Order: 1},
		},
	}
}

func newTestCache(t *testing.T, loader ContestLoader, ttl time.Duration) (*ContestCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewContestCache(client, loader, ttl), mr
}

func TestGetContestCachesLoads(t *testing.T) {
	loader := &countingLoader{contest: testContest()}
	cache, mr := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		contest, err := cache.GetContest(ctx, 1)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if contest.Title != "Trivia" || len(contest.Questions) != 1 {
			t.Fatalf("unexpected contest: %+v", contest)
		}
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
	if !mr.Exists("contest:1") {
		t.Fatal("contest not cached in redis")
	}
}

func TestGetContestCachePreservesAnswerKey(t *testing.T) {
	loader := &countingLoader{contest: testContest()}
	cache, _ := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetContest(ctx, 1); err != nil {
		t.Fatalf("prime: %v", err)
	}
	contest, err := cache.GetContest(ctx, 1)
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	// Scoring reads go through the cache, so the answer key must survive the
	// JSON round trip despite its omitempty tag.
	if contest.Questions[0].CorrectAnswer != "1" {
		t.Fatalf("answer key lost in cache: %+v", contest.Questions[0])
	}
}

func TestGetContestExpiry(t *testing.T) {
	loader := &countingLoader{contest: testContest()}
	cache, mr := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetContest(ctx, 1); err != nil {
		t.Fatalf("prime: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.GetContest(ctx, 1); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("loader called %d times after expiry, want 2", got)
	}
}

func TestGetContestLoaderError(t *testing.T) {
	loader := &countingLoader{err: domain.ErrContestNotFound}
	cache, mr := newTestCache(t, loader, time.Minute)

	_, err := cache.GetContest(context.Background(), 5)
	if !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("got %v, want ErrContestNotFound", err)
	}
	if mr.Exists("contest:5") {
		t.Fatal("error result must not be cached")
	}
}

func TestGetContestSurvivesRedisDown(t *testing.T) {
	loader := &countingLoader{contest: testContest()}
	cache, mr := newTestCache(t, loader, time.Minute)

	mr.Close()
	contest, err := cache.GetContest(context.Background(), 1)
	if err != nil {
		t.Fatalf("get with redis down: %v", err)
	}
	if contest.Title != "Trivia" {
		t.Fatalf("unexpected contest: %+v", contest)
	}
}
