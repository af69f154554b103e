package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
)

// ContestStore is an in-memory implementation of app.ContestStore and
// app.AttemptLedger, used by unit tests and when the service runs without
// Postgres. A single mutex guards all state, which also serializes the
// quota-check-then-insert in RecordAttempt.
type ContestStore struct {
	clock func() time.Time

	mu            sync.Mutex
	contests      map[int64]domain.Contest
	attempts      map[int64]domain.Attempt
	answers       map[int64][]domain.UserAnswer
	finalized     map[int64]bool
	nextContestID int64
	nextEntityID  int64
	nextAttemptID int64
}

func NewContestStore() *ContestStore {
	return &ContestStore{
		clock:     time.Now,
		contests:  make(map[int64]domain.Contest),
		attempts:  make(map[int64]domain.Attempt),
		answers:   make(map[int64][]domain.UserAnswer),
		finalized: make(map[int64]bool),
	}
}

// NewContestStoreWithClock is test-only for deterministic timestamps.
func NewContestStoreWithClock(now func() time.Time) *ContestStore {
	s := NewContestStore()
	s.clock = now
	return s
}

func (s *ContestStore) CreateContest(_ context.Context, contest domain.Contest) (domain.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextContestID++
	contest.ID = s.nextContestID
	contest.CreatedAt = s.clock()
	for i := range contest.Questions {
		s.nextEntityID++
		contest.Questions[i].ID = s.nextEntityID
		contest.Questions[i].ContestID = contest.ID
	}
	for i := range contest.Terms {
		s.nextEntityID++
		contest.Terms[i].ID = s.nextEntityID
		contest.Terms[i].ContestID = contest.ID
	}
	s.contests[contest.ID] = contest
	return contest, nil
}

func (s *ContestStore) GetContest(_ context.Context, id int64) (domain.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contest, ok := s.contests[id]
	if !ok {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	return contest, nil
}

func (s *ContestStore) ListActive(_ context.Context, now time.Time) ([]domain.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Contest
	for _, c := range s.contests {
		if c.IsLive(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ContestStore) ListByCelebrity(_ context.Context, celebrityID int64, now time.Time) ([]domain.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Contest
	for _, c := range s.contests {
		if c.CelebrityID == celebrityID && !c.EndDate.Before(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SetActive flips the kill-switch; the only mutation a contest supports.
func (s *ContestStore) SetActive(id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contest, ok := s.contests[id]
	if !ok {
		return domain.ErrContestNotFound
	}
	contest.IsActive = active
	s.contests[id] = contest
	return nil
}

func (s *ContestStore) CountAttempts(_ context.Context, userID, contestID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(userID, contestID), nil
}

func (s *ContestStore) LatestAttempt(_ context.Context, userID, contestID int64) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest domain.Attempt
	found := false
	for _, a := range s.attempts {
		if a.UserID != userID || a.ContestID != contestID {
			continue
		}
		if !found || a.ID > latest.ID {
			latest = a
			found = true
		}
	}
	return latest, found, nil
}

func (s *ContestStore) RecordAttempt(_ context.Context, rec app.AttemptRecord) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Quota re-check and insert under the same lock: two concurrent
	// submissions cannot both slip past the count.
	if s.countLocked(rec.UserID, rec.ContestID) >= rec.MaxAttempts {
		return domain.Attempt{}, domain.ErrAttemptsExhausted
	}

	s.nextAttemptID++
	attempt := domain.Attempt{
		ID:             s.nextAttemptID,
		UserID:         rec.UserID,
		ContestID:      rec.ContestID,
		Score:          0,
		TotalQuestions: rec.TotalQuestions,
		CompletedAt:    rec.CompletedAt,
	}
	s.attempts[attempt.ID] = attempt

	answers := make([]domain.UserAnswer, 0, len(rec.Answers))
	for _, ans := range rec.Answers {
		s.nextEntityID++
		ans.ID = s.nextEntityID
		ans.AttemptID = attempt.ID
		answers = append(answers, ans)
	}
	s.answers[attempt.ID] = answers

	if err := s.finalizeLocked(attempt.ID, rec.Score); err != nil {
		// Unreachable for a fresh attempt; keep the store consistent anyway.
		delete(s.attempts, attempt.ID)
		delete(s.answers, attempt.ID)
		return domain.Attempt{}, err
	}
	return s.attempts[attempt.ID], nil
}

// FinalizeScore sets an attempt's final score. Attempts are single-shot, so
// a second call returns domain.ErrScoreFinalized.
func (s *ContestStore) FinalizeScore(attemptID int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeLocked(attemptID, score)
}

func (s *ContestStore) ContestAttempts(_ context.Context, contestID int64) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.ContestID == contestID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AttemptAnswers is used by tests to assert answer rows.
func (s *ContestStore) AttemptAnswers(attemptID int64) []domain.UserAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UserAnswer(nil), s.answers[attemptID]...)
}

func (s *ContestStore) countLocked(userID, contestID int64) int {
	count := 0
	for _, a := range s.attempts {
		if a.UserID == userID && a.ContestID == contestID {
			count++
		}
	}
	return count
}

func (s *ContestStore) finalizeLocked(attemptID int64, score int) error {
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrContestNotFound
	}
	if s.finalized[attemptID] {
		return domain.ErrScoreFinalized
	}
	attempt.Score = score
	s.attempts[attemptID] = attempt
	s.finalized[attemptID] = true
	return nil
}
