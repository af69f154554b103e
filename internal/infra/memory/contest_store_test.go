package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
)

var storeTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedContest(t *testing.T, s *ContestStore) domain.Contest {
	t.Helper()
	contest, err := s.CreateContest(context.Background(), domain.Contest{
		CelebrityID: 7,
		PlatformID:  1,
		Title:       "Trivia",
		StartDate:   storeTime.Add(-time.Hour),
		EndDate:     storeTime.Add(time.Hour),
		IsActive:    true,
		MaxAttempts: 2,
		Questions: []domain.Question{
			{Text: "Q1", Option1: "a", Option2: "b", Option3: "c", CorrectAnswer: "1", Order: 1},
			{Text: "Q2", Option1: "a", Option2: "b", Option3: "c", CorrectAnswer: "2", Order: 2},
		},
		Terms: []domain.ContestTerm{{Term: "be nice", Order: 1}},
	})
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	return contest
}

func TestCreateContestAssignsIDs(t *testing.T) {
	s := NewContestStoreWithClock(func() time.Time { return storeTime })
	contest := seedContest(t, s)

	if contest.ID == 0 {
		t.Fatal("contest id not assigned")
	}
	for _, q := range contest.Questions {
		if q.ID == 0 || q.ContestID != contest.ID {
			t.Fatalf("question not linked: %+v", q)
		}
	}
	for _, term := range contest.Terms {
		if term.ID == 0 || term.ContestID != contest.ID {
			t.Fatalf("term not linked: %+v", term)
		}
	}
	if !contest.CreatedAt.Equal(storeTime) {
		t.Fatalf("created_at = %v, want %v", contest.CreatedAt, storeTime)
	}
}

func TestGetContestNotFound(t *testing.T) {
	s := NewContestStore()
	_, err := s.GetContest(context.Background(), 5)
	if !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("got %v, want ErrContestNotFound", err)
	}
}

func TestListActiveRespectsWindowAndKillSwitch(t *testing.T) {
	s := NewContestStoreWithClock(func() time.Time { return storeTime })
	ctx := context.Background()
	live := seedContest(t, s)

	ended, _ := s.CreateContest(ctx, domain.Contest{
		Title: "Over", IsActive: true,
		StartDate: storeTime.Add(-2 * time.Hour), EndDate: storeTime.Add(-time.Hour),
	})
	if err := s.SetActive(live.ID, true); err != nil {
		t.Fatalf("set active: %v", err)
	}

	contests, err := s.ListActive(ctx, storeTime)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(contests) != 1 || contests[0].ID != live.ID {
		t.Fatalf("got %+v, want only contest %d", contests, live.ID)
	}

	if err := s.SetActive(live.ID, false); err != nil {
		t.Fatalf("kill switch: %v", err)
	}
	contests, _ = s.ListActive(ctx, storeTime)
	if len(contests) != 0 {
		t.Fatalf("killed contest still listed: %+v", contests)
	}
	_ = ended
}

func TestListByCelebrityKeepsUnendedOnly(t *testing.T) {
	s := NewContestStoreWithClock(func() time.Time { return storeTime })
	ctx := context.Background()
	mine := seedContest(t, s)

	s.CreateContest(ctx, domain.Contest{
		CelebrityID: 7, Title: "Old",
		StartDate: storeTime.Add(-3 * time.Hour), EndDate: storeTime.Add(-time.Hour), IsActive: true,
	})
	s.CreateContest(ctx, domain.Contest{
		CelebrityID: 8, Title: "Theirs",
		StartDate: storeTime.Add(-time.Hour), EndDate: storeTime.Add(time.Hour), IsActive: true,
	})

	contests, err := s.ListByCelebrity(ctx, 7, storeTime)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(contests) != 1 || contests[0].ID != mine.ID {
		t.Fatalf("got %+v, want only contest %d", contests, mine.ID)
	}
}

func TestRecordAttemptEnforcesQuota(t *testing.T) {
	s := NewContestStoreWithClock(func() time.Time { return storeTime })
	ctx := context.Background()
	contest := seedContest(t, s)

	rec := app.AttemptRecord{
		UserID: 42, ContestID: contest.ID, MaxAttempts: contest.MaxAttempts,
		TotalQuestions: 2, Score: 1, CompletedAt: storeTime,
		Answers: []domain.UserAnswer{
			{QuestionID: contest.Questions[0].ID, SelectedAnswer: "1", IsCorrect: true},
			{QuestionID: contest.Questions[1].ID, SelectedAnswer: "3", IsCorrect: false},
		},
	}
	first, err := s.RecordAttempt(ctx, rec)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if first.Score != 1 || first.TotalQuestions != 2 {
		t.Fatalf("unexpected attempt: %+v", first)
	}
	if answers := s.AttemptAnswers(first.ID); len(answers) != 2 || answers[0].AttemptID != first.ID {
		t.Fatalf("answers not linked: %+v", answers)
	}

	if _, err := s.RecordAttempt(ctx, rec); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if _, err := s.RecordAttempt(ctx, rec); !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("got %v, want ErrAttemptsExhausted", err)
	}
}

func TestFinalizeScoreOnce(t *testing.T) {
	s := NewContestStoreWithClock(func() time.Time { return storeTime })
	contest := seedContest(t, s)

	attempt, err := s.RecordAttempt(context.Background(), app.AttemptRecord{
		UserID: 42, ContestID: contest.ID, MaxAttempts: contest.MaxAttempts,
		TotalQuestions: 2, Score: 2, CompletedAt: storeTime,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if attempt.Score != 2 {
		t.Fatalf("score not finalized on record: %+v", attempt)
	}
	if err := s.FinalizeScore(attempt.ID, 0); !errors.Is(err, domain.ErrScoreFinalized) {
		t.Fatalf("got %v, want ErrScoreFinalized", err)
	}
	got, _, _ := s.LatestAttempt(context.Background(), 42, contest.ID)
	if got.Score != 2 {
		t.Fatalf("finalized score overwritten: %+v", got)
	}
}

func TestLatestAttemptPicksNewest(t *testing.T) {
	s := NewContestStoreWithClock(func() time.Time { return storeTime })
	ctx := context.Background()
	contest := seedContest(t, s)

	if _, ok, _ := s.LatestAttempt(ctx, 42, contest.ID); ok {
		t.Fatal("latest attempt reported before any exist")
	}
	rec := app.AttemptRecord{
		UserID: 42, ContestID: contest.ID, MaxAttempts: contest.MaxAttempts,
		TotalQuestions: 2, CompletedAt: storeTime,
	}
	rec.Score = 1
	s.RecordAttempt(ctx, rec)
	rec.Score = 2
	s.RecordAttempt(ctx, rec)

	latest, ok, err := s.LatestAttempt(ctx, 42, contest.ID)
	if err != nil || !ok {
		t.Fatalf("latest attempt: ok=%v err=%v", ok, err)
	}
	if latest.Score != 2 {
		t.Fatalf("got score %d, want the newer attempt's 2", latest.Score)
	}
}
