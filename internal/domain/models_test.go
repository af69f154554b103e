package domain

import (
	"testing"
	"time"
)

func TestContestIsLive(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	contest := Contest{IsActive: true, StartDate: start, EndDate: end}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before window", start.Add(-time.Second), false},
		{"at start", start, true},
		{"inside window", start.Add(time.Hour), true},
		{"at end", end, true},
		{"after window", end.Add(time.Second), false},
	}
	for _, tc := range cases {
		if got := contest.IsLive(tc.now); got != tc.want {
			t.Errorf("%s: IsLive=%v, want %v", tc.name, got, tc.want)
		}
	}

	killed := contest
	killed.IsActive = false
	if killed.IsLive(start.Add(time.Hour)) {
		t.Errorf("kill-switch should override the window")
	}
}

func TestContestCanAttempt(t *testing.T) {
	contest := Contest{MaxAttempts: 2}
	if !contest.CanAttempt(0) || !contest.CanAttempt(1) {
		t.Fatalf("expected attempts below quota to be allowed")
	}
	if contest.CanAttempt(2) || contest.CanAttempt(3) {
		t.Fatalf("expected attempts at or above quota to be denied")
	}
}

func TestAttemptPercentage(t *testing.T) {
	cases := []struct {
		score, total int
		want         float64
	}{
		{2, 3, 66.67},
		{3, 3, 100},
		{0, 3, 0},
		{0, 0, 0}, // no questions: defined as zero, not a division error
		{1, 8, 12.5},
	}
	for _, tc := range cases {
		a := Attempt{Score: tc.score, TotalQuestions: tc.total}
		if got := a.Percentage(); got != tc.want {
			t.Errorf("percentage(%d/%d)=%v, want %v", tc.score, tc.total, got, tc.want)
		}
	}
}

func TestAttemptIsWinning(t *testing.T) {
	if !(Attempt{Score: 3, TotalQuestions: 3}).IsWinning() {
		t.Errorf("perfect score should win")
	}
	if (Attempt{Score: 2, TotalQuestions: 3}).IsWinning() {
		t.Errorf("imperfect score should not win")
	}
	if (Attempt{Score: 0, TotalQuestions: 0}).IsWinning() {
		t.Errorf("empty contest should never win")
	}
}

func TestNewContestValid(t *testing.T) {
	contest, err := NewContest(validDraft())
	if err != nil {
		t.Fatalf("NewContest: %v", err)
	}
	if !contest.IsActive {
		t.Errorf("new contests start active")
	}
	if len(contest.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(contest.Questions))
	}
	for i, q := range contest.Questions {
		if q.Order != i+1 {
			t.Errorf("question %d: order=%d, want %d", i, q.Order, i+1)
		}
	}
	if len(contest.Terms) != 1 || contest.Terms[0].Order != 1 {
		t.Errorf("expected one term with order 1, got %+v", contest.Terms)
	}
}

func TestNewContestRejectsBadDrafts(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ContestDraft)
		field  string
	}{
		{"missing title", func(d *ContestDraft) { d.Title = "" }, "title"},
		{"inverted window", func(d *ContestDraft) { d.EndDate = d.StartDate.Add(-time.Hour) }, "end_date"},
		{"zero attempts", func(d *ContestDraft) { d.MaxAttempts = 0 }, "max_attempts"},
		{"too many attempts", func(d *ContestDraft) { d.MaxAttempts = 11 }, "max_attempts"},
		{"no questions", func(d *ContestDraft) { d.Questions = nil }, "questions"},
		{"bad answer key", func(d *ContestDraft) { d.Questions[0].CorrectAnswer = "4" }, "questions.0.correct_answer"},
	}
	for _, tc := range cases {
		draft := validDraft()
		tc.mutate(&draft)
		_, err := NewContest(draft)
		v, ok := AsValidationError(err)
		if !ok {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		found := false
		for _, f := range v.Fields {
			if f.Field == tc.field {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: expected field %q in %v", tc.name, tc.field, v.Fields)
		}
	}
}

func validDraft() ContestDraft {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return ContestDraft{
		CelebrityID: 1,
		PlatformID:  1,
		Title:       "Song trivia",
		StartDate:   start,
		EndDate:     start.Add(72 * time.Hour),
		MaxAttempts: 2,
		Questions: []QuestionDraft{
			{Text: "First single?", Option1: "A", Option2: "B", Option3: "C", CorrectAnswer: OptionOne},
			{Text: "Debut year?", Option1: "2019", Option2: "2020", Option3: "2021", CorrectAnswer: OptionTwo},
		},
		Terms: []string{"One prize per winner"},
	}
}
