package domain

import (
	"fmt"
	"math"
	"time"
)

// Answer option keys. Every question carries exactly three options and its
// answer key is one of these.
const (
	OptionOne   = "1"
	OptionTwo   = "2"
	OptionThree = "3"
)

// MaxAttemptsLimit caps how many attempts a celebrity may grant per contest.
const MaxAttemptsLimit = 10

// Contest is a celebrity-authored quiz with a fixed question set, a time
// window and an attempt quota. Contests are immutable after creation except
// for the IsActive kill-switch.
type Contest struct {
	ID          int64         `json:"id"`
	CelebrityID int64         `json:"celebrity_id"`
	PlatformID  int64         `json:"platform_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Image       string        `json:"image,omitempty"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	IsActive    bool          `json:"is_active"`
	MaxAttempts int           `json:"max_attempts"`
	Questions   []Question    `json:"questions,omitempty"`
	Terms       []ContestTerm `json:"terms,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsLive reports whether the contest accepts attempts at the given instant.
// Both window endpoints are inclusive; the kill-switch overrides the window.
func (c Contest) IsLive(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// CanAttempt reports whether a user with the given number of recorded
// attempts may start another one.
func (c Contest) CanAttempt(attemptsUsed int) bool {
	return attemptsUsed < c.MaxAttempts
}

// QuestionByID looks up a question of this contest.
func (c Contest) QuestionByID(id int64) (Question, bool) {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return c.Questions[i], true
		}
	}
	return Question{}, false
}

// Sanitized returns a copy of the contest safe for pre-submission reads:
// question answer keys are blanked out.
func (c Contest) Sanitized() Contest {
	if len(c.Questions) == 0 {
		return c
	}
	questions := make([]Question, len(c.Questions))
	for i, q := range c.Questions {
		q.CorrectAnswer = ""
		questions[i] = q
	}
	c.Questions = questions
	return c
}

// Question is a three-option MCQ belonging to exactly one contest.
// CorrectAnswer must never be exposed on read paths before submission.
type Question struct {
	ID            int64  `json:"id"`
	ContestID     int64  `json:"contest_id"`
	Text          string `json:"question_text"`
	Option1       string `json:"option_1"`
	Option2       string `json:"option_2"`
	Option3       string `json:"option_3"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	Order         int    `json:"order"`
}

// IsCorrect compares a selected option key against the answer key.
func (q Question) IsCorrect(selected string) bool {
	return q.CorrectAnswer == selected
}

// Options returns the option texts keyed by option number, without the
// answer key.
func (q Question) Options() map[string]string {
	return map[string]string{
		OptionOne:   q.Option1,
		OptionTwo:   q.Option2,
		OptionThree: q.Option3,
	}
}

// ContestTerm is an ordered free-text condition shown with a contest.
type ContestTerm struct {
	ID        int64  `json:"id"`
	ContestID int64  `json:"contest_id"`
	Term      string `json:"term"`
	Order     int    `json:"order"`
}

// Attempt is one completed pass through a contest's questions by one user.
// TotalQuestions snapshots the contest's question count at creation time and
// never changes afterwards. Attempts are single-shot: CompletedAt is stamped
// at creation and the score is finalized exactly once.
type Attempt struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	ContestID      int64     `json:"contest_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Percentage returns the score as a percentage of the snapshot question
// count, rounded to two decimals. Zero questions yield zero rather than a
// division error.
func (a Attempt) Percentage() float64 {
	if a.TotalQuestions == 0 {
		return 0
	}
	return math.Round(float64(a.Score)/float64(a.TotalQuestions)*100*100) / 100
}

// IsWinning reports whether this attempt triggers the winner signal: a
// perfect score over at least one question.
func (a Attempt) IsWinning() bool {
	return a.TotalQuestions > 0 && a.Score == a.TotalQuestions
}

// UserAnswer records one submitted answer, owned exclusively by its attempt.
type UserAnswer struct {
	ID             int64  `json:"id"`
	AttemptID      int64  `json:"attempt_id"`
	QuestionID     int64  `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

// AnswerSubmission is a single answer within a submission request.
type AnswerSubmission struct {
	QuestionID     int64  `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
}

// AnswerResult reveals the outcome of one answered question. This is the
// only place a question's correct answer leaves the service.
type AnswerResult struct {
	QuestionID     int64  `json:"question_id"`
	QuestionText   string `json:"question_text"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

// UserStatus summarizes a user's standing against a contest's quota.
type UserStatus struct {
	AttemptsUsed      int      `json:"attempts_used"`
	AttemptsRemaining int      `json:"attempts_remaining"`
	CanAttempt        bool     `json:"can_attempt"`
	LastScore         *int     `json:"last_score"`
	LastTotal         *int     `json:"last_total"`
	LastPercentage    *float64 `json:"last_percentage"`
}

// RankingEntry is one user's best attempt in a contest ranking.
type RankingEntry struct {
	Rank           int       `json:"rank"`
	UserID         int64     `json:"user_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     float64   `json:"percentage"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Ranking is the ordered results board for a contest.
type Ranking struct {
	ContestID int64          `json:"contest_id"`
	Entries   []RankingEntry `json:"entries"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WinnerSignal is published for the notification service when an attempt
// scores 100%.
type WinnerSignal struct {
	EventID        string    `json:"event_id"`
	UserID         int64     `json:"user_id"`
	ContestID      int64     `json:"contest_id"`
	ContestTitle   string    `json:"contest_title"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// QuestionDraft is the input for one question of a new contest.
type QuestionDraft struct {
	Text          string
	Option1       string
	Option2       string
	Option3       string
	CorrectAnswer string
}

// ContestDraft is the input for NewContest.
type ContestDraft struct {
	CelebrityID int64
	PlatformID  int64
	Title       string
	Description string
	Image       string
	StartDate   time.Time
	EndDate     time.Time
	MaxAttempts int
	Questions   []QuestionDraft
	Terms       []string
}

// NewContest builds a contest from a draft, enforcing the construction
// invariants: a non-empty title, a valid date window, an attempt quota
// between 1 and MaxAttemptsLimit, and at least one fully specified question.
// Question and term orders are assigned sequentially from 1.
func NewContest(draft ContestDraft) (Contest, error) {
	v := NewValidationError()
	if draft.Title == "" {
		v.Add("title", "title is required")
	}
	if draft.PlatformID <= 0 {
		v.Add("platform_id", "platform is required")
	}
	if draft.StartDate.IsZero() || draft.EndDate.IsZero() {
		v.Add("start_date", "start and end dates are required")
	} else if !draft.EndDate.After(draft.StartDate) {
		v.Add("end_date", "end date must be after start date")
	}
	if draft.MaxAttempts < 1 || draft.MaxAttempts > MaxAttemptsLimit {
		v.Add("max_attempts", fmt.Sprintf("max attempts must be between 1 and %d", MaxAttemptsLimit))
	}
	if len(draft.Questions) == 0 {
		v.Add("questions", "at least one question is required")
	}

	questions := make([]Question, 0, len(draft.Questions))
	for i, qd := range draft.Questions {
		field := fmt.Sprintf("questions.%d", i)
		if qd.Text == "" {
			v.Add(field+".question_text", "question text is required")
		}
		if qd.Option1 == "" || qd.Option2 == "" || qd.Option3 == "" {
			v.Add(field, "all three options are required")
		}
		switch qd.CorrectAnswer {
		case OptionOne, OptionTwo, OptionThree:
		default:
			v.Add(field+".correct_answer", "correct answer must be 1, 2 or 3")
		}
		questions = append(questions, Question{
			Text:          qd.Text,
			Option1:       qd.Option1,
			Option2:       qd.Option2,
			Option3:       qd.Option3,
			CorrectAnswer: qd.CorrectAnswer,
			Order:         i + 1,
		})
	}

	if v.HasErrors() {
		return Contest{}, v
	}

	terms := make([]ContestTerm, 0, len(draft.Terms))
	for i, text := range draft.Terms {
		terms = append(terms, ContestTerm{Term: text, Order: i + 1})
	}

	return Contest{
		CelebrityID: draft.CelebrityID,
		PlatformID:  draft.PlatformID,
		Title:       draft.Title,
		Description: draft.Description,
		Image:       draft.Image,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		IsActive:    true,
		MaxAttempts: draft.MaxAttempts,
		Questions:   questions,
		Terms:       terms,
	}, nil
}
