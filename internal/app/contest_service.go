package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contest-service/internal/domain"
)

// RoleCelebrity is the only role allowed to create contests. Role assignment
// itself belongs to the external auth service; we only read the claim.
const RoleCelebrity = "celebrity"

// Identity is the authenticated caller, extracted from the bearer token by
// the transport layer.
type Identity struct {
	UserID int64
	Name   string
	Role   string
}

// ContestStore owns contest definitions and their questions and terms.
type ContestStore interface {
	// CreateContest persists the contest together with all of its questions
	// and terms atomically. A failure mid-insert must leave nothing behind.
	CreateContest(ctx context.Context, contest domain.Contest) (domain.Contest, error)
	// GetContest loads a contest with its questions (including answer keys)
	// and terms, or domain.ErrContestNotFound.
	GetContest(ctx context.Context, id int64) (domain.Contest, error)
	// ListActive returns contests that are live at the given instant.
	ListActive(ctx context.Context, now time.Time) ([]domain.Contest, error)
	// ListByCelebrity returns the celebrity's contests that have not ended yet.
	ListByCelebrity(ctx context.Context, celebrityID int64, now time.Time) ([]domain.Contest, error)
}

// ContestReader serves contest reads on the hot attempt path. The cache
// decorators (memory, Redis) satisfy this on top of a ContestStore.
type ContestReader interface {
	GetContest(ctx context.Context, id int64) (domain.Contest, error)
}

// AttemptRecord is the unit of work handed to the ledger: everything needed
// to create an attempt, record its answers and finalize the score in one
// transaction.
type AttemptRecord struct {
	UserID         int64
	ContestID      int64
	MaxAttempts    int
	TotalQuestions int
	Score          int
	CompletedAt    time.Time
	Answers        []domain.UserAnswer
}

// AttemptLedger records attempts and enforces the quota invariant. The
// quota re-check inside RecordAttempt and the insert must be serialized per
// (user, contest) by the implementation.
type AttemptLedger interface {
	CountAttempts(ctx context.Context, userID, contestID int64) (int, error)
	LatestAttempt(ctx context.Context, userID, contestID int64) (domain.Attempt, bool, error)
	// RecordAttempt atomically re-checks the quota, creates the attempt with
	// the snapshot question count, records every answer and finalizes the
	// score. Returns domain.ErrAttemptsExhausted when the quota would be
	// exceeded; any other failure rolls back the whole unit.
	RecordAttempt(ctx context.Context, rec AttemptRecord) (domain.Attempt, error)
	// ContestAttempts returns all attempts for a contest, for rankings.
	ContestAttempts(ctx context.Context, contestID int64) ([]domain.Attempt, error)
}

// WinnerPublisher hands perfect-score signals to the external notification
// component. Publishing is best-effort and never affects scoring.
type WinnerPublisher interface {
	PublishWinner(ctx context.Context, signal domain.WinnerSignal) error
}

// ContestService contains the contest and attempt use cases.
type ContestService struct {
	store         ContestStore
	reader        ContestReader
	ledger        AttemptLedger
	winners       WinnerPublisher
	results       *ResultsHub
	log           logrus.FieldLogger
	now           func() time.Time
	submitTimeout time.Duration
}

// Option tweaks a ContestService; used by tests for deterministic clocks.
type Option func(*ContestService)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *ContestService) { s.now = now }
}

// WithSubmitTimeout bounds the scoring transaction.
func WithSubmitTimeout(d time.Duration) Option {
	return func(s *ContestService) { s.submitTimeout = d }
}

func NewContestService(store ContestStore, reader ContestReader, ledger AttemptLedger, winners WinnerPublisher, log logrus.FieldLogger, opts ...Option) *ContestService {
	s := &ContestService{
		store:         store,
		reader:        reader,
		ledger:        ledger,
		winners:       winners,
		results:       NewResultsHub(),
		log:           log,
		now:           time.Now,
		submitTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateContest validates the draft, persists the contest with all questions
// and terms atomically, and returns the stored contest.
func (s *ContestService) CreateContest(ctx context.Context, ident Identity, draft domain.ContestDraft) (domain.Contest, error) {
	if ident.Role != RoleCelebrity {
		return domain.Contest{}, domain.ErrNotCelebrity
	}
	draft.CelebrityID = ident.UserID
	contest, err := domain.NewContest(draft)
	if err != nil {
		return domain.Contest{}, err
	}
	created, err := s.store.CreateContest(ctx, contest)
	if err != nil {
		return domain.Contest{}, fmt.Errorf("create contest: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"contest_id":   created.ID,
		"celebrity_id": created.CelebrityID,
		"questions":    len(created.Questions),
	}).Info("contest created")
	return created.Sanitized(), nil
}

// ActiveContests lists contests that are live right now, sanitized.
func (s *ContestService) ActiveContests(ctx context.Context) ([]domain.Contest, error) {
	contests, err := s.store.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]domain.Contest, 0, len(contests))
	for _, c := range contests {
		out = append(out, c.Sanitized())
	}
	return out, nil
}

// MyContests lists the calling celebrity's contests that have not ended yet.
func (s *ContestService) MyContests(ctx context.Context, ident Identity) ([]domain.Contest, error) {
	if ident.Role != RoleCelebrity {
		return nil, domain.ErrNotCelebrity
	}
	contests, err := s.store.ListByCelebrity(ctx, ident.UserID, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]domain.Contest, 0, len(contests))
	for _, c := range contests {
		out = append(out, c.Sanitized())
	}
	return out, nil
}

// GetContest returns a contest for display, with answer keys stripped.
func (s *ContestService) GetContest(ctx context.Context, id int64) (domain.Contest, error) {
	contest, err := s.reader.GetContest(ctx, id)
	if err != nil {
		return domain.Contest{}, err
	}
	return contest.Sanitized(), nil
}

// ContestForAttempt returns the contest together with the caller's quota
// standing. The status is computed fresh on every call.
func (s *ContestService) ContestForAttempt(ctx context.Context, userID, contestID int64) (domain.Contest, domain.UserStatus, error) {
	contest, err := s.reader.GetContest(ctx, contestID)
	if err != nil {
		return domain.Contest{}, domain.UserStatus{}, err
	}
	used, err := s.ledger.CountAttempts(ctx, userID, contestID)
	if err != nil {
		return domain.Contest{}, domain.UserStatus{}, err
	}
	status := domain.UserStatus{
		AttemptsUsed:      used,
		AttemptsRemaining: contest.MaxAttempts - used,
		CanAttempt:        contest.CanAttempt(used) && contest.IsLive(s.now()),
	}
	if last, ok, err := s.ledger.LatestAttempt(ctx, userID, contestID); err != nil {
		return domain.Contest{}, domain.UserStatus{}, err
	} else if ok {
		score, total, pct := last.Score, last.TotalQuestions, last.Percentage()
		status.LastScore, status.LastTotal, status.LastPercentage = &score, &total, &pct
	}
	return contest.Sanitized(), status, nil
}

// QuestionsForAttempt returns the sanitized question list, gated by the
// quota and the time window.
func (s *ContestService) QuestionsForAttempt(ctx context.Context, userID, contestID int64) ([]domain.Question, error) {
	contest, err := s.reader.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, contest, userID); err != nil {
		return nil, err
	}
	return contest.Sanitized().Questions, nil
}

// Submit scores a batch of answers for one attempt. The eligibility gate is
// re-run here regardless of earlier checks, the submission is validated
// before any lock is taken, and the attempt, its answers and the final score
// are committed in a single transaction.
func (s *ContestService) Submit(ctx context.Context, userID, contestID int64, answers []domain.AnswerSubmission) (domain.Attempt, []domain.AnswerResult, error) {
	if err := validateSubmission(answers); err != nil {
		return domain.Attempt{}, nil, err
	}

	contest, err := s.reader.GetContest(ctx, contestID)
	if err != nil {
		return domain.Attempt{}, nil, err
	}
	if err := s.gate(ctx, contest, userID); err != nil {
		return domain.Attempt{}, nil, err
	}

	// Any answer referencing a question outside this contest aborts the
	// whole submission before a transaction is started.
	score := 0
	results := make([]domain.AnswerResult, 0, len(answers))
	records := make([]domain.UserAnswer, 0, len(answers))
	for _, ans := range answers {
		question, ok := contest.QuestionByID(ans.QuestionID)
		if !ok {
			return domain.Attempt{}, nil, domain.ErrForeignQuestion
		}
		correct := question.IsCorrect(ans.SelectedAnswer)
		if correct {
			score++
		}
		records = append(records, domain.UserAnswer{
			QuestionID:     question.ID,
			SelectedAnswer: ans.SelectedAnswer,
			IsCorrect:      correct,
		})
		results = append(results, domain.AnswerResult{
			QuestionID:     question.ID,
			QuestionText:   question.Text,
			SelectedAnswer: ans.SelectedAnswer,
			CorrectAnswer:  question.CorrectAnswer,
			IsCorrect:      correct,
		})
	}

	txCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	attempt, err := s.ledger.RecordAttempt(txCtx, AttemptRecord{
		UserID:    userID,
		ContestID: contest.ID,
		// The quota is re-checked inside the ledger's serialized section:
		// the count above may be stale under concurrent submissions.
		MaxAttempts: contest.MaxAttempts,
		// The denominator is the full contest question count, not the
		// submitted count: partial submissions cap the achievable percentage.
		TotalQuestions: len(contest.Questions),
		Score:          score,
		CompletedAt:    s.now(),
		Answers:        records,
	})
	if err != nil {
		return domain.Attempt{}, nil, err
	}

	s.afterCommit(ctx, contest, attempt)
	return attempt, results, nil
}

// Rankings returns the contest results board: each user's best attempt,
// ordered by score, then earlier completion, then user id.
func (s *ContestService) Rankings(ctx context.Context, contestID int64) (domain.Ranking, error) {
	if _, err := s.reader.GetContest(ctx, contestID); err != nil {
		return domain.Ranking{}, err
	}
	attempts, err := s.ledger.ContestAttempts(ctx, contestID)
	if err != nil {
		return domain.Ranking{}, err
	}
	return buildRanking(contestID, attempts, s.now()), nil
}

// SubscribeResults returns a channel of ranking updates for a contest,
// seeded with the current board. The cancel function must be called.
func (s *ContestService) SubscribeResults(ctx context.Context, contestID int64) (<-chan domain.Ranking, func(), error) {
	ranking, err := s.Rankings(ctx, contestID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.results.Subscribe(contestID, ranking)
	return ch, cancel, nil
}

// gate re-evaluates eligibility. Checked on every gated operation; the
// quota denial is reported before the window denial, matching the mobile
// client's expectations.
func (s *ContestService) gate(ctx context.Context, contest domain.Contest, userID int64) error {
	used, err := s.ledger.CountAttempts(ctx, userID, contest.ID)
	if err != nil {
		return err
	}
	if !contest.CanAttempt(used) {
		return domain.ErrAttemptsExhausted
	}
	if !contest.IsLive(s.now()) {
		return domain.ErrContestNotActive
	}
	return nil
}

// afterCommit fires the decoupled post-scoring effects: the winner signal
// and the live results broadcast. Neither can fail the submission.
func (s *ContestService) afterCommit(ctx context.Context, contest domain.Contest, attempt domain.Attempt) {
	if attempt.IsWinning() {
		signal := domain.WinnerSignal{
			EventID:        uuid.NewString(),
			UserID:         attempt.UserID,
			ContestID:      contest.ID,
			ContestTitle:   contest.Title,
			Score:          attempt.Score,
			TotalQuestions: attempt.TotalQuestions,
			OccurredAt:     attempt.CompletedAt,
		}
		if err := s.winners.PublishWinner(ctx, signal); err != nil {
			s.log.WithError(err).WithField("contest_id", contest.ID).Warn("winner signal publish failed")
		}
	}

	attempts, err := s.ledger.ContestAttempts(ctx, contest.ID)
	if err != nil {
		s.log.WithError(err).WithField("contest_id", contest.ID).Warn("results broadcast skipped")
		return
	}
	s.results.Publish(contest.ID, buildRanking(contest.ID, attempts, s.now()))
}

func validateSubmission(answers []domain.AnswerSubmission) error {
	v := domain.NewValidationError()
	if len(answers) == 0 {
		v.Add("answers", "at least one answer is required")
		return v
	}
	seen := make(map[int64]bool, len(answers))
	for i, ans := range answers {
		field := fmt.Sprintf("answers.%d", i)
		if ans.QuestionID <= 0 {
			v.Add(field+".question_id", "question id is required")
		} else if seen[ans.QuestionID] {
			v.Add(field+".question_id", "duplicate question in submission")
		}
		seen[ans.QuestionID] = true
		switch ans.SelectedAnswer {
		case domain.OptionOne, domain.OptionTwo, domain.OptionThree:
		default:
			v.Add(field+".selected_answer", "selected answer must be 1, 2 or 3")
		}
	}
	if v.HasErrors() {
		return v
	}
	return nil
}
