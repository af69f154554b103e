package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contest-service/internal/app"
	"contest-service/internal/domain"
)

// Store is the Postgres implementation of app.ContestStore and
// app.AttemptLedger. All multi-row writes run in explicit transactions;
// RecordAttempt serializes the quota check per contest with a row lock.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateContest(ctx context.Context, contest domain.Contest) (domain.Contest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Contest{}, fmt.Errorf("begin create contest: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO contests (celebrity_id, platform_id, title, description, image, start_date, end_date, is_active, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		contest.CelebrityID, contest.PlatformID, contest.Title, contest.Description, contest.Image,
		contest.StartDate, contest.EndDate, contest.IsActive, contest.MaxAttempts,
	).Scan(&contest.ID, &contest.CreatedAt)
	if err != nil {
		return domain.Contest{}, fmt.Errorf("insert contest: %w", err)
	}

	for i := range contest.Questions {
		q := &contest.Questions[i]
		q.ContestID = contest.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO questions (contest_id, question_text, option_1, option_2, option_3, correct_answer, "order")
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			q.ContestID, q.Text, q.Option1, q.Option2, q.Option3, q.CorrectAnswer, q.Order,
		).Scan(&q.ID)
		if err != nil {
			return domain.Contest{}, fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	for i := range contest.Terms {
		t := &contest.Terms[i]
		t.ContestID = contest.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO contest_terms (contest_id, term, "order")
			VALUES ($1, $2, $3)
			RETURNING id`,
			t.ContestID, t.Term, t.Order,
		).Scan(&t.ID)
		if err != nil {
			return domain.Contest{}, fmt.Errorf("insert term %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Contest{}, fmt.Errorf("commit create contest: %w", err)
	}
	return contest, nil
}

func (s *Store) GetContest(ctx context.Context, id int64) (domain.Contest, error) {
	var contest domain.Contest
	err := s.pool.QueryRow(ctx, `
		SELECT id, celebrity_id, platform_id, title, description, image, start_date, end_date, is_active, max_attempts, created_at
		FROM contests WHERE id = $1`, id,
	).Scan(&contest.ID, &contest.CelebrityID, &contest.PlatformID, &contest.Title, &contest.Description,
		&contest.Image, &contest.StartDate, &contest.EndDate, &contest.IsActive, &contest.MaxAttempts, &contest.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	if err != nil {
		return domain.Contest{}, fmt.Errorf("load contest: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, contest_id, question_text, option_1, option_2, option_3, correct_answer, "order"
		FROM questions WHERE contest_id = $1 ORDER BY "order"`, id)
	if err != nil {
		return domain.Contest{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.ContestID, &q.Text, &q.Option1, &q.Option2, &q.Option3, &q.CorrectAnswer, &q.Order); err != nil {
			return domain.Contest{}, fmt.Errorf("scan question: %w", err)
		}
		contest.Questions = append(contest.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Contest{}, fmt.Errorf("iterate questions: %w", err)
	}

	termRows, err := s.pool.Query(ctx, `
		SELECT id, contest_id, term, "order"
		FROM contest_terms WHERE contest_id = $1 ORDER BY "order"`, id)
	if err != nil {
		return domain.Contest{}, fmt.Errorf("load terms: %w", err)
	}
	defer termRows.Close()
	for termRows.Next() {
		var t domain.ContestTerm
		if err := termRows.Scan(&t.ID, &t.ContestID, &t.Term, &t.Order); err != nil {
			return domain.Contest{}, fmt.Errorf("scan term: %w", err)
		}
		contest.Terms = append(contest.Terms, t)
	}
	if err := termRows.Err(); err != nil {
		return domain.Contest{}, fmt.Errorf("iterate terms: %w", err)
	}

	return contest, nil
}

func (s *Store) ListActive(ctx context.Context, now time.Time) ([]domain.Contest, error) {
	return s.listContests(ctx, `
		SELECT id, celebrity_id, platform_id, title, description, image, start_date, end_date, is_active, max_attempts, created_at
		FROM contests
		WHERE is_active AND start_date <= $1 AND end_date >= $1
		ORDER BY created_at DESC`, now)
}

func (s *Store) ListByCelebrity(ctx context.Context, celebrityID int64, now time.Time) ([]domain.Contest, error) {
	return s.listContests(ctx, `
		SELECT id, celebrity_id, platform_id, title, description, image, start_date, end_date, is_active, max_attempts, created_at
		FROM contests
		WHERE celebrity_id = $1 AND end_date >= $2
		ORDER BY created_at DESC`, celebrityID, now)
}

func (s *Store) listContests(ctx context.Context, query string, args ...interface{}) ([]domain.Contest, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	defer rows.Close()

	var out []domain.Contest
	for rows.Next() {
		var c domain.Contest
		if err := rows.Scan(&c.ID, &c.CelebrityID, &c.PlatformID, &c.Title, &c.Description,
			&c.Image, &c.StartDate, &c.EndDate, &c.IsActive, &c.MaxAttempts, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contest: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetActive flips a contest's kill-switch.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE contests SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContestNotFound
	}
	return nil
}

func (s *Store) CountAttempts(ctx context.Context, userID, contestID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM contest_attempts WHERE user_id = $1 AND contest_id = $2`,
		userID, contestID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (s *Store) LatestAttempt(ctx context.Context, userID, contestID int64) (domain.Attempt, bool, error) {
	var a domain.Attempt
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, contest_id, score, total_questions, completed_at
		FROM contest_attempts
		WHERE user_id = $1 AND contest_id = $2
		ORDER BY id DESC LIMIT 1`,
		userID, contestID,
	).Scan(&a.ID, &a.UserID, &a.ContestID, &a.Score, &a.TotalQuestions, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("latest attempt: %w", err)
	}
	return a, true, nil
}

// RecordAttempt runs the whole scoring write as one transaction. The contest
// row is locked first, so the count-then-insert cannot race with another
// submission for the same contest: the second transaction blocks on the lock
// and sees the first one's attempt when it recounts.
func (s *Store) RecordAttempt(ctx context.Context, rec app.AttemptRecord) (domain.Attempt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("begin attempt: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxAttempts int
	err = tx.QueryRow(ctx, `SELECT max_attempts FROM contests WHERE id = $1 FOR UPDATE`, rec.ContestID).Scan(&maxAttempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrContestNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("lock contest: %w", err)
	}

	var used int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM contest_attempts WHERE user_id = $1 AND contest_id = $2`,
		rec.UserID, rec.ContestID,
	).Scan(&used)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("recount attempts: %w", err)
	}
	if used >= maxAttempts {
		return domain.Attempt{}, domain.ErrAttemptsExhausted
	}

	attempt := domain.Attempt{
		UserID:         rec.UserID,
		ContestID:      rec.ContestID,
		TotalQuestions: rec.TotalQuestions,
		CompletedAt:    rec.CompletedAt,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO contest_attempts (user_id, contest_id, score, total_questions, completed_at)
		VALUES ($1, $2, 0, $3, $4)
		RETURNING id`,
		rec.UserID, rec.ContestID, rec.TotalQuestions, rec.CompletedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}

	// The INSERT..SELECT re-validates contest membership in SQL; a foreign
	// question inserts zero rows and aborts the transaction.
	for _, ans := range rec.Answers {
		tag, err := tx.Exec(ctx, `
			INSERT INTO user_answers (attempt_id, question_id, selected_answer, is_correct)
			SELECT $1, q.id, $3, $4 FROM questions q WHERE q.id = $2 AND q.contest_id = $5`,
			attempt.ID, ans.QuestionID, ans.SelectedAnswer, ans.IsCorrect, rec.ContestID)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("insert answer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Attempt{}, domain.ErrForeignQuestion
		}
	}

	if err := finalizeScore(ctx, tx, attempt.ID, rec.Score); err != nil {
		return domain.Attempt{}, err
	}
	attempt.Score = rec.Score

	if err := tx.Commit(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("commit attempt: %w", err)
	}
	return attempt, nil
}

// finalizeScore sets the attempt's score exactly once. The finalized flag
// guards against a second finalize, which would be a programming error given
// attempts are single-shot.
func finalizeScore(ctx context.Context, tx pgx.Tx, attemptID int64, score int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE contest_attempts SET score = $2, finalized = TRUE
		WHERE id = $1 AND NOT finalized`,
		attemptID, score)
	if err != nil {
		return fmt.Errorf("finalize score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScoreFinalized
	}
	return nil
}

func (s *Store) ContestAttempts(ctx context.Context, contestID int64) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, contest_id, score, total_questions, completed_at
		FROM contest_attempts WHERE contest_id = $1 ORDER BY id`, contestID)
	if err != nil {
		return nil, fmt.Errorf("contest attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.ContestID, &a.Score, &a.TotalQuestions, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
