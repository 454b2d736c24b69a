package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"district-exam-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

// Store is the production app.Store backed by Postgres. The
// (user_id, exam_id) unique index makes InsertAttempt the atomic
// reserve-or-fail step of the submission flow.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetExam(ctx context.Context, id int64) (domain.Exam, error) {
	var exam domain.Exam
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, description, start_time, end_time, marks_per_question
		FROM exams WHERE id = $1
	`, id).Scan(&exam.ID, &exam.Title, &exam.Description, &exam.StartTime, &exam.EndTime, &exam.MarksPerQuestion)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	if err != nil {
		return domain.Exam{}, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

func (s *Store) ListOpenExams(ctx context.Context, now time.Time) ([]domain.Exam, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, start_time, end_time, marks_per_question
		FROM exams WHERE end_time > $1
		ORDER BY start_time ASC, id ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list open exams: %w", err)
	}
	defer rows.Close()

	var exams []domain.Exam
	for rows.Next() {
		var exam domain.Exam
		if err := rows.Scan(&exam.ID, &exam.Title, &exam.Description, &exam.StartTime, &exam.EndTime, &exam.MarksPerQuestion); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		exams = append(exams, exam)
	}
	return exams, rows.Err()
}

func (s *Store) ListQuestions(ctx context.Context, examID int64) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, exam_id, question, options
		FROM questions WHERE exam_id = $1 ORDER BY id
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Prompt, &options); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) QuestionsWithAnswers(ctx context.Context, examID int64) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, exam_id, question, options, correct_answer, explanation
		FROM questions WHERE exam_id = $1 ORDER BY id
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions with answers: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Prompt, &options, &q.CorrectAnswer, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) FindAttempt(ctx context.Context, userID, examID int64) (domain.Attempt, error) {
	var attempt domain.Attempt
	var answers []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, exam_id, answers, score, submitted_at
		FROM attempts WHERE user_id = $1 AND exam_id = $2
	`, userID, examID).Scan(&attempt.ID, &attempt.UserID, &attempt.ExamID, &answers, &attempt.Score, &attempt.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("find attempt: %w", err)
	}
	if err := json.Unmarshal(answers, &attempt.Answers); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return attempt, nil
}

func (s *Store) InsertAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("marshal answers: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO attempts (user_id, exam_id, answers, score, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, attempt.UserID, attempt.ExamID, answers, attempt.Score, attempt.SubmittedAt).Scan(&attempt.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Attempt{}, domain.ErrDuplicateAttempt
		}
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

func (s *Store) ListAttemptEntries(ctx context.Context, examID int64) ([]domain.AttemptEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.user_id, u.name, u.district, a.score, a.submitted_at
		FROM attempts a
		JOIN users u ON u.id = a.user_id
		WHERE a.exam_id = $1
		ORDER BY a.id
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempt entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AttemptEntry
	for rows.Next() {
		var entry domain.AttemptEntry
		if err := rows.Scan(&entry.UserID, &entry.Name, &entry.District, &entry.Score, &entry.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan attempt entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, name, district string) (domain.User, error) {
	user := domain.User{Name: name, District: district}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, district) VALUES ($1, $2)
		RETURNING id, created_at
	`, name, district).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, district, created_at FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.District, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountLiveTakers counts users inside at least one active window who
// have not submitted for it yet.
func (s *Store) CountLiveTakers(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT u.id)
		FROM users u
		JOIN exams e ON e.start_time <= $1 AND e.end_time > $1
		LEFT JOIN attempts a ON a.user_id = u.id AND a.exam_id = e.id
		WHERE a.id IS NULL
	`, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count live takers: %w", err)
	}
	return count, nil
}

// ImportExam inserts an exam and its questions in one transaction so the
// catalog is never visible half-built.
func (s *Store) ImportExam(ctx context.Context, imp domain.ExamImport) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	marks := imp.MarksPerQuestion
	if marks == 0 {
		marks = 1
	}

	var examID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO exams (title, description, start_time, end_time, marks_per_question)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, imp.Title, imp.Description, imp.StartTime, imp.EndTime, marks).Scan(&examID)
	if err != nil {
		return 0, fmt.Errorf("insert exam: %w", err)
	}

	for _, q := range imp.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return 0, fmt.Errorf("marshal options: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO questions (exam_id, question, options, correct_answer, explanation)
			VALUES ($1, $2, $3, $4, $5)
		`, examID, q.Prompt, options, q.CorrectAnswer, q.Explanation); err != nil {
			return 0, fmt.Errorf("insert question: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return examID, nil
}
