package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"district-exam-service/internal/domain"
)

// LeaderboardLimit caps how many ranked rows a leaderboard read returns.
const LeaderboardLimit = 100

// Store abstracts persistence for exams, questions, attempts and users.
// It is the single transactional boundary the engine relies on:
// InsertAttempt must enforce (user, exam) uniqueness atomically and
// ImportExam must make all questions visible or none.
type Store interface {
	GetExam(ctx context.Context, id int64) (domain.Exam, error)
	ListOpenExams(ctx context.Context, now time.Time) ([]domain.Exam, error)
	ListQuestions(ctx context.Context, examID int64) ([]domain.Question, error)
	QuestionsWithAnswers(ctx context.Context, examID int64) ([]domain.Question, error)
	FindAttempt(ctx context.Context, userID, examID int64) (domain.Attempt, error)
	InsertAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	ListAttemptEntries(ctx context.Context, examID int64) ([]domain.AttemptEntry, error)
	CreateUser(ctx context.Context, name, district string) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	CountUsers(ctx context.Context) (int, error)
	CountLiveTakers(ctx context.Context, now time.Time) (int, error)
	ImportExam(ctx context.Context, imp domain.ExamImport) (int64, error)
}

// LeaderboardSource produces a ranked leaderboard for an exam. The
// service itself is the authoritative source; caches wrap it.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, examID int64) ([]domain.LeaderboardRow, error)
}

// ExamService runs the exam attempt lifecycle: window gating, one-shot
// submission, scoring, review and ranking.
type ExamService struct {
	store Store
	feed  *Feed
	now   func() time.Time
}

func NewExamService(store Store, feed *Feed) *ExamService {
	return NewExamServiceWithClock(store, feed, time.Now)
}

// NewExamServiceWithClock allows deterministic window decisions in tests.
func NewExamServiceWithClock(store Store, feed *Feed, now func() time.Time) *ExamService {
	return &ExamService{store: store, feed: feed, now: now}
}

// ListExams returns exams whose window has not yet closed, tagged with
// their phase, in ascending start order.
func (s *ExamService) ListExams(ctx context.Context) ([]domain.ExamView, error) {
	now := s.now()
	exams, err := s.store.ListOpenExams(ctx, now)
	if err != nil {
		return nil, err
	}
	views := make([]domain.ExamView, 0, len(exams))
	for _, exam := range exams {
		views = append(views, domain.ExamView{Exam: exam, Status: exam.PhaseOf(now)})
	}
	return views, nil
}

// GetExam returns a single exam with its phase, ended exams included.
func (s *ExamService) GetExam(ctx context.Context, examID int64) (domain.ExamView, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return domain.ExamView{}, err
	}
	return domain.ExamView{Exam: exam, Status: exam.PhaseOf(s.now())}, nil
}

// PublicQuestions serves the answer-stripped question catalog for an
// active exam. The precondition order is part of the contract: existence
// before phase, phase before duplicate attempt, so each rejection keeps
// its own user-facing reason.
func (s *ExamService) PublicQuestions(ctx context.Context, userID, examID int64) ([]domain.PublicQuestion, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	switch exam.PhaseOf(s.now()) {
	case domain.PhaseUpcoming:
		return nil, domain.ErrExamNotStarted
	case domain.PhaseEnded:
		return nil, domain.ErrExamEnded
	}

	if _, err := s.store.FindAttempt(ctx, userID, examID); err == nil {
		return nil, domain.ErrAlreadySubmitted
	} else if !errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, err
	}

	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	public := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, domain.PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
	}
	return public, nil
}

// Submit reserves the user's single attempt for an exam, scores the
// answers positionally against ascending-ID question order and persists
// the result. Scoring runs speculatively before the reservation is
// confirmed; a losing concurrent writer surfaces as ErrAlreadySubmitted.
func (s *ExamService) Submit(ctx context.Context, userID, examID int64, answers []string) (domain.Attempt, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return domain.Attempt{}, err
	}

	// Retrieval already gates the upcoming phase, but submission is a
	// separate call and must check independently.
	switch exam.PhaseOf(s.now()) {
	case domain.PhaseUpcoming:
		return domain.Attempt{}, domain.ErrExamNotStarted
	case domain.PhaseEnded:
		return domain.Attempt{}, domain.ErrExamEnded
	}

	if _, err := s.store.FindAttempt(ctx, userID, examID); err == nil {
		return domain.Attempt{}, domain.ErrAlreadySubmitted
	} else if !errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.Attempt{}, err
	}

	questions, err := s.store.QuestionsWithAnswers(ctx, examID)
	if err != nil {
		return domain.Attempt{}, err
	}

	answerMap := make(map[int64]string, len(questions))
	for i, q := range questions {
		if i < len(answers) {
			answerMap[q.ID] = answers[i]
		}
	}

	attempt := domain.Attempt{
		UserID:      userID,
		ExamID:      examID,
		Answers:     answerMap,
		Score:       Score(questions, answers, exam.MarksPerQuestion),
		SubmittedAt: s.now(),
	}

	stored, err := s.store.InsertAttempt(ctx, attempt)
	if errors.Is(err, domain.ErrDuplicateAttempt) {
		return domain.Attempt{}, domain.ErrAlreadySubmitted
	}
	if err != nil {
		return domain.Attempt{}, err
	}

	s.publishLeaderboard(ctx, examID)
	return stored, nil
}

// Review joins the stored attempt with the full question catalog. The
// stored score is authoritative and is returned as-is.
func (s *ExamService) Review(ctx context.Context, userID, examID int64) (domain.Review, error) {
	attempt, err := s.store.FindAttempt(ctx, userID, examID)
	if err != nil {
		return domain.Review{}, err
	}

	questions, err := s.store.QuestionsWithAnswers(ctx, examID)
	if err != nil {
		return domain.Review{}, err
	}

	items := make([]domain.ReviewItem, 0, len(questions))
	for _, q := range questions {
		answer := attempt.Answers[q.ID]
		items = append(items, domain.ReviewItem{
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			Options:       q.Options,
			UserAnswer:    answer,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Correct:       answer == q.CorrectAnswer,
		})
	}
	return domain.Review{Score: attempt.Score, Questions: items}, nil
}

// Leaderboard ranks all attempts for an exam: score descending, earlier
// submission first on ties, contiguous ranks 1..N, capped at
// LeaderboardLimit rows. Read-only.
func (s *ExamService) Leaderboard(ctx context.Context, examID int64) ([]domain.LeaderboardRow, error) {
	entries, err := s.store.ListAttemptEntries(ctx, examID)
	if err != nil {
		return nil, err
	}
	return rankEntries(entries, LeaderboardLimit), nil
}

// rankEntries is the pure ranking step. The sort is stable so entries
// equal in both score and timestamp keep storage order.
func rankEntries(entries []domain.AttemptEntry, limit int) []domain.LeaderboardRow {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	rows := make([]domain.LeaderboardRow, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, domain.LeaderboardRow{
			Rank:     i + 1,
			Name:     entry.Name,
			District: entry.District,
			Score:    entry.Score,
		})
	}
	return rows
}

// Register creates a user. Identity is deliberately thin: a name and a
// district, nothing more.
func (s *ExamService) Register(ctx context.Context, name, district string) (domain.User, error) {
	if strings.TrimSpace(name) == "" {
		return domain.User{}, &domain.ValidationError{Field: "name", Message: "required"}
	}
	if strings.TrimSpace(district) == "" {
		return domain.User{}, &domain.ValidationError{Field: "district", Message: "required"}
	}
	return s.store.CreateUser(ctx, name, district)
}

// Profile loads a registered user.
func (s *ExamService) Profile(ctx context.Context, userID int64) (domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// Metrics reports total users and live takers.
func (s *ExamService) Metrics(ctx context.Context) (domain.Metrics, error) {
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return domain.Metrics{}, err
	}
	live, err := s.store.CountLiveTakers(ctx, s.now())
	if err != nil {
		return domain.Metrics{}, err
	}
	return domain.Metrics{TotalUsers: total, LiveTakers: live}, nil
}

// Import validates and atomically stores an exam with its questions.
func (s *ExamService) Import(ctx context.Context, imp domain.ExamImport) (int64, error) {
	if strings.TrimSpace(imp.Title) == "" {
		return 0, &domain.ValidationError{Field: "title", Message: "required"}
	}
	if !imp.StartTime.Before(imp.EndTime) {
		return 0, &domain.ValidationError{Field: "endTime", Message: "must be after startTime"}
	}
	if imp.MarksPerQuestion < 0 {
		return 0, &domain.ValidationError{Field: "marksPerQuestion", Message: "must be positive"}
	}
	if len(imp.Questions) == 0 {
		return 0, &domain.ValidationError{Field: "questions", Message: "at least one question required"}
	}
	for _, q := range imp.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return 0, &domain.ValidationError{Field: "questions", Message: "question prompt required"}
		}
		if len(q.Options) < 2 {
			return 0, &domain.ValidationError{Field: "questions", Message: "at least two options required"}
		}
		if !containsOption(q.Options, q.CorrectAnswer) {
			return 0, &domain.ValidationError{Field: "questions", Message: "correct answer must be one of the options"}
		}
	}
	return s.store.ImportExam(ctx, imp)
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}

// publishLeaderboard pushes a fresh ranking to live subscribers after a
// persisted attempt. Best effort; a failed read never fails the submit.
func (s *ExamService) publishLeaderboard(ctx context.Context, examID int64) {
	if s.feed == nil {
		return
	}
	rows, err := s.Leaderboard(ctx, examID)
	if err != nil {
		return
	}
	s.feed.Publish(examID, rows)
}
