package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"district-exam-service/internal/domain"
)

type attemptKey struct {
	userID int64
	examID int64
}

// Store is an in-memory implementation of app.Store, used in tests and
// when the service runs without Postgres. The mutex serializes the
// reserve-or-fail attempt insert, giving the same exactly-once guarantee
// the SQL unique constraint provides.
type Store struct {
	mu        sync.RWMutex
	exams     map[int64]domain.Exam
	questions map[int64][]domain.Question // by exam, ascending ID
	attempts  map[attemptKey]domain.Attempt
	users     map[int64]domain.User
	nextExam  int64
	nextQn    int64
	nextUser  int64
	nextAtt   int64
}

func NewStore() *Store {
	return &Store{
		exams:     make(map[int64]domain.Exam),
		questions: make(map[int64][]domain.Question),
		attempts:  make(map[attemptKey]domain.Attempt),
		users:     make(map[int64]domain.User),
	}
}

func (s *Store) GetExam(_ context.Context, id int64) (domain.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exam, ok := s.exams[id]
	if !ok {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	return exam, nil
}

func (s *Store) ListOpenExams(_ context.Context, now time.Time) ([]domain.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exams := make([]domain.Exam, 0, len(s.exams))
	for _, exam := range s.exams {
		if exam.EndTime.After(now) {
			exams = append(exams, exam)
		}
	}
	sort.Slice(exams, func(i, j int) bool {
		if !exams[i].StartTime.Equal(exams[j].StartTime) {
			return exams[i].StartTime.Before(exams[j].StartTime)
		}
		return exams[i].ID < exams[j].ID
	})
	return exams, nil
}

func (s *Store) ListQuestions(ctx context.Context, examID int64) ([]domain.Question, error) {
	full, err := s.QuestionsWithAnswers(ctx, examID)
	if err != nil {
		return nil, err
	}
	stripped := make([]domain.Question, len(full))
	for i, q := range full {
		q.CorrectAnswer = ""
		q.Explanation = ""
		stripped[i] = q
	}
	return stripped, nil
}

func (s *Store) QuestionsWithAnswers(_ context.Context, examID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions := make([]domain.Question, len(s.questions[examID]))
	copy(questions, s.questions[examID])
	return questions, nil
}

func (s *Store) FindAttempt(_ context.Context, userID, examID int64) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptKey{userID: userID, examID: examID}]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *Store) InsertAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey{userID: attempt.UserID, examID: attempt.ExamID}
	if _, exists := s.attempts[key]; exists {
		return domain.Attempt{}, domain.ErrDuplicateAttempt
	}
	s.nextAtt++
	attempt.ID = s.nextAtt
	s.attempts[key] = attempt
	return attempt, nil
}

func (s *Store) ListAttemptEntries(_ context.Context, examID int64) ([]domain.AttemptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.AttemptEntry, 0)
	// Attempt ID order keeps the result deterministic for tied rows.
	attempts := make([]domain.Attempt, 0, len(s.attempts))
	for _, attempt := range s.attempts {
		if attempt.ExamID == examID {
			attempts = append(attempts, attempt)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].ID < attempts[j].ID })
	for _, attempt := range attempts {
		user := s.users[attempt.UserID]
		entries = append(entries, domain.AttemptEntry{
			UserID:      attempt.UserID,
			Name:        user.Name,
			District:    user.District,
			Score:       attempt.Score,
			SubmittedAt: attempt.SubmittedAt,
		})
	}
	return entries, nil
}

func (s *Store) CreateUser(_ context.Context, name, district string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	user := domain.User{ID: s.nextUser, Name: name, District: district, CreatedAt: time.Now()}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) CountLiveTakers(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live := 0
	for _, user := range s.users {
		for _, exam := range s.exams {
			if exam.PhaseOf(now) != domain.PhaseActive {
				continue
			}
			if _, done := s.attempts[attemptKey{userID: user.ID, examID: exam.ID}]; !done {
				live++
				break
			}
		}
	}
	return live, nil
}

func (s *Store) ImportExam(_ context.Context, imp domain.ExamImport) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExam++
	marks := imp.MarksPerQuestion
	if marks == 0 {
		marks = 1
	}
	exam := domain.Exam{
		ID:               s.nextExam,
		Title:            imp.Title,
		Description:      imp.Description,
		StartTime:        imp.StartTime,
		EndTime:          imp.EndTime,
		MarksPerQuestion: marks,
	}
	questions := make([]domain.Question, 0, len(imp.Questions))
	for _, q := range imp.Questions {
		s.nextQn++
		questions = append(questions, domain.Question{
			ID:            s.nextQn,
			ExamID:        exam.ID,
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}
	s.exams[exam.ID] = exam
	s.questions[exam.ID] = questions
	return exam.ID, nil
}
