package domain

import "time"

// Exam is a timed exam window. Questions are attached at import time and
// the exam is treated as immutable once its window opens.
type Exam struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	MarksPerQuestion float64   `json:"marksPerQuestion"` // defaults to 1 if zero
}

// Question is a single-answer MCQ belonging to one exam. Ascending ID
// defines the canonical order used for positional answer matching.
type Question struct {
	ID            int64    `json:"id"`
	ExamID        int64    `json:"examId"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// PublicQuestion is the user-safe projection served during an active
// exam: no correct answer, no explanation.
type PublicQuestion struct {
	ID      int64    `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// Attempt is a user's single scored submission for one exam. It is
// created exactly once and never mutated afterward.
type Attempt struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"userId"`
	ExamID      int64            `json:"examId"`
	Answers     map[int64]string `json:"answers"`
	Score       float64          `json:"score"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// AttemptEntry is an attempt joined with its user, as the leaderboard
// ranker consumes it.
type AttemptEntry struct {
	UserID      int64
	Name        string
	District    string
	Score       float64
	SubmittedAt time.Time
}

// LeaderboardRow is one ranked leaderboard line.
type LeaderboardRow struct {
	Rank     int     `json:"rank"`
	Name     string  `json:"name"`
	District string  `json:"district"`
	Score    float64 `json:"score"`
}

// User holds the minimal identity the engine needs as a foreign key on
// attempts and for leaderboard display.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	District  string    `json:"district"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewItem is one line of a post-exam review.
type ReviewItem struct {
	QuestionID    int64    `json:"id"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	UserAnswer    string   `json:"userAnswer,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Correct       bool     `json:"isCorrect"`
}

// Review pairs the stored (authoritative) score with the per-question
// breakdown. The score is never recomputed here.
type Review struct {
	Score     float64      `json:"score"`
	Questions []ReviewItem `json:"questions"`
}

// QuestionImport is the inbound shape for one question of an exam import.
type QuestionImport struct {
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// ExamImport is the inbound shape for an atomic exam-plus-questions import.
type ExamImport struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	StartTime        time.Time        `json:"startTime"`
	EndTime          time.Time        `json:"endTime"`
	MarksPerQuestion float64          `json:"marksPerQuestion"`
	Questions        []QuestionImport `json:"questions"`
}

// Metrics is the admin snapshot: registered users and users currently
// inside an active window without a submitted attempt.
type Metrics struct {
	TotalUsers int `json:"totalUsers"`
	LiveTakers int `json:"liveTakers"`
}
