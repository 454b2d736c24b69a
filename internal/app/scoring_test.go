package app

import (
	"testing"

	"district-exam-service/internal/domain"
)

func scoringQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, CorrectAnswer: "A"},
		{ID: 2, CorrectAnswer: "B"},
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		marks   float64
		want    float64
	}{
		{"one right one wrong", []string{"A", "C"}, 2, 1.75},
		{"one right one unanswered", []string{"A", ""}, 2, 2},
		{"wrong then right", []string{"B", "B"}, 2, 1.75},
		{"all right", []string{"A", "B"}, 2, 4},
		{"all wrong", []string{"C", "C"}, 2, -0.5},
		{"all unanswered", []string{"", ""}, 2, 0},
		{"short submission treated unanswered", []string{"A"}, 2, 2},
		{"empty submission", nil, 2, 0},
		{"extra answers ignored", []string{"A", "B", "C", "D"}, 2, 4},
		{"zero marks defaults to one", []string{"A", "C"}, 0, 0.75},
		{"penalty independent of marks", []string{"C", "C"}, 10, -0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(scoringQuestions(), tc.answers, tc.marks)
			if got != tc.want {
				t.Fatalf("Score(%v, marks=%v) = %v, want %v", tc.answers, tc.marks, got, tc.want)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	answers := []string{"A", "C", ""}
	questions := []domain.Question{
		{ID: 1, CorrectAnswer: "A"},
		{ID: 2, CorrectAnswer: "B"},
		{ID: 3, CorrectAnswer: "C"},
	}
	first := Score(questions, answers, 3)
	for i := 0; i < 100; i++ {
		if got := Score(questions, answers, 3); got != first {
			t.Fatalf("score drifted on call %d: %v != %v", i, got, first)
		}
	}
}

func TestScoreMayGoNegative(t *testing.T) {
	questions := []domain.Question{
		{ID: 1, CorrectAnswer: "A"},
		{ID: 2, CorrectAnswer: "A"},
		{ID: 3, CorrectAnswer: "A"},
	}
	got := Score(questions, []string{"B", "B", "B"}, 1)
	if got != -0.75 {
		t.Fatalf("expected -0.75, got %v", got)
	}
}
