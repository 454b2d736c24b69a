package app

import "district-exam-service/internal/domain"

// negativeMark is the fixed deduction for a wrong (but non-empty)
// answer, independent of the exam's marks-per-question.
const negativeMark = 0.25

// Score applies the marking rule positionally: answers[i] is matched
// against questions[i] in the given (ascending-ID) order. A correct
// answer earns marksPerQuestion, a wrong non-empty answer loses
// negativeMark, an empty or missing answer scores zero. Pure and
// deterministic; the result may be negative.
func Score(questions []domain.Question, answers []string, marksPerQuestion float64) float64 {
	if marksPerQuestion == 0 {
		marksPerQuestion = 1
	}

	var score float64
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		switch {
		case answers[i] == q.CorrectAnswer:
			score += marksPerQuestion
		case answers[i] != "":
			score -= negativeMark
		}
	}
	return score
}
