package app

import "campus-quiz-service/internal/domain"

// Evaluate produces the committed record for a question given the selected
// option index. A nil selection means the question was skipped and is always
// scored incorrect. Deterministic; no side effects.
func Evaluate(q domain.Question, selected *int) domain.AnswerRecord {
	record := domain.AnswerRecord{
		Question: q.Text,
		Selected: selected,
		Correct:  q.CorrectOption,
	}
	if selected != nil {
		record.IsCorrect = *selected == q.CorrectOption
	}
	return record
}
