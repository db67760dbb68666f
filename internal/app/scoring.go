package app

import (
	"math"
	"slices"

	"quiz-portal/internal/domain"
)

// ValidateAnswer reports whether answer is correct for question. Single
// choice and yes/no questions need the scalar answer to equal the first
// correct answer; multiple choice needs the same set of options.
func ValidateAnswer(question domain.Question, answer domain.Answer) bool {
	if answer.IsZero() {
		return false
	}
	switch question.QuestionType {
	case domain.SingleChoice, domain.YesNo:
		value, ok := answer.Scalar()
		return ok && len(question.CorrectAnswers) > 0 && value == question.CorrectAnswers[0]
	case domain.MultipleChoice:
		if !answer.Multi || len(answer.Values) != len(question.CorrectAnswers) {
			return false
		}
		got := slices.Clone(answer.Values)
		want := slices.Clone(question.CorrectAnswers)
		slices.Sort(got)
		slices.Sort(want)
		return slices.Equal(got, want)
	}
	return false
}

// Score is the rounded percentage of correct answers, 0 when total is 0.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return roundHalfUp(float64(correct) / float64(total) * 100)
}

// roundHalfUp rounds halves toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// roundTenth rounds to one decimal place.
func roundTenth(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}
