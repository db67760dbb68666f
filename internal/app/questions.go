package app

import (
	"context"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/pocketbase"
)

const searchPageSize = 50

func (p *Portal) GetAllQuestions(ctx context.Context, filters Filters) ([]domain.Question, error) {
	out := []domain.Question{}
	if err := p.backend.GetFullList(ctx, CollectionQuestions, pocketbase.Query{Filter: BuildFilter(filters)}, &out); err != nil {
		return nil, fail(err, domain.CodeFetchQuestionsFailed)
	}
	return out, nil
}

// GetQuizQuestions returns the questions listed on the quiz, in the quiz's
// order. A quiz without questions yields an empty list.
func (p *Portal) GetQuizQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	if !ValidID(quizID) {
		return nil, invalid(domain.CodeInvalidQuizID, "Invalid quiz ID provided for questions")
	}
	var quiz domain.Quiz
	if err := p.backend.GetOne(ctx, CollectionQuizzes, quizID, pocketbase.Query{}, &quiz); err != nil {
		return nil, fail(err, domain.CodeFetchQuizQuestionsFailed)
	}
	questions, err := p.questionsByID(ctx, quiz.QuestionsList)
	if err != nil {
		return nil, fail(err, domain.CodeFetchQuizQuestionsFailed)
	}
	return questions, nil
}

// questionsByID fetches ids and orders the result like ids. Unknown ids are
// dropped.
func (p *Portal) questionsByID(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return []domain.Question{}, nil
	}
	var found []domain.Question
	if err := p.backend.GetFullList(ctx, CollectionQuestions, pocketbase.Query{Filter: idFilter(ids)}, &found); err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]domain.Question, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok && !seen[id] {
			out = append(out, q)
			seen[id] = true
		}
	}
	return out, nil
}

func (p *Portal) GetQuestionByID(ctx context.Context, id string) (domain.Question, error) {
	if !ValidID(id) {
		return domain.Question{}, invalid(domain.CodeInvalidQuestionID, "Invalid question ID provided")
	}
	var q domain.Question
	if err := p.backend.GetOne(ctx, CollectionQuestions, id, pocketbase.Query{}, &q); err != nil {
		return domain.Question{}, fail(err, domain.CodeFetchQuestionFailed)
	}
	return q, nil
}

func (p *Portal) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	var out domain.Question
	if err := p.backend.Create(ctx, CollectionQuestions, q, &out); err != nil {
		return domain.Question{}, fail(err, domain.CodeCreateQuestionFailed)
	}
	return out, nil
}

func (p *Portal) UpdateQuestion(ctx context.Context, id string, fields Fields) (domain.Question, error) {
	if !ValidID(id) {
		return domain.Question{}, invalid(domain.CodeInvalidQuestionID, "Invalid question ID provided for update")
	}
	var out domain.Question
	if err := p.backend.Update(ctx, CollectionQuestions, id, fields, &out); err != nil {
		return domain.Question{}, fail(err, domain.CodeUpdateQuestionFailed)
	}
	return out, nil
}

func (p *Portal) DeleteQuestion(ctx context.Context, id string) error {
	if !ValidID(id) {
		return invalid(domain.CodeInvalidQuestionID, "Invalid question ID provided for delete")
	}
	if err := p.backend.Delete(ctx, CollectionQuestions, id); err != nil {
		return fail(err, domain.CodeDeleteQuestionFailed)
	}
	return nil
}

// SearchQuestions matches question text containing query, combined with
// filters, and returns the first page of 50.
func (p *Portal) SearchQuestions(ctx context.Context, query string, filters Filters) ([]domain.Question, error) {
	text := ""
	if query != "" {
		text = "question ~ " + Quote("%"+EscapeLike(query)+"%")
	}
	out := []domain.Question{}
	q := pocketbase.Query{Filter: joinFilters(text, BuildFilter(filters))}
	if _, err := p.backend.GetList(ctx, CollectionQuestions, 1, searchPageSize, q, &out); err != nil {
		return nil, fail(err, domain.CodeSearchQuestionsFailed)
	}
	return out, nil
}
