package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/pocketbase"
)

const availablePageSize = 50

// GetAllQuizzes lists active quizzes, or every quiz with includeInactive.
func (p *Portal) GetAllQuizzes(ctx context.Context, includeInactive bool) ([]domain.Quiz, error) {
	if !p.backend.AuthStore().IsValid() {
		return nil, invalid(domain.CodeAuthRequired, domain.ErrNotAuthenticated.Error())
	}
	q := pocketbase.Query{}
	if !includeInactive {
		q.Filter = "is_active = true"
	}
	out := []domain.Quiz{}
	if err := p.backend.GetFullList(ctx, CollectionQuizzes, q, &out); err != nil {
		return nil, fail(err, domain.CodeFetchQuizzesFailed)
	}
	return out, nil
}

func (p *Portal) GetQuizByID(ctx context.Context, id string, expand ...string) (domain.Quiz, error) {
	if !ValidID(id) {
		return domain.Quiz{}, invalid(domain.CodeInvalidQuizID, "Invalid quiz ID provided")
	}
	var quiz domain.Quiz
	if err := p.backend.GetOne(ctx, CollectionQuizzes, id, pocketbase.Query{Expand: expand}, &quiz); err != nil {
		return domain.Quiz{}, fail(err, domain.CodeFetchQuizFailed)
	}
	return quiz, nil
}

func (p *Portal) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	quiz.Questions = nil
	var out domain.Quiz
	if err := p.backend.Create(ctx, CollectionQuizzes, quiz, &out); err != nil {
		return domain.Quiz{}, fail(err, domain.CodeCreateQuizFailed)
	}
	return out, nil
}

func (p *Portal) UpdateQuiz(ctx context.Context, id string, fields Fields) (domain.Quiz, error) {
	if !ValidID(id) {
		return domain.Quiz{}, invalid(domain.CodeInvalidQuizID, "Invalid quiz ID provided for update")
	}
	var out domain.Quiz
	if err := p.backend.Update(ctx, CollectionQuizzes, id, fields, &out); err != nil {
		return domain.Quiz{}, fail(err, domain.CodeUpdateQuizFailed)
	}
	return out, nil
}

func (p *Portal) DeleteQuiz(ctx context.Context, id string) error {
	if !ValidID(id) {
		return invalid(domain.CodeInvalidQuizID, "Invalid quiz ID provided for delete")
	}
	if err := p.backend.Delete(ctx, CollectionQuizzes, id); err != nil {
		return fail(err, domain.CodeDeleteQuizFailed)
	}
	return nil
}

// GetAvailableQuizzes returns the first 50 active quizzes.
func (p *Portal) GetAvailableQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	if !p.backend.AuthStore().IsValid() {
		return nil, invalid(domain.CodeAuthRequired, domain.ErrNotAuthenticated.Error())
	}
	out := []domain.Quiz{}
	q := pocketbase.Query{Filter: "is_active = true"}
	if _, err := p.backend.GetList(ctx, CollectionQuizzes, 1, availablePageSize, q, &out); err != nil {
		return nil, fail(err, domain.CodeFetchAvailableQuizzes)
	}
	return out, nil
}

// LoadQuiz returns the quiz with its questions expanded in list order. It
// maps a missing quiz to domain.ErrQuizNotFound so caches can tell it apart.
func (p *Portal) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := p.GetQuizByID(ctx, quizID)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Status == 404 {
			de.Err = domain.ErrQuizNotFound
		}
		return domain.Quiz{}, err
	}
	questions, err := p.questionsByID(ctx, quiz.QuestionsList)
	if err != nil {
		return domain.Quiz{}, fail(err, domain.CodeFetchQuizQuestionsFailed)
	}
	quiz.Questions = questions
	return quiz, nil
}

// QuizConfig describes a generated quiz.
type QuizConfig struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Difficulty      string `json:"difficulty"`
	QuestionCount   int    `json:"questionCount"`
	DurationMinutes int    `json:"durationMinutes"`
}

// GenerateDynamicQuiz draws QuestionCount random questions matching the
// category and difficulty and stores them as a new active quiz. Fewer
// matches than requested yield a shorter quiz.
func (p *Portal) GenerateDynamicQuiz(ctx context.Context, cfg QuizConfig) (domain.Quiz, error) {
	if cfg.QuestionCount <= 0 {
		return domain.Quiz{}, invalid(domain.CodeValidation, "Question count must be greater than zero")
	}
	var pool []domain.Question
	q := pocketbase.Query{Filter: BuildFilter(Filters{"category": cfg.Category, "difficulty": cfg.Difficulty})}
	if err := p.backend.GetFullList(ctx, CollectionQuestions, q, &pool); err != nil {
		return domain.Quiz{}, fail(err, domain.CodeGenerateQuizFailed)
	}
	if len(pool) == 0 {
		return domain.Quiz{}, invalid(domain.CodeGenerateQuizFailed, "No questions match the requested criteria")
	}

	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > cfg.QuestionCount {
		pool = pool[:cfg.QuestionCount]
	}
	ids := make([]string, len(pool))
	for i, q := range pool {
		ids[i] = q.ID
	}

	quiz := domain.Quiz{
		Title:           cfg.Title,
		Description:     cfg.Description,
		Category:        cfg.Category,
		DurationMinutes: cfg.DurationMinutes,
		IsActive:        true,
		QuestionsList:   ids,
	}
	if quiz.Title == "" {
		quiz.Title = "Dynamic Quiz"
		if cfg.Category != "" {
			quiz.Title = fmt.Sprintf("%s Quiz", cfg.Category)
		}
	}
	if quiz.DurationMinutes <= 0 {
		quiz.DurationMinutes = len(ids)
	}

	var created domain.Quiz
	if err := p.backend.Create(ctx, CollectionQuizzes, quiz, &created); err != nil {
		return domain.Quiz{}, fail(err, domain.CodeGenerateQuizFailed)
	}
	created.Questions = pool
	return created, nil
}
