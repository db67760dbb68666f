package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

type staticQuizzes map[string]domain.Quiz

func (s staticQuizzes) GetQuiz(_ context.Context, id string) (domain.Quiz, error) {
	q, ok := s[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return q, nil
}

type mapProgress struct {
	mu    sync.Mutex
	saves int
	m     map[string]app.QuizProgress
}

func newMapProgress() *mapProgress { return &mapProgress{m: make(map[string]app.QuizProgress)} }

func (p *mapProgress) SaveProgress(_ context.Context, key string, qp app.QuizProgress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.m[key] = qp
	return nil
}

func (p *mapProgress) LoadProgress(_ context.Context, key string) (app.QuizProgress, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	qp, ok := p.m[key]
	return qp, ok, nil
}

func (p *mapProgress) DeleteProgress(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

type recordingSubmitter struct {
	quizID    string
	answers   map[string]domain.Answer
	timeTaken int
	err       error
}

func (r *recordingSubmitter) SubmitQuiz(_ context.Context, quizID string, answers map[string]domain.Answer, timeTaken int) (domain.Submission, error) {
	r.quizID, r.answers, r.timeTaken = quizID, answers, timeTaken
	if r.err != nil {
		return domain.Submission{}, r.err
	}
	return domain.Submission{ID: "s1", Quiz: quizID}, nil
}

var sampleQuiz = domain.Quiz{
	ID:              "quiz1",
	Title:           "Excel basics",
	DurationMinutes: 2,
	Questions: []domain.Question{
		{ID: "q1", QuestionType: domain.SingleChoice},
		{ID: "q2", QuestionType: domain.SingleChoice},
		{ID: "q3", QuestionType: domain.MultipleChoice},
	},
}

func TestQuizSessionNavigationIsBounded(t *testing.T) {
	s := app.NewQuizSession(clockwork.NewFakeClock(), sampleQuiz)
	assert.Equal(t, 0, s.Previous())
	assert.Equal(t, 1, s.Next())
	assert.Equal(t, 2, s.Next())
	assert.Equal(t, 2, s.Next())
	assert.Equal(t, 1, s.Previous())
}

func TestQuizSessionProgress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := app.NewQuizSession(clock, sampleQuiz)
	assert.Equal(t, "2:00", s.RemainingTime())
	assert.False(t, s.CanSubmit())

	require.NoError(t, s.SaveAnswer("q1", domain.SingleAnswer("A")))
	require.NoError(t, s.SaveAnswer("q1", domain.SingleAnswer("B")))
	assert.Equal(t, 1, s.AnsweredCount())
	assert.Equal(t, 33, s.ProgressPercentage())
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(s.SaveAnswer("nope", domain.SingleAnswer("A"))))

	require.NoError(t, s.SaveAnswer("q2", domain.SingleAnswer("A")))
	require.NoError(t, s.SaveAnswer("q3", domain.MultiAnswer("a", "b")))
	assert.True(t, s.CanSubmit())
	assert.Equal(t, 100, s.ProgressPercentage())

	clock.Advance(65 * time.Second)
	assert.Equal(t, "0:55", s.RemainingTime())
	clock.Advance(time.Hour)
	assert.Equal(t, "0:00", s.RemainingTime())

	s.Flag("q2")
	s.Flag("q2")
	assert.Equal(t, []string{"q2"}, s.Progress().Flagged)
}

func TestQuizSessionWithoutQuestions(t *testing.T) {
	s := app.NewQuizSession(clockwork.NewFakeClock(), domain.Quiz{ID: "empty"})
	assert.Equal(t, 0, s.ProgressPercentage())
	assert.False(t, s.CanSubmit())
	assert.Equal(t, 0, s.Next())
}

func TestQuizRunnerPersistsAndSubmits(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	progress := newMapProgress()
	runner := app.NewQuizRunner(staticQuizzes{"quiz1": sampleQuiz}, progress, clock, nil)

	_, err := runner.Session(ctx, "sess")
	assert.ErrorIs(t, err, domain.ErrNoActiveQuiz)
	assert.Equal(t, domain.CodeNoActiveQuiz, domain.CodeOf(err))

	_, err = runner.Start(ctx, "sess", "quiz1")
	require.NoError(t, err)
	_, err = runner.SaveAnswer(ctx, "sess", "q1", domain.SingleAnswer("A"))
	require.NoError(t, err)
	assert.Equal(t, 2, progress.saves)

	clock.Advance(42 * time.Second)
	submitter := &recordingSubmitter{err: errors.New("offline")}
	_, err = runner.Submit(ctx, "sess", submitter)
	require.Error(t, err)
	_, err = runner.Session(ctx, "sess")
	require.NoError(t, err, "failed submit keeps the attempt")

	submitter.err = nil
	sub, err := runner.Submit(ctx, "sess", submitter)
	require.NoError(t, err)
	assert.Equal(t, "s1", sub.ID)
	assert.Equal(t, "quiz1", submitter.quizID)
	assert.Equal(t, 42, submitter.timeTaken)
	assert.Equal(t, domain.SingleAnswer("A"), submitter.answers["q1"])

	_, ok, _ := progress.LoadProgress(ctx, "sess")
	assert.False(t, ok)
	_, err = runner.Session(ctx, "sess")
	assert.ErrorIs(t, err, domain.ErrNoActiveQuiz)
}

func TestQuizRunnerRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	progress := newMapProgress()
	first := app.NewQuizRunner(staticQuizzes{"quiz1": sampleQuiz}, progress, clock, nil)
	_, err := first.Start(ctx, "sess", "quiz1")
	require.NoError(t, err)
	_, err = first.SaveAnswer(ctx, "sess", "q2", domain.SingleAnswer("B"))
	require.NoError(t, err)

	second := app.NewQuizRunner(staticQuizzes{}, progress, clock, nil)
	s, err := second.Session(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, 1, s.AnsweredCount())
	assert.Equal(t, "quiz1", s.Progress().Quiz.ID)
}

func TestQuizRunnerStartValidates(t *testing.T) {
	runner := app.NewQuizRunner(staticQuizzes{}, newMapProgress(), nil, nil)
	_, err := runner.Start(context.Background(), "sess", "")
	assert.Equal(t, domain.CodeInvalidQuizID, domain.CodeOf(err))

	_, err = runner.Start(context.Background(), "sess", "missing")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestQuizRunnerUpdatePersistsNavigation(t *testing.T) {
	ctx := context.Background()
	progress := newMapProgress()
	runner := app.NewQuizRunner(staticQuizzes{"quiz1": sampleQuiz}, progress, clockwork.NewFakeClock(), nil)
	_, err := runner.Start(ctx, "sess", "quiz1")
	require.NoError(t, err)

	_, err = runner.Update(ctx, "sess", func(s *app.QuizSession) {
		s.Next()
		s.Flag("q2")
	})
	require.NoError(t, err)

	saved, ok, _ := progress.LoadProgress(ctx, "sess")
	require.True(t, ok)
	assert.Equal(t, 1, saved.CurrentIndex)
	assert.Equal(t, []string{"q2"}, saved.Flagged)

	_, err = runner.Update(ctx, "other", func(*app.QuizSession) {})
	assert.ErrorIs(t, err, domain.ErrNoActiveQuiz)
}

func TestQuizViewHidesAnswerKey(t *testing.T) {
	quiz := domain.Quiz{
		ID:              "quiz1",
		DurationMinutes: 5,
		Questions: []domain.Question{
			{ID: "q1", QuestionType: domain.SingleChoice, Answers: []string{"3", "4"}, CorrectAnswers: []string{"4"}, Explanation: "2 + 2"},
		},
	}
	s := app.NewQuizSession(clockwork.NewFakeClock(), quiz)

	view := s.View()
	require.Len(t, view.Quiz.Questions, 1)
	assert.Empty(t, view.Quiz.Questions[0].CorrectAnswers)
	assert.Empty(t, view.Quiz.Questions[0].Explanation)
	assert.Equal(t, []string{"3", "4"}, view.Quiz.Questions[0].Answers)

	assert.Equal(t, []string{"4"}, s.Progress().Quiz.Questions[0].CorrectAnswers)
	assert.Equal(t, []string{"4"}, quiz.Questions[0].CorrectAnswers)
}
