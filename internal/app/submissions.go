package app

import (
	"context"
	"sort"
	"time"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/pocketbase"
)

const (
	defaultSubmissionLimit = 10
	passMark               = 60
)

// SubmitQuiz scores answers against the answered questions and stores a
// completed submission for the current user. timeTaken is in seconds.
func (p *Portal) SubmitQuiz(ctx context.Context, quizID string, answers map[string]domain.Answer, timeTaken int) (domain.Submission, error) {
	if !ValidID(quizID) {
		return domain.Submission{}, invalid(domain.CodeInvalidQuizID, "Invalid quiz ID provided for submission")
	}
	user := p.CurrentUser()
	if user == nil || user.ID == "" {
		return domain.Submission{}, invalid(domain.CodeAuthRequired, domain.ErrNotAuthenticated.Error())
	}

	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var questions []domain.Question
	if len(ids) > 0 {
		if err := p.backend.GetFullList(ctx, CollectionQuestions, pocketbase.Query{Filter: idFilter(ids)}, &questions); err != nil {
			return domain.Submission{}, fail(err, domain.CodeSubmitQuizFailed)
		}
	}

	correct, total := 0, len(answers)
	results := make([]domain.SubmissionAnswer, 0, len(questions))
	if len(questions) > 0 {
		total = len(questions)
		for _, q := range questions {
			ok := ValidateAnswer(q, answers[q.ID])
			if ok {
				correct++
			}
			results = append(results, domain.SubmissionAnswer{QuestionID: q.ID, IsCorrect: ok})
		}
	} else if len(answers) > 0 {
		p.logger.WarnContext(ctx, "no questions found for submitted answers", "quiz", quizID, "answers", len(answers))
	}
	score := Score(correct, total)

	if timeTaken < 0 {
		timeTaken = 0
	}
	now := p.clock.Now().UTC()
	payload := domain.Submission{
		User:           user.ID,
		Quiz:           quizID,
		Score:          &score,
		TotalQuestions: total,
		StartedAt:      domain.NewDateTime(now.Add(-time.Duration(timeTaken) * time.Second)),
		CompletedAt:    domain.NewDateTime(now),
		Status:         "completed",
		AttemptNumber:  p.nextAttempt(ctx, user.ID, quizID),
		SubmissionType: "normal",
		SubmissionData: &domain.SubmissionData{
			QuizID:         quizID,
			Answers:        answers,
			TimeTaken:      timeTaken,
			Score:          score,
			CorrectAnswers: correct,
			TotalQuestions: total,
		},
		Answers:  results,
		Duration: timeTaken,
	}

	var created domain.Submission
	if err := p.backend.Create(ctx, CollectionSubmissions, payload, &created); err != nil {
		return domain.Submission{}, fail(err, domain.CodeSubmitQuizFailed)
	}
	if created.Quiz == "" {
		return domain.Submission{}, invalid(domain.CodeSubmissionCreationFailed, "Submission created but missing quiz reference")
	}
	if created.Score == nil {
		p.logger.WarnContext(ctx, "created submission has no score", "submission", created.ID)
	}
	return created, nil
}

// nextAttempt counts earlier submissions of the quiz by the user. A failed
// count falls back to the first attempt.
func (p *Portal) nextAttempt(ctx context.Context, userID, quizID string) int {
	q := pocketbase.Query{Filter: joinFilters("user = "+Quote(userID), "quiz = "+Quote(quizID)), Fields: "id"}
	var items []struct{}
	meta, err := p.backend.GetList(ctx, CollectionSubmissions, 1, 1, q, &items)
	if err != nil {
		p.logger.WarnContext(ctx, "count previous attempts", "quiz", quizID, "error", err)
		return 1
	}
	return meta.TotalItems + 1
}

// GetUserSubmissions returns the newest limit submissions of a user; limit
// defaults to 10.
func (p *Portal) GetUserSubmissions(ctx context.Context, userID string, limit int) ([]domain.Submission, error) {
	if !ValidID(userID) {
		return nil, invalid(domain.CodeInvalidUserID, "Invalid user ID provided for submissions")
	}
	if limit <= 0 {
		limit = defaultSubmissionLimit
	}
	out := []domain.Submission{}
	q := pocketbase.Query{Filter: "user = " + Quote(userID), Sort: "-created"}
	if _, err := p.backend.GetList(ctx, CollectionSubmissions, 1, limit, q, &out); err != nil {
		return nil, fail(err, domain.CodeFetchUserSubmissions)
	}
	return out, nil
}

// UserSubmissions returns every submission of a user with the quiz
// expanded, newest first.
func (p *Portal) UserSubmissions(ctx context.Context, userID string) ([]domain.Submission, error) {
	if !ValidID(userID) {
		return nil, invalid(domain.CodeInvalidUserID, "Invalid user ID provided for submissions")
	}
	out := []domain.Submission{}
	q := pocketbase.Query{Filter: "user = " + Quote(userID), Expand: []string{"quiz"}, Sort: "-created"}
	if err := p.backend.GetFullList(ctx, CollectionSubmissions, q, &out); err != nil {
		return nil, fail(err, domain.CodeFetchUserSubmissions)
	}
	return out, nil
}

// RankedSubmissions returns submissions with user and quiz expanded, newest
// first, optionally restricted to a quiz category.
func (p *Portal) RankedSubmissions(ctx context.Context, category string) ([]domain.Submission, error) {
	q := pocketbase.Query{Expand: []string{"user", "quiz"}, Sort: "-created"}
	if category != "" {
		q.Filter = "quiz.category = " + Quote(category)
	}
	out := []domain.Submission{}
	if err := p.backend.GetFullList(ctx, CollectionSubmissions, q, &out); err != nil {
		return nil, fail(err, domain.CodeFetchAllSubmissionsFailed)
	}
	return out, nil
}

func (p *Portal) GetSubmissionByID(ctx context.Context, id string) (domain.Submission, error) {
	if !ValidID(id) {
		return domain.Submission{}, invalid(domain.CodeInvalidSubmissionID, "Invalid submission ID provided")
	}
	var sub domain.Submission
	if err := p.backend.GetOne(ctx, CollectionSubmissions, id, pocketbase.Query{}, &sub); err != nil {
		return domain.Submission{}, fail(err, domain.CodeFetchSubmissionFailed)
	}
	if sub.Quiz == "" {
		return domain.Submission{}, invalid(domain.CodeCorruptedSubmission, "Submission data corrupted: missing quiz reference")
	}
	if sub.User == "" {
		return domain.Submission{}, invalid(domain.CodeCorruptedSubmission, "Submission data corrupted: missing user reference")
	}
	return sub, nil
}

func (p *Portal) GetAllSubmissions(ctx context.Context, filters Filters) ([]domain.Submission, error) {
	out := []domain.Submission{}
	if err := p.backend.GetFullList(ctx, CollectionSubmissions, pocketbase.Query{Filter: BuildFilter(filters)}, &out); err != nil {
		return nil, fail(err, domain.CodeFetchAllSubmissionsFailed)
	}
	return out, nil
}

// GetQuizStatistics summarises every submission of a quiz.
func (p *Portal) GetQuizStatistics(ctx context.Context, quizID string) (domain.QuizStatistics, error) {
	if !ValidID(quizID) {
		return domain.QuizStatistics{}, invalid(domain.CodeInvalidQuizID, "Invalid quiz ID provided")
	}
	var subs []domain.Submission
	q := pocketbase.Query{Filter: "quiz = " + Quote(quizID), Fields: "user,score,duration"}
	if err := p.backend.GetFullList(ctx, CollectionSubmissions, q, &subs); err != nil {
		return domain.QuizStatistics{}, fail(err, domain.CodeFetchQuizStatistics)
	}
	return QuizStatisticsOf(quizID, subs), nil
}

// QuizStatisticsOf aggregates submissions of one quiz. Passing means a score
// of at least 60.
func QuizStatisticsOf(quizID string, subs []domain.Submission) domain.QuizStatistics {
	stats := domain.QuizStatistics{QuizID: quizID, Attempts: len(subs)}
	if len(subs) == 0 {
		return stats
	}
	users := make(map[string]struct{}, len(subs))
	scores := make([]int, len(subs))
	passed, seconds := 0, 0
	stats.LowestScore = subs[0].ScoreValue()
	for i, s := range subs {
		score := s.ScoreValue()
		scores[i] = score
		users[s.User] = struct{}{}
		if score > stats.BestScore {
			stats.BestScore = score
		}
		if score < stats.LowestScore {
			stats.LowestScore = score
		}
		if score >= passMark {
			passed++
		}
		seconds += s.Duration
	}
	stats.UniqueUsers = len(users)
	stats.AverageScore = Average(scores)
	stats.PassRate = Score(passed, len(subs))
	stats.AverageTime = roundTenth(float64(seconds) / float64(len(subs)) / 60)
	return stats
}
