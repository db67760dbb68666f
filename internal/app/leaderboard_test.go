package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

var boardNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func userSubs(user string, scores ...int) []domain.Submission {
	out := make([]domain.Submission, len(scores))
	for i, s := range scores {
		// newest first, one hour apart
		out[i] = submission(user, s, boardNow.Add(-time.Duration(i)*time.Hour))
		out[i].Expand = &domain.SubmissionExpand{User: &domain.User{ID: user, Username: user, Name: "User " + user}}
	}
	return out
}

func TestImprovementRateUsesChronologicalHalves(t *testing.T) {
	// oldest to newest: 40 50 60 | 80 90
	subs := userSubs("u", 90, 80, 60, 50, 40)
	assert.Equal(t, 35, app.ImprovementRate(subs))
	assert.Equal(t, 0, app.ImprovementRate(subs[:4]))
}

func TestConsistency(t *testing.T) {
	assert.InDelta(t, 100.0, app.Consistency(userSubs("u", 40)), 1e-9)
	assert.InDelta(t, 100.0, app.Consistency(userSubs("u", 70, 70, 70)), 1e-9)
	assert.InDelta(t, 90.0, app.Consistency(userSubs("u", 60, 80)), 1e-9)
	assert.InDelta(t, 0.0, app.Consistency(userSubs("u", 0, 0, 300)), 1e-9)
}

func TestWeightedScore(t *testing.T) {
	row := domain.RankingRow{AverageScore: 80, TotalQuizzes: 10}
	row.UniqueQuestionsAnswered = 50
	row.AccuracyRate = 60
	assert.InDelta(t, 32+12.5+10+9, app.WeightedScore(row), 1e-9)

	capped := domain.RankingRow{AverageScore: 100, TotalQuizzes: 40}
	capped.UniqueQuestionsAnswered = 400
	capped.AccuracyRate = 100
	assert.InDelta(t, 100.0, app.WeightedScore(capped), 1e-9)
}

func TestPreferredCategoryTiesGoToLaterCategory(t *testing.T) {
	subs := []domain.Submission{
		withQuiz(submission("u", 1, boardNow), "", "excel"),
		withQuiz(submission("u", 1, boardNow), "", "python"),
		withQuiz(submission("u", 1, boardNow), "", "excel"),
		withQuiz(submission("u", 1, boardNow), "", "python"),
	}
	assert.Equal(t, "python", app.PreferredCategory(subs))
	assert.Equal(t, "excel", app.PreferredCategory(append(subs, withQuiz(submission("u", 1, boardNow), "", "excel"))))
	assert.Equal(t, "Unknown", app.PreferredCategory(userSubs("u", 10)))
}

func TestRecentActivity(t *testing.T) {
	subs := []domain.Submission{
		submission("u", 1, boardNow.Add(-time.Hour)),
		submission("u", 1, boardNow.Add(-6*24*time.Hour)),
		submission("u", 1, boardNow.Add(-8*24*time.Hour)),
	}
	assert.Equal(t, 2, app.RecentActivity(subs, boardNow))
}

func TestBoardsApplyFiltersAndLimits(t *testing.T) {
	var subs []domain.Submission
	subs = append(subs, userSubs("steady", 70, 70, 70, 70, 70, 70)...)
	subs = append(subs, userSubs("climber", 90, 90, 50, 40, 40)...)
	subs = append(subs, userSubs("once", 100)...)
	subs = append(subs, domain.Submission{User: "ghost", Score: ptr(10), Created: domain.NewDateTime(boardNow)})

	mostActive, err := app.ComputeBoard(domain.BoardMostActive, subs, boardNow)
	require.NoError(t, err)
	require.Len(t, mostActive, 4)
	assert.Equal(t, "steady", mostActive[0].UserID)
	assert.Equal(t, 1, mostActive[0].Rank)
	assert.Equal(t, "once", mostActive[2].UserID, "ties keep first-seen order")
	assert.Equal(t, "Unknown", mostActive[3].Username)
	assert.Equal(t, "Unknown User", mostActive[3].Name)

	improved, err := app.ComputeBoard(domain.BoardMostImproved, subs, boardNow)
	require.NoError(t, err)
	require.Len(t, improved, 2)
	assert.Equal(t, "climber", improved[0].UserID)

	points, err := app.ComputeBoard(domain.BoardTotalPoints, subs, boardNow)
	require.NoError(t, err)
	assert.Equal(t, "steady", points[0].UserID)
	assert.Equal(t, 420, points[0].TotalPoints)

	accuracy, err := app.ComputeBoard(domain.BoardAccuracy, subs, boardNow)
	require.NoError(t, err)
	assert.Empty(t, accuracy, "nobody attempted ten questions")

	_, err = app.ComputeBoard("fastest", subs, boardNow)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestMostActiveKeepsTopTen(t *testing.T) {
	var subs []domain.Submission
	for i := range 15 {
		subs = append(subs, userSubs(fmt.Sprintf("u%02d", i), 50)...)
	}
	all := app.ComputeAllBoards(subs, boardNow)
	assert.Len(t, all[domain.BoardMostActive], 10)
	assert.Len(t, all[domain.BoardOverall], 15)
	assert.Len(t, all[domain.BoardTotalPoints], 15)
	assert.Equal(t, 15, all[domain.BoardOverall][14].Rank)
}

func TestAccuracyBoardNeedsVolume(t *testing.T) {
	answers := func(n, correct int) []domain.SubmissionAnswer {
		out := make([]domain.SubmissionAnswer, n)
		for i := range out {
			out[i] = domain.SubmissionAnswer{QuestionID: fmt.Sprintf("q%d", i), IsCorrect: i < correct}
		}
		return out
	}
	sharp := userSubs("sharp", 90, 90, 90)
	for i := range sharp {
		sharp[i].Answers = answers(4, 4)
	}
	sloppy := userSubs("sloppy", 50, 50, 50)
	for i := range sloppy {
		sloppy[i].Answers = answers(4, 2)
	}
	few := userSubs("few", 100, 100)
	for i := range few {
		few[i].Answers = answers(10, 10)
	}

	board, err := app.ComputeBoard(domain.BoardAccuracy, append(append(sloppy, sharp...), few...), boardNow)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "sharp", board[0].UserID)
	assert.Equal(t, 100, board[0].AccuracyRate)
	assert.Equal(t, 4, board[0].UniqueQuestionsAnswered)
	assert.Equal(t, 12, board[0].TotalQuestionsAttempted)
}

func TestCategoryBoard(t *testing.T) {
	subs := []domain.Submission{
		withQuiz(submission("a", 60, boardNow), "", "excel"),
		withQuiz(submission("b", 90, boardNow), "", "excel"),
		withQuiz(submission("a", 100, boardNow), "", "python"),
	}
	board := app.CategoryBoard("excel", subs)
	require.Len(t, board, 2)
	assert.Equal(t, "b", board[0].UserID)
	assert.Equal(t, 60, board[1].AverageScore)
	assert.Equal(t, "excel", board[1].Category)
}

type stubSource struct {
	ranked   []domain.Submission
	byUser   map[string][]domain.Submission
	category string
}

func (s *stubSource) RankedSubmissions(_ context.Context, category string) ([]domain.Submission, error) {
	s.category = category
	return s.ranked, nil
}

func (s *stubSource) UserSubmissions(_ context.Context, userID string) ([]domain.Submission, error) {
	return s.byUser[userID], nil
}

func TestRankingsStudentDashboardCarriesRank(t *testing.T) {
	top := userSubs("top", 100, 100)
	low := userSubs("low", 20)
	source := &stubSource{ranked: append(low, top...), byUser: map[string][]domain.Submission{"low": low}}
	rankings := app.NewRankings(source, clockwork.NewFakeClockAt(boardNow))

	dash, err := rankings.StudentDashboard(context.Background(), "low")
	require.NoError(t, err)
	assert.Equal(t, "2", dash.Statistics.CurrentRank)
	assert.Len(t, dash.RecentResults, 1)

	pos, ok, err := rankings.UserRank(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, pos)

	_, err = rankings.Category(context.Background(), "")
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	snap, err := rankings.Category(context.Background(), "excel")
	require.NoError(t, err)
	assert.Equal(t, "excel", source.category)
	assert.Equal(t, boardNow, snap.UpdatedAt)
}
