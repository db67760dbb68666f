package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-portal/internal/domain"
)

// Board limits and thresholds.
const (
	categoryLimit        = 5
	mostActiveLimit      = 10
	mostImprovedLimit    = 10
	totalPointsLimit     = 20
	uniqueQuestionsLimit = 20
	accuracyLimit        = 20

	improvementMinimum      = 5
	accuracyMinimumQuizzes  = 3
	accuracyMinimumAttempts = 10
)

// SubmissionSource fetches the submissions statistics are computed from.
type SubmissionSource interface {
	RankedSubmissions(ctx context.Context, category string) ([]domain.Submission, error)
	UserSubmissions(ctx context.Context, userID string) ([]domain.Submission, error)
}

type userGroup struct {
	userID   string
	username string
	name     string
	avatar   string
	subs     []domain.Submission
}

// groupByUser groups submissions per user in first-seen order.
func groupByUser(subs []domain.Submission) []*userGroup {
	index := make(map[string]*userGroup)
	var out []*userGroup
	for _, s := range subs {
		g, ok := index[s.User]
		if !ok {
			g = &userGroup{userID: s.User, username: "Unknown", name: "Unknown User"}
			if u := s.ExpandedUser(); u != nil {
				if u.Username != "" {
					g.username = u.Username
				}
				if u.Name != "" {
					g.name = u.Name
				}
				g.avatar = u.Avatar
			}
			index[s.User] = g
			out = append(out, g)
		}
		g.subs = append(g.subs, s)
	}
	return out
}

func rowOf(g *userGroup, now time.Time) domain.RankingRow {
	row := domain.RankingRow{
		UserID:           g.userID,
		Username:         g.username,
		Name:             g.name,
		Avatar:           g.avatar,
		TotalQuizzes:     len(g.subs),
		AverageScore:     Average(scoresOf(g.subs)),
		TotalPoints:      totalPoints(g.subs),
		ImprovementRate:  ImprovementRate(g.subs),
		ConsistencyScore: Consistency(g.subs),
		RecentActivity:   RecentActivity(g.subs, now),
		StudyStreak:      StudyStreak(g.subs),
		Category:         PreferredCategory(g.subs),
		QuestionMetrics:  QuestionMetricsOf(g.subs),
	}
	row.WeightedScore = WeightedScore(row)
	return row
}

// WeightedScore blends average score, activity, breadth and accuracy.
func WeightedScore(r domain.RankingRow) float64 {
	return float64(r.AverageScore)*0.4 +
		math.Min(float64(r.TotalQuizzes)/20, 1)*100*0.25 +
		math.Min(float64(r.UniqueQuestionsAnswered)/100, 1)*100*0.2 +
		float64(r.AccuracyRate)*0.15
}

// ImprovementRate compares the later chronological half of the scores with
// the earlier half. Fewer than five submissions give 0.
func ImprovementRate(subs []domain.Submission) int {
	if len(subs) < improvementMinimum {
		return 0
	}
	sorted := make([]domain.Submission, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Created.Before(sorted[j].Created.Time) })
	mid := (len(sorted) + 1) / 2
	first := Average(scoresOf(sorted[:mid]))
	second := Average(scoresOf(sorted[mid:]))
	return second - first
}

// Consistency is 100 minus the standard deviation of scores around their
// rounded mean, floored at 0. Fewer than two submissions give 100.
func Consistency(subs []domain.Submission) float64 {
	if len(subs) < 2 {
		return 100
	}
	scores := scoresOf(subs)
	mean := float64(Average(scores))
	variance := 0.0
	for _, s := range scores {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	return math.Max(0, 100-math.Sqrt(variance))
}

// RecentActivity counts submissions in the seven days before now.
func RecentActivity(subs []domain.Submission, now time.Time) int {
	n := 0
	for _, s := range subs {
		if now.Sub(s.Created.Time) < week {
			n++
		}
	}
	return n
}

// PreferredCategory is the most frequent expanded quiz category. Ties go to
// the category seen last for the first time; "Unknown" when there is none.
func PreferredCategory(subs []domain.Submission) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range subs {
		quiz := s.ExpandedQuiz()
		if quiz == nil || quiz.Category == "" {
			continue
		}
		if _, ok := counts[quiz.Category]; !ok {
			order = append(order, quiz.Category)
		}
		counts[quiz.Category]++
	}
	best := "Unknown"
	for i, c := range order {
		if i == 0 || counts[c] >= counts[best] {
			best = c
		}
	}
	return best
}

func rank(rows []domain.RankingRow, keep func(domain.RankingRow) bool, less func(a, b domain.RankingRow) bool, limit int) []domain.RankingRow {
	out := make([]domain.RankingRow, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func anyQuiz(r domain.RankingRow) bool { return r.TotalQuizzes >= 1 }

// ComputeBoard ranks users for one of the non-category boards.
func ComputeBoard(board domain.Board, subs []domain.Submission, now time.Time) ([]domain.RankingRow, error) {
	return boardOf(board, rowsOf(subs, now))
}

func rowsOf(subs []domain.Submission, now time.Time) []domain.RankingRow {
	groups := groupByUser(subs)
	rows := make([]domain.RankingRow, len(groups))
	for i, g := range groups {
		rows[i] = rowOf(g, now)
	}
	return rows
}

func boardOf(board domain.Board, rows []domain.RankingRow) ([]domain.RankingRow, error) {
	switch board {
	case domain.BoardOverall:
		return rank(rows, anyQuiz, func(a, b domain.RankingRow) bool { return a.WeightedScore > b.WeightedScore }, 0), nil
	case domain.BoardMostActive:
		return rank(rows, anyQuiz, func(a, b domain.RankingRow) bool { return a.TotalQuizzes > b.TotalQuizzes }, mostActiveLimit), nil
	case domain.BoardMostImproved:
		return rank(rows,
			func(r domain.RankingRow) bool { return r.TotalQuizzes >= improvementMinimum },
			func(a, b domain.RankingRow) bool { return a.ImprovementRate > b.ImprovementRate },
			mostImprovedLimit), nil
	case domain.BoardTotalPoints:
		return rank(rows, anyQuiz, func(a, b domain.RankingRow) bool { return a.TotalPoints > b.TotalPoints }, totalPointsLimit), nil
	case domain.BoardUniqueQuestions:
		return rank(rows, anyQuiz, func(a, b domain.RankingRow) bool {
			return a.UniqueQuestionsAnswered > b.UniqueQuestionsAnswered
		}, uniqueQuestionsLimit), nil
	case domain.BoardAccuracy:
		return rank(rows,
			func(r domain.RankingRow) bool {
				return r.TotalQuizzes >= accuracyMinimumQuizzes && r.TotalQuestionsAttempted >= accuracyMinimumAttempts
			},
			func(a, b domain.RankingRow) bool { return a.AccuracyRate > b.AccuracyRate },
			accuracyLimit), nil
	}
	return nil, domain.Errorf(domain.CodeValidation, "Unknown leaderboard %q", board)
}

// ComputeAllBoards ranks every non-category board from one fetch.
func ComputeAllBoards(subs []domain.Submission, now time.Time) map[domain.Board][]domain.RankingRow {
	rows := rowsOf(subs, now)
	out := make(map[domain.Board][]domain.RankingRow, len(domain.Boards))
	for _, b := range domain.Boards {
		out[b], _ = boardOf(b, rows)
	}
	return out
}

// CategoryBoard ranks the top five users by average score on quizzes of
// category. Submissions of other categories are ignored.
func CategoryBoard(category string, subs []domain.Submission) []domain.RankingRow {
	matching := make([]domain.Submission, 0, len(subs))
	for _, s := range subs {
		if q := s.ExpandedQuiz(); q != nil && q.Category == category {
			matching = append(matching, s)
		}
	}
	groups := groupByUser(matching)
	rows := make([]domain.RankingRow, len(groups))
	for i, g := range groups {
		rows[i] = domain.RankingRow{
			UserID:       g.userID,
			Username:     g.username,
			Name:         g.name,
			Avatar:       g.avatar,
			TotalQuizzes: len(g.subs),
			AverageScore: Average(scoresOf(g.subs)),
			Category:     category,
		}
	}
	return rank(rows, anyQuiz, func(a, b domain.RankingRow) bool { return a.AverageScore > b.AverageScore }, categoryLimit)
}

// Rankings serves leaderboards and student statistics from a submission
// source.
type Rankings struct {
	source SubmissionSource
	clock  clockwork.Clock
}

func NewRankings(source SubmissionSource, clock clockwork.Clock) *Rankings {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Rankings{source: source, clock: clock}
}

// Board fetches submissions and ranks one board.
func (r *Rankings) Board(ctx context.Context, board domain.Board) (domain.LeaderboardSnapshot, error) {
	subs, err := r.source.RankedSubmissions(ctx, "")
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	now := r.clock.Now()
	rows, err := ComputeBoard(board, subs, now)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	return domain.LeaderboardSnapshot{Board: board, Rows: rows, UpdatedAt: now}, nil
}

// Category ranks the top users of a quiz category.
func (r *Rankings) Category(ctx context.Context, category string) (domain.LeaderboardSnapshot, error) {
	if category == "" {
		return domain.LeaderboardSnapshot{}, domain.NewError(domain.CodeValidation, "Category is required")
	}
	subs, err := r.source.RankedSubmissions(ctx, category)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	return domain.LeaderboardSnapshot{
		Board:     domain.Board("category"),
		Category:  category,
		Rows:      CategoryBoard(category, subs),
		UpdatedAt: r.clock.Now(),
	}, nil
}

// All fetches once and ranks every non-category board.
func (r *Rankings) All(ctx context.Context) (map[domain.Board][]domain.RankingRow, time.Time, error) {
	subs, err := r.source.RankedSubmissions(ctx, "")
	if err != nil {
		return nil, time.Time{}, err
	}
	now := r.clock.Now()
	return ComputeAllBoards(subs, now), now, nil
}

// UserRank returns the user's 1-based position on the overall board;
// ok is false when the user is not ranked.
func (r *Rankings) UserRank(ctx context.Context, userID string) (int, bool, error) {
	snap, err := r.Board(ctx, domain.BoardOverall)
	if err != nil {
		return 0, false, err
	}
	pos, ok := RankOf(snap.Rows, userID)
	return pos, ok, nil
}

// RankOf finds userID on a ranked board.
func RankOf(rows []domain.RankingRow, userID string) (int, bool) {
	for _, row := range rows {
		if row.UserID == userID {
			return row.Rank, true
		}
	}
	return 0, false
}

// StudentDashboard bundles what the student dashboard renders.
type StudentDashboard struct {
	Statistics    domain.UserStatistics `json:"statistics"`
	RecentResults []domain.RecentResult `json:"recentResults"`
	TimeAnalytics domain.TimeAnalytics  `json:"timeAnalytics"`
}

// StudentDashboard computes a user's statistics, including the overall rank.
func (r *Rankings) StudentDashboard(ctx context.Context, userID string) (StudentDashboard, error) {
	subs, err := r.source.UserSubmissions(ctx, userID)
	if err != nil {
		return StudentDashboard{}, err
	}
	stats := CalculateUserStatistics(subs)
	if pos, ok, err := r.UserRank(ctx, userID); err != nil {
		return StudentDashboard{}, err
	} else if ok {
		stats.CurrentRank = fmt.Sprint(pos)
	}
	return StudentDashboard{
		Statistics:    stats,
		RecentResults: RecentResults(subs, recentResultsLimit),
		TimeAnalytics: TimeAnalyticsOf(subs, r.clock.Now()),
	}, nil
}
