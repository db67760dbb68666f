package app

import (
	"sort"
	"strings"
	"time"

	"quiz-portal/internal/domain"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day

	recentResultsLimit = 5
	mostActiveHours    = 3
	trendWindow        = 5
	trendMinimum       = 10
)

// trackedCategories are the categories the student dashboard charts.
var trackedCategories = []string{"excel", "python", "pandas"}

// Average is the rounded mean, 0 for no values.
func Average(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return roundHalfUp(float64(sum) / float64(len(values)))
}

func scoresOf(subs []domain.Submission) []int {
	out := make([]int, len(subs))
	for i, s := range subs {
		out[i] = s.ScoreValue()
	}
	return out
}

func totalPoints(subs []domain.Submission) int {
	sum := 0
	for _, s := range subs {
		sum += s.ScoreValue()
	}
	return sum
}

// QuestionMetricsOf counts per-question outcomes recorded on submissions.
func QuestionMetricsOf(subs []domain.Submission) domain.QuestionMetrics {
	unique := make(map[string]struct{})
	var m domain.QuestionMetrics
	for _, s := range subs {
		for _, a := range s.Answers {
			if a.QuestionID == "" {
				continue
			}
			unique[a.QuestionID] = struct{}{}
			m.TotalQuestionsAttempted++
			if a.IsCorrect {
				m.CorrectAnswers++
			}
		}
	}
	m.UniqueQuestionsAnswered = len(unique)
	m.AccuracyRate = Score(m.CorrectAnswers, m.TotalQuestionsAttempted)
	return m
}

// CalculateUserStatistics summarises a user's submissions, newest first.
// CurrentRank stays "N/A"; the rank comes from the overall leaderboard.
func CalculateUserStatistics(subs []domain.Submission) domain.UserStatistics {
	stats := domain.UserStatistics{
		CurrentRank:    "N/A",
		CategoryScores: CategoryPerformance(subs),
	}
	if len(subs) == 0 {
		return stats
	}
	scores := scoresOf(subs)
	stats.TotalQuizzes = len(subs)
	stats.AverageScore = Average(scores)
	stats.BestScore = scores[0]
	seconds := 0
	for i, s := range subs {
		if scores[i] > stats.BestScore {
			stats.BestScore = scores[i]
		}
		seconds += s.Duration
	}
	stats.TotalTime = roundTenth(float64(seconds) / 3600)
	stats.TotalPoints = totalPoints(subs)
	stats.QuestionMetrics = QuestionMetricsOf(subs)
	stats.ImprovementTrend = ImprovementTrend(subs)
	stats.StudyStreak = StudyStreak(subs)
	return stats
}

// CategoryPerformance averages scores per tracked category, matched
// case-insensitively on the expanded quiz.
func CategoryPerformance(subs []domain.Submission) domain.CategoryScores {
	buckets := make(map[string][]int, len(trackedCategories))
	for _, c := range trackedCategories {
		buckets[c] = nil
	}
	for _, s := range subs {
		quiz := s.ExpandedQuiz()
		if quiz == nil || quiz.Category == "" {
			continue
		}
		c := strings.ToLower(quiz.Category)
		if _, ok := buckets[c]; ok {
			buckets[c] = append(buckets[c], s.ScoreValue())
		}
	}
	out := make(domain.CategoryScores, len(buckets))
	for c, scores := range buckets {
		out[c] = Average(scores)
	}
	return out
}

// ImprovementTrend compares the newest five scores with the oldest five.
// Fewer than ten submissions give 0.
func ImprovementTrend(subs []domain.Submission) int {
	if len(subs) < trendMinimum {
		return 0
	}
	newest := Average(scoresOf(subs[:trendWindow]))
	oldest := Average(scoresOf(subs[len(subs)-trendWindow:]))
	return roundHalfUp(float64(newest - oldest))
}

// StudyStreak counts consecutive UTC days with a submission, walking back
// from the latest such day. Any submission at all makes a streak of 1.
func StudyStreak(subs []domain.Submission) int {
	if len(subs) == 0 {
		return 0
	}
	seen := make(map[time.Time]struct{}, len(subs))
	days := make([]time.Time, 0, len(subs))
	for _, s := range subs {
		d := s.Created.UTC().Truncate(day)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	streak := 1
	for i := len(days) - 1; i > 0; i-- {
		if days[i].Sub(days[i-1]) != day {
			break
		}
		streak++
	}
	return streak
}

// RecentResults maps the first limit submissions to dashboard rows.
func RecentResults(subs []domain.Submission, limit int) []domain.RecentResult {
	if limit <= 0 {
		limit = recentResultsLimit
	}
	if len(subs) < limit {
		limit = len(subs)
	}
	out := make([]domain.RecentResult, 0, limit)
	for _, s := range subs[:limit] {
		r := domain.RecentResult{
			ID:       s.ID,
			QuizName: "Unknown Quiz",
			Category: "Unknown",
			Score:    s.ScoreValue(),
			Date:     s.Created,
		}
		if quiz := s.ExpandedQuiz(); quiz != nil {
			if quiz.Title != "" {
				r.QuizName = quiz.Title
			}
			if quiz.Category != "" {
				r.Category = quiz.Category
			}
		}
		out = append(out, r)
	}
	return out
}

// TimeAnalyticsOf summarises study time relative to now.
func TimeAnalyticsOf(subs []domain.Submission, now time.Time) domain.TimeAnalytics {
	ta := domain.TimeAnalytics{MostActiveHours: []int{}}
	if len(subs) == 0 {
		return ta
	}
	seconds := 0
	var hours [24]int
	for _, s := range subs {
		seconds += s.Duration
		age := now.Sub(s.Created.Time)
		if age < day {
			ta.StudyFrequency.Daily++
		}
		if age < week {
			ta.StudyFrequency.Weekly++
		}
		if age < month {
			ta.StudyFrequency.Monthly++
		}
		if !s.Created.IsZero() {
			hours[s.Created.UTC().Hour()]++
		}
	}
	ta.TotalStudyTime = roundTenth(float64(seconds) / 3600)
	ta.AverageTimePerQuiz = roundHalfUp(float64(seconds) / float64(len(subs)) / 60)
	ta.MostActiveHours = busiestHours(hours, mostActiveHours)
	return ta
}

// busiestHours returns up to n hours with submissions, busiest first and
// earlier hours first on ties.
func busiestHours(counts [24]int, n int) []int {
	hours := make([]int, 0, 24)
	for h, c := range counts {
		if c > 0 {
			hours = append(hours, h)
		}
	}
	sort.SliceStable(hours, func(i, j int) bool { return counts[hours[i]] > counts[hours[j]] })
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}
