package domain

import "time"

// Board names the leaderboards the dashboards render.
type Board string

const (
	BoardOverall         Board = "overall"
	BoardMostActive      Board = "most-active"
	BoardMostImproved    Board = "most-improved"
	BoardTotalPoints     Board = "total-points"
	BoardUniqueQuestions Board = "unique-questions"
	BoardAccuracy        Board = "accuracy"
)

// Boards lists every board that is not category scoped.
var Boards = []Board{BoardOverall, BoardMostActive, BoardMostImproved, BoardTotalPoints, BoardUniqueQuestions, BoardAccuracy}

// QuestionMetrics counts per-question outcomes across submissions.
type QuestionMetrics struct {
	UniqueQuestionsAnswered int `json:"uniqueQuestionsAnswered"`
	TotalQuestionsAttempted int `json:"totalQuestionsAttempted"`
	CorrectAnswers          int `json:"correctAnswers"`
	AccuracyRate            int `json:"accuracyRate"`
}

// RankingRow is one user's line on a leaderboard. Fields that a board does
// not compute stay zero.
type RankingRow struct {
	Rank             int     `json:"rank"`
	UserID           string  `json:"userId"`
	Username         string  `json:"username"`
	Name             string  `json:"name"`
	Avatar           string  `json:"avatar,omitempty"`
	TotalQuizzes     int     `json:"totalQuizzes"`
	AverageScore     int     `json:"averageScore"`
	TotalPoints      int     `json:"totalPoints"`
	ImprovementRate  int     `json:"improvementRate"`
	ConsistencyScore float64 `json:"consistencyScore"`
	RecentActivity   int     `json:"recentActivity"`
	StudyStreak      int     `json:"studyStreak"`
	Category         string  `json:"category,omitempty"`
	WeightedScore    float64 `json:"weightedScore"`
	QuestionMetrics
}

// LeaderboardSnapshot is a computed board at a point in time.
type LeaderboardSnapshot struct {
	Board     Board        `json:"board"`
	Category  string       `json:"category,omitempty"`
	Rows      []RankingRow `json:"rows"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// CategoryScores maps a lower-cased quiz category to its average score.
type CategoryScores map[string]int

// UserStatistics is the student dashboard summary.
type UserStatistics struct {
	TotalQuizzes     int            `json:"totalQuizzes"`
	AverageScore     int            `json:"averageScore"`
	BestScore        int            `json:"bestScore"`
	TotalTime        float64        `json:"totalTime"` // hours
	CurrentRank      string         `json:"currentRank"`
	CategoryScores   CategoryScores `json:"categoryScores"`
	ImprovementTrend int            `json:"improvementTrend"`
	StudyStreak      int            `json:"studyStreak"`
	TotalPoints      int            `json:"totalPoints"`
	QuestionMetrics
}

// RecentResult is a row of the recent results widget.
type RecentResult struct {
	ID       string   `json:"id"`
	QuizName string   `json:"quizName"`
	Category string   `json:"category"`
	Score    int      `json:"score"`
	Date     DateTime `json:"date"`
}

// StudyFrequency counts submissions inside rolling windows.
type StudyFrequency struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// TimeAnalytics summarises study time.
type TimeAnalytics struct {
	TotalStudyTime     float64        `json:"totalStudyTime"`     // hours
	AverageTimePerQuiz int            `json:"averageTimePerQuiz"` // minutes
	MostActiveHours    []int          `json:"mostActiveHours"`
	StudyFrequency     StudyFrequency `json:"studyFrequency"`
}

// QuizStatistics summarises every attempt on one quiz.
type QuizStatistics struct {
	QuizID       string  `json:"quizId"`
	Attempts     int     `json:"attempts"`
	UniqueUsers  int     `json:"uniqueUsers"`
	AverageScore int     `json:"averageScore"`
	BestScore    int     `json:"bestScore"`
	LowestScore  int     `json:"lowestScore"`
	PassRate     int     `json:"passRate"`
	AverageTime  float64 `json:"averageTime"` // minutes
}

// AdminDashboard is the admin overview.
type AdminDashboard struct {
	Users           int          `json:"users"`
	UsersByRole     map[Role]int `json:"usersByRole"`
	Quizzes         int          `json:"quizzes"`
	ActiveQuizzes   int          `json:"activeQuizzes"`
	Questions       int          `json:"questions"`
	Submissions     int          `json:"submissions"`
	AverageScore    int          `json:"averageScore"`
	SubmissionsWeek int          `json:"submissionsWeek"`
}
