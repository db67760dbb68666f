package domain

import (
	"encoding/json"
	"fmt"
)

// Role is the dashboard role stored on a PocketBase user record.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User mirrors a record of the users auth collection.
type User struct {
	ID       string   `json:"id,omitempty"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Name     string   `json:"name,omitempty"`
	Role     Role     `json:"role,omitempty"`
	Avatar   string   `json:"avatar,omitempty"`
	Verified bool     `json:"verified,omitempty"`
	Created  DateTime `json:"created,omitzero"`
	Updated  DateTime `json:"updated,omitzero"`
}

// QuestionType selects how an answer is checked.
type QuestionType string

const (
	SingleChoice   QuestionType = "Single Choice"
	MultipleChoice QuestionType = "Multiple Choice"
	YesNo          QuestionType = "Yes/No"
)

// Question models a record of the questions collection.
type Question struct {
	ID             string       `json:"id,omitempty"`
	Question       string       `json:"question"`
	QuestionType   QuestionType `json:"question_type"`
	Answers        []string     `json:"answers,omitempty"`
	CorrectAnswers []string     `json:"correct_answers,omitempty"`
	Category       string       `json:"category,omitempty"`
	Difficulty     string       `json:"difficulty,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
	Created        DateTime     `json:"created,omitzero"`
	Updated        DateTime     `json:"updated,omitzero"`
}

// Quiz is a collection of questions referenced by id.
type Quiz struct {
	ID              string     `json:"id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	IsActive        bool       `json:"is_active"`
	QuestionsList   []string   `json:"questions_list,omitempty"`
	Questions       []Question `json:"questions,omitempty"` // filled by LoadQuiz, never persisted
	Created         DateTime   `json:"created,omitzero"`
	Updated         DateTime   `json:"updated,omitzero"`
}

// SubmissionAnswer records the outcome for a single question.
type SubmissionAnswer struct {
	QuestionID string `json:"questionId"`
	IsCorrect  bool   `json:"isCorrect"`
}

// SubmissionData is the raw attempt payload kept alongside the score.
type SubmissionData struct {
	QuizID         string            `json:"quizId"`
	Answers        map[string]Answer `json:"answers"`
	TimeTaken      int               `json:"timeTaken"`
	Score          int               `json:"score"`
	CorrectAnswers int               `json:"correctAnswers"`
	TotalQuestions int               `json:"totalQuestions"`
}

// SubmissionExpand holds relations requested through `expand`.
type SubmissionExpand struct {
	User *User `json:"user,omitempty"`
	Quiz *Quiz `json:"quiz,omitempty"`
}

// Submission models a record of the submissions collection.
type Submission struct {
	ID             string             `json:"id,omitempty"`
	User           string             `json:"user"`
	Quiz           string             `json:"quiz"`
	Score          *int               `json:"score,omitempty"`
	TotalQuestions int                `json:"total_questions"`
	StartedAt      DateTime           `json:"started_at,omitzero"`
	CompletedAt    DateTime           `json:"completed_at,omitzero"`
	Status         string             `json:"status,omitempty"`
	AttemptNumber  int                `json:"attempt_number,omitempty"`
	SubmissionType string             `json:"submission_type,omitempty"`
	SubmissionData *SubmissionData    `json:"submission_data,omitempty"`
	Answers        []SubmissionAnswer `json:"answers,omitempty"`
	Duration       int                `json:"duration,omitempty"` // seconds
	Created        DateTime           `json:"created,omitzero"`
	Updated        DateTime           `json:"updated,omitzero"`
	Expand         *SubmissionExpand  `json:"expand,omitempty"`
}

// ScoreValue returns the score, treating a missing score as zero.
func (s Submission) ScoreValue() int {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

// ExpandedQuiz returns the expanded quiz relation, if any.
func (s Submission) ExpandedQuiz() *Quiz {
	if s.Expand == nil {
		return nil
	}
	return s.Expand.Quiz
}

// ExpandedUser returns the expanded user relation, if any.
func (s Submission) ExpandedUser() *User {
	if s.Expand == nil {
		return nil
	}
	return s.Expand.User
}

// Answer is a user answer: a single option or, for multiple choice, a list.
// The wire shape (string vs array) is preserved because single-choice
// questions only accept a scalar.
type Answer struct {
	Values []string
	Multi  bool
}

// SingleAnswer builds a scalar answer.
func SingleAnswer(v string) Answer { return Answer{Values: []string{v}} }

// MultiAnswer builds a list answer.
func MultiAnswer(v ...string) Answer { return Answer{Values: v, Multi: true} }

// Scalar returns the single value of a scalar answer.
func (a Answer) Scalar() (string, bool) {
	if a.Multi || len(a.Values) != 1 {
		return "", false
	}
	return a.Values[0], true
}

// IsZero reports whether no answer was given.
func (a Answer) IsZero() bool { return len(a.Values) == 0 && !a.Multi }

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		vals := a.Values
		if vals == nil {
			vals = []string{}
		}
		return json.Marshal(vals)
	}
	if len(a.Values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(a.Values[0])
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Answer{}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = Answer{Values: list, Multi: true}
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = SingleAnswer(single)
		return nil
	}
	// Yes/No answers are the strings "true" and "false"; a JSON boolean
	// would never equal the stored correct answer.
	return fmt.Errorf("unsupported answer value %s", data)
}
