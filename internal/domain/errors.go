package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveQuiz is returned when a quiz action arrives before Start.
	ErrNoActiveQuiz = errors.New("no quiz in progress")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotAuthenticated is returned when an operation needs a logged-in user.
	ErrNotAuthenticated = errors.New("User not authenticated")
)

// Error codes surfaced to clients alongside the message.
const (
	CodeLoginFailed               = "LOGIN_FAILED"
	CodeRegisterFailed            = "REGISTER_FAILED"
	CodeAuthRequired              = "AUTH_REQUIRED"
	CodeAccessDenied              = "ACCESS_DENIED"
	CodeValidation                = "VALIDATION_ERROR"
	CodeServiceUnavailable        = "SERVICE_UNAVAILABLE"
	CodeNoActiveQuiz              = "NO_ACTIVE_QUIZ"
	CodeFetchQuestionsFailed      = "FETCH_QUESTIONS_FAILED"
	CodeFetchQuizQuestionsFailed  = "FETCH_QUIZ_QUESTIONS_FAILED"
	CodeFetchQuestionFailed       = "FETCH_QUESTION_FAILED"
	CodeCreateQuestionFailed      = "CREATE_QUESTION_FAILED"
	CodeUpdateQuestionFailed      = "UPDATE_QUESTION_FAILED"
	CodeDeleteQuestionFailed      = "DELETE_QUESTION_FAILED"
	CodeSearchQuestionsFailed     = "SEARCH_QUESTIONS_FAILED"
	CodeInvalidQuestionID         = "INVALID_QUESTION_ID"
	CodeInvalidQuizID             = "INVALID_QUIZ_ID"
	CodeFetchQuizzesFailed        = "FETCH_QUIZZES_FAILED"
	CodeFetchQuizFailed           = "FETCH_QUIZ_FAILED"
	CodeCreateQuizFailed          = "CREATE_QUIZ_FAILED"
	CodeUpdateQuizFailed          = "UPDATE_QUIZ_FAILED"
	CodeDeleteQuizFailed          = "DELETE_QUIZ_FAILED"
	CodeGenerateQuizFailed        = "GENERATE_QUIZ_FAILED"
	CodeFetchAvailableQuizzes     = "FETCH_AVAILABLE_QUIZZES_FAILED"
	CodeSubmitQuizFailed          = "SUBMIT_QUIZ_FAILED"
	CodeSubmissionCreationFailed  = "SUBMISSION_CREATION_FAILED"
	CodeInvalidUserID             = "INVALID_USER_ID"
	CodeFetchUserSubmissions      = "FETCH_USER_SUBMISSIONS_FAILED"
	CodeInvalidSubmissionID       = "INVALID_SUBMISSION_ID"
	CodeCorruptedSubmission       = "CORRUPTED_SUBMISSION_DATA"
	CodeFetchSubmissionFailed     = "FETCH_SUBMISSION_FAILED"
	CodeFetchQuizStatistics       = "FETCH_QUIZ_STATISTICS_FAILED"
	CodeFetchAllSubmissionsFailed = "FETCH_ALL_SUBMISSIONS_FAILED"
	CodeFetchUsersFailed          = "FETCH_USERS_FAILED"
	CodeCreateUserFailed          = "CREATE_USER_FAILED"
	CodeUpdateUserFailed          = "UPDATE_USER_FAILED"
	CodeDeleteUserFailed          = "DELETE_USER_FAILED"
	CodeResetPasswordFailed       = "RESET_PASSWORD_FAILED"
	CodeFetchDashboardFailed      = "FETCH_DASHBOARD_FAILED"
	CodeUnknown                   = "ERROR"
)

// Error is the failure half of every facade call: a readable message and a
// stable code. Status carries the upstream HTTP status when there was one.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error without an underlying cause.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of err, or CodeUnknown.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
