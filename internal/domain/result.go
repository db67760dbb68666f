package domain

import (
	"errors"
	"strings"
)

// Result is the {success, data, error, code} envelope clients consume.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OK wraps data in a successful result.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail converts err into a failed result.
func Fail(err error) Result[any] {
	var e *Error
	if errors.As(err, &e) {
		return Result[any]{Error: e.Message, Code: e.Code}
	}
	msg := "Unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Result[any]{Error: msg, Code: CodeUnknown}
}

// HTTPStatus maps an error to the status the HTTP surface answers with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return 500
	}
	switch {
	case strings.HasPrefix(e.Code, "INVALID_"), e.Code == CodeValidation:
		return 400
	case e.Code == CodeAuthRequired:
		return 401
	case e.Code == CodeAccessDenied:
		return 403
	case e.Code == CodeNoActiveQuiz:
		return 409
	case e.Code == CodeServiceUnavailable:
		return 503
	case e.Status == 404, e.Status == 401, e.Status == 403, e.Status == 400:
		return e.Status
	case e.Status != 0:
		return 502
	}
	return 500
}
