package pocketbase

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ResponseError is a non-2xx answer from PocketBase. Message is the body's
// message field; Data carries per-field validation errors.
type ResponseError struct {
	Status  int                        `json:"code"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("pocketbase: %d %s", e.Status, http.StatusText(e.Status))
}

func newResponseError(status int, body []byte) *ResponseError {
	re := &ResponseError{}
	if err := json.Unmarshal(body, re); err != nil {
		re.Message = ""
	}
	re.Status = status
	return re
}
