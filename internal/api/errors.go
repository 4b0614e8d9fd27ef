package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is the normalized failure for any non-2xx backend response,
// raised only after the single refresh-and-retry has been exhausted.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// ParseError marks a 2xx response whose non-empty body was not valid JSON.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON response from %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// errorBody is the closed error-response shape the backend emits.
// The message field may be a single string or an ordered list.
type errorBody struct {
	Message    messageText `json:"message"`
	Error      string      `json:"error"`
	StatusCode int         `json:"statusCode"`
}

type messageText []string

func (m *messageText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = messageText{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*m = messageText(list)
		return nil
	}
	return errors.New("message is neither a string nor a list of strings")
}

// NewError builds the user-facing Error for a non-2xx response. List
// messages are joined with newlines; when no message is extractable the
// status line is synthesized.
func NewError(status int, body []byte) *Error {
	var msg string
	if len(body) > 0 {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil && len(eb.Message) > 0 {
			msg = strings.Join(eb.Message, "\n")
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("Error %d: %s", status, http.StatusText(status))
	}
	return &Error{Status: status, Message: msg}
}
