package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxMessageLen caps plain-text error bodies, in characters.
const maxMessageLen = 200

// ErrUnauthorized is matched by errors.Is for any 401 or 403 answer.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Unauthorized()
}

// Unauthorized reports a missing, expired or insufficient credential.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Rejection returns the backend's message when err is a validation or business
// rule rejection (400 or 422 carrying a message).
func Rejection(err error) (string, bool) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "", false
	}
	if apiErr.StatusCode != http.StatusBadRequest && apiErr.StatusCode != http.StatusUnprocessableEntity {
		return "", false
	}
	if apiErr.Message == "" {
		return "", false
	}
	return apiErr.Message, true
}

// errorMessage pulls a human message out of an error body: JSON {"message"} or
// {"error"}, else the trimmed text.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
		return ""
	}
	msg := strings.TrimSpace(string(body))
	if runes := []rune(msg); len(runes) > maxMessageLen {
		msg = string(runes[:maxMessageLen])
	}
	return msg
}
