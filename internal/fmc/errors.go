package fmc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRateLimited is wrapped by APIError when a request was still rate
	// limited after the cooldown retry.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned when a request exceeds the configured timeout.
	ErrTimeout = errors.New("request timed out")

	ErrNotAuthenticated = errors.New("not authenticated")
)

// AuthError means the controller did not issue a usable session. It aborts the run.
type AuthError struct {
	Endpoint string
	Status   int
	Reason   string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("unable to authenticate to %s (status %d): %s", e.Endpoint, e.Status, e.Reason)
	}
	return fmt.Sprintf("unable to authenticate to %s: %s", e.Endpoint, e.Reason)
}

// APIError is a non-success response carrying the controller's error messages
type APIError struct {
	Method   string
	Path     string
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Description())
}

// Description is the first controller message, or the status text
func (e *APIError) Description() string {
	if len(e.Messages) > 0 && e.Messages[0] != "" {
		return e.Messages[0]
	}
	return http.StatusText(e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// errorBody is the controller's error envelope
type errorBody struct {
	Error struct {
		Category string `json:"category"`
		Messages []struct {
			Description string `json:"description"`
		} `json:"messages"`
		Severity string `json:"severity"`
	} `json:"error"`
}

func newAPIError(method, path string, resp *response) *APIError {
	e := &APIError{Method: method, Path: path, Status: resp.status}

	var body errorBody
	if err := json.Unmarshal(resp.body, &body); err == nil {
		for _, m := range body.Error.Messages {
			e.Messages = append(e.Messages, m.Description)
		}
	}
	if len(e.Messages) == 0 {
		if text := strings.TrimSpace(string(resp.body)); text != "" {
			if len(text) > 200 {
				text = text[:200]
			}
			e.Messages = []string{text}
		}
	}
	return e
}

// IsRateLimited reports whether err is a request that stayed rate limited
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsFatal reports whether err should abort a batch rather than be recorded
// against a single object.
func IsFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
