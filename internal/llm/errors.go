package llm

import (
	"errors"
	"fmt"
)

// ErrModelRequired is returned before any I/O when no model is selected.
var ErrModelRequired = errors.New("no model selected")

// ErrEndpointRequired is returned when the endpoint URL is empty.
var ErrEndpointRequired = errors.New("endpoint URL is not configured")

// AuthError reports a rejected or missing API token (HTTP 401/403).
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// APIError reports a request the endpoint rejected with a structured message
// (any other 4xx).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// TransportError reports a network failure, a non-2xx status outside the
// 4xx range, or an unreadable success body.
type TransportError struct {
	Status string // HTTP status line, empty for network failures
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != "" && e.Err != nil:
		return fmt.Sprintf("failed to communicate with LLM: %s: %v", e.Status, e.Err)
	case e.Status != "":
		return "failed to communicate with LLM: " + e.Status
	default:
		return fmt.Sprintf("failed to communicate with LLM: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
