package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error types for specific API errors.
type (
	// AuthenticationError indicates the service rejected the credentials.
	AuthenticationError struct{ Message string }
	// RateLimitError indicates rate limit exceeded.
	RateLimitError struct{ Message string }
	// NotFoundError indicates a resource was not found.
	NotFoundError struct{ Message string }
	// ValidationError indicates invalid input.
	ValidationError struct{ Message string }
)

func (e AuthenticationError) Error() string { return e.Message }
func (e RateLimitError) Error() string      { return e.Message }
func (e NotFoundError) Error() string       { return e.Message }
func (e ValidationError) Error() string     { return e.Message }

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request may succeed.
func (e APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// errorFromResponse maps a non-2xx status and body to a typed error.
func errorFromResponse(status int, body []byte) error {
	msg := detailMessage(body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "invalid API token"
		}
		return AuthenticationError{Message: msg}
	case http.StatusNotFound:
		if msg == "" {
			msg = "not found"
		}
		return NotFoundError{Message: msg}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ValidationError{Message: fmt.Sprintf("invalid request: %s", msg)}
	case http.StatusTooManyRequests:
		return RateLimitError{Message: fmt.Sprintf("rate limit exceeded: %s", msg)}
	default:
		return APIError{StatusCode: status, Message: msg}
	}
}

// detailMessage extracts the "detail" field error bodies carry. It is
// either a string or a list of {loc, msg, type} entries.
func detailMessage(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}

	var items []struct {
		Loc []interface{} `json:"loc"`
		Msg string        `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if len(item.Loc) > 0 {
				parts = append(parts, fmt.Sprintf("%v: %s", item.Loc[len(item.Loc)-1], item.Msg))
				continue
			}
			parts = append(parts, item.Msg)
		}
		return strings.Join(parts, "; ")
	}

	return strings.TrimSpace(string(envelope.Detail))
}
