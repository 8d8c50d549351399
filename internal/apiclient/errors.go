package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/petflix/internal/errs"
)

// fallbackBody is used when an error response is not a JSON object.
var fallbackBody = map[string]any{"error": "Request failed"}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   map[string]any
	Method string
	URL    string
}

// StatusCode exposes the HTTP status for retry classification.
func (e *APIError) StatusCode() int { return e.Status }

// Message returns the server-provided error text, if any.
func (e *APIError) Message() string {
	for _, k := range []string{"error", "message"} {
		if s, ok := e.Body[k].(string); ok && s != "" {
			return s
		}
	}
	return http.StatusText(e.Status)
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, e.Message())
}

// Unwrap maps statuses onto shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errs.ErrValidation
	}
	return nil
}

func newAPIError(method, url string, status int, raw []byte) *APIError {
	e := &APIError{Status: status, Method: method, URL: url}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		body = make(map[string]any, len(fallbackBody))
		for k, v := range fallbackBody {
			body[k] = v
		}
	}
	e.Body = body
	return e
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// IsAuthRejection reports whether the backend refused the identity (401 or 404).
func IsAuthRejection(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusNotFound
}
