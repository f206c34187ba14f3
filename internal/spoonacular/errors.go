package spoonacular

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport covers network failures, undecodable bodies and unexpected statuses.
	ErrTransport = errors.New("recipe api unreachable")
	// ErrAuth means the API rejected the key (missing, invalid or out of quota).
	ErrAuth     = errors.New("recipe api rejected the api key")
	ErrNotFound = errors.New("recipe not found")
)

// StatusError captures non-2xx HTTP responses from the recipe API.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s request failed: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap maps the status onto one of the error kinds so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return ErrAuth
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrTransport
	}
}
