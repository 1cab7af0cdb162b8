package content

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the backend, or a transport failure
// (Status 0).
type APIError struct {
	Status  int
	Message string
	Details any
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("backend unreachable: %v", e.Err)
		}
		return fmt.Sprintf("backend request failed: %s", e.Message)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports a 404 from the backend. On submit this means the
// attempt expired server-side.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsForbidden reports a 403, shown to the learner as an authorization
// warning rather than a generic failure.
func IsForbidden(err error) bool {
	return StatusOf(err) == http.StatusForbidden
}

// IsUnauthorized reports a 401.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}
