package apiclient

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for a 401 response. The stored session has
// already been cleared when a caller sees it.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-success response from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// ErrInvalidRating is returned when a review grade is outside 1..4.
var ErrInvalidRating = errors.New("rating must be between 1 and 4")
