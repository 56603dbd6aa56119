package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNoMorePages is returned by a pager whose sequence is exhausted.
	ErrNoMorePages = errors.New("no more pages available")

	// ErrContextCancelled is returned when the context is cancelled
	// while waiting between retry attempts.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrInvalidAction is returned for an unrecognized HTTP action.
	ErrInvalidAction = errors.New("invalid HTTP action")
)

// APIError reports a request that completed with a failure status.
// StatusCode 0 means the request never received an HTTP response.
type APIError struct {
	StatusCode int
	Errors     map[string]any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("blesta network failure: %v", e.Errors)
	}
	return fmt.Sprintf("blesta API error (status %d): %v", e.StatusCode, e.Errors)
}

// newAPIError builds an APIError from a failed response.
func newAPIError(resp *Response) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode,
		Errors:     resp.Errors(),
	}
}
