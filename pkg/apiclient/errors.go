package apiclient

import (
	"fmt"
)

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Message
}

// IsUnavailable returns true if the service reported itself not ready.
func (e *APIError) IsUnavailable() bool {
	return e.StatusCode == 503
}
