package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrMalformedLogin = errors.New("login response is missing the user or a token")
)

// APIError is a non-2xx response, or a 2xx envelope with success=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

func (e *APIError) temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
