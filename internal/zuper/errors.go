// Package zuper provides a client for the Zuper job-management API.
package zuper

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted is returned when every attempt was rate limited.
var ErrRetriesExhausted = errors.New("max retries exceeded")

// ConfigError indicates the client cannot be built from the given settings
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("zuper API not configured: missing %s", e.Field)
}

// AuthenticationError indicates the API key was rejected (401/403)
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("zuper authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// NotFoundError indicates the requested resource does not exist (404)
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("zuper resource not found: %s", e.Resource)
}

// ValidationError indicates the API rejected the request parameters (400/422)
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("zuper validation error (HTTP %d): %s", e.StatusCode, e.Message)
}

// ServerError indicates a 5xx response that persisted through every retry
type ServerError struct {
	StatusCode int
	Attempts   int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("zuper server error (HTTP %d) after %d attempts", e.StatusCode, e.Attempts)
}

// NetworkError indicates a timeout or connection failure that persisted through every retry
type NetworkError struct {
	Attempts int
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("zuper network error after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// APIError covers any other unexpected response
type APIError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("zuper API error (HTTP %d): %s: %v", e.StatusCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("zuper API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether err is a failure that retrying cannot fix.
func IsPermanent(err error) bool {
	var authErr *AuthenticationError
	var notFoundErr *NotFoundError
	var validationErr *ValidationError
	var configErr *ConfigError
	return errors.As(err, &authErr) || errors.As(err, &notFoundErr) ||
		errors.As(err, &validationErr) || errors.As(err, &configErr)
}
