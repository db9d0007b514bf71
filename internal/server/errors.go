package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/parts-dashboard/internal/assistant"
	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/syncer"
)

// RequestError indicates a malformed request
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Message)
	}
	return fmt.Sprintf("invalid request: %s - %s", e.Field, e.Message)
}

// NotFoundError indicates a job or run that does not exist in scope
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// FeatureDisabledError indicates an endpoint switched off by a feature flag
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("feature disabled: %s", e.Feature)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
// Storage failures and anything unrecognized map to 500.
func HTTPStatus(err error) int {
	var (
		reqErr      *RequestError
		notFound    *NotFoundError
		disabled    *FeatureDisabledError
		responseErr *assistant.ResponseError
	)

	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &reqErr), errors.Is(err, assistant.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &disabled):
		return http.StatusForbidden
	case errors.Is(err, syncer.ErrNotConfigured), errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &responseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
