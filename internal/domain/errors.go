package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfigurationMissing means no upstream credential is configured.
	ErrConfigurationMissing = errors.New("upstream credential not configured")
	ErrInputInvalid         = errors.New("invalid input")
	ErrMalformedResponse    = errors.New("malformed upstream response")

	ErrFileTooLarge       = errors.New("file too large")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrNotFound           = errors.New("not found")
)

// UpstreamError is a non-success response from the chat platform API.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.Status, e.Message)
}

// HTTPStatus maps an error from the core to the status surfaced to API callers.
func HTTPStatus(err error) int {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInputInvalid), errors.Is(err, ErrFileTypeNotAllowed):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		if upstream.Status >= 400 && upstream.Status <= 599 {
			return upstream.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
