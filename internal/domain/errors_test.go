package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"input", fmt.Errorf("%w: channelId is required", ErrInputInvalid), http.StatusBadRequest},
		{"type", ErrFileTypeNotAllowed, http.StatusBadRequest},
		{"too large", fmt.Errorf("store: %w", ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"config", ErrConfigurationMissing, http.StatusServiceUnavailable},
		{"malformed", ErrMalformedResponse, http.StatusBadGateway},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"upstream 403", &UpstreamError{Status: 403, Message: "Missing Access"}, http.StatusForbidden},
		{"upstream wrapped 404", fmt.Errorf("fetch channel: %w", &UpstreamError{Status: 404}), http.StatusNotFound},
		{"upstream weird status", &UpstreamError{Status: 302}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("%s: HTTPStatus = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestUpstreamError_Message(t *testing.T) {
	err := &UpstreamError{Status: 403, Message: "Missing Access"}
	if err.Error() != "upstream returned HTTP 403: Missing Access" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if (&UpstreamError{Status: 500}).Error() != "upstream returned HTTP 500" {
		t.Error("empty message should be omitted")
	}
}
