// Package apperr holds the error taxonomy shared by the completion caller,
// the text extractor and the document reader.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest marks a caller-supplied argument combination that is
	// rejected before any I/O.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMalformedResponse marks collaborator output that failed parsing or
	// shape checks.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrTransientFailure marks an I/O-layer failure that may succeed on retry.
	ErrTransientFailure = errors.New("transient failure")
	// ErrExtractionFailure marks a document from which no text was recovered.
	ErrExtractionFailure = errors.New("extraction failure")
)

func InvalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// MalformedResponse wraps cause so that both the sentinel and the cause
// remain reachable through errors.Is / errors.As.
func MalformedResponse(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, msg, cause)
}

func Transient(cause error) error {
	if cause == nil || errors.Is(cause, ErrTransientFailure) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrTransientFailure, cause)
}

func ExtractionFailure(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrExtractionFailure, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrExtractionFailure, msg, cause)
}

// HTTPStatus maps an error from this module onto a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrExtractionFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, ErrTransientFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
