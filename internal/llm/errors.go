package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/docreader/internal/apperr"
)

// IsTransient reports whether err is an I/O-layer failure worth retrying.
// Validation and parse failures are deterministic and never retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, apperr.ErrInvalidRequest), errors.Is(err, apperr.ErrMalformedResponse):
		return false
	case errors.Is(err, apperr.ErrTransientFailure):
		return true
	case errors.Is(err, context.Canceled):
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || transientStatus(reqErr.HTTPStatusCode)
	}
	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) {
		return transientStatus(anthErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
