package apperr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappersKeepSentinelAndCause(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	err := Transient(cause)
	assert.ErrorIs(t, err, ErrTransientFailure)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	err = MalformedResponse(cause, "decode content")
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "decode content")

	err = ExtractionFailure(nil, "no text recovered from %s", "scan.pdf")
	assert.ErrorIs(t, err, ErrExtractionFailure)
	assert.Contains(t, err.Error(), "scan.pdf")
}

func TestTransientDoesNotDoubleWrap(t *testing.T) {
	once := Transient(errors.New("boom"))
	twice := Transient(once)
	assert.Same(t, once, twice)
	assert.Nil(t, Transient(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid", InvalidRequest("both set"), http.StatusBadRequest},
		{"malformed", MalformedResponse(nil, "not json"), http.StatusBadGateway},
		{"transient", Transient(errors.New("reset")), http.StatusServiceUnavailable},
		{"extraction", ExtractionFailure(nil, "blank"), http.StatusUnprocessableEntity},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
