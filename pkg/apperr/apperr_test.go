package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("missing")))
	assert.Equal(t, CodePermissionDenied, CodeOf(PermissionDenied("nope")))
	assert.Equal(t, CodeInvalidArgument, CodeOf(InvalidArgument("bad")))
	assert.Equal(t, CodeUnauthenticated, CodeOf(Unauthenticated("who")))

	// Plain errors fall into the transport bucket.
	assert.Equal(t, CodeTransport, CodeOf(errors.New("connection reset")))
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("missing"))
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Unauthenticated("no token"), http.StatusUnauthorized},
		{PermissionDenied("not yours"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{InvalidArgument("empty"), http.StatusBadRequest},
		{Transport("db down", errors.New("io error")), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "error: %v", tt.err)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Transport("publish failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "publish failed")
	assert.Contains(t, err.Error(), "broken pipe")
}
