package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpstream(t *testing.T) {
	assert.NoError(t, Upstream("yahoo", nil))

	err := Upstream("yahoo", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "yahoo: context deadline exceeded", err.Error())

	var up *UpstreamError
	assert.True(t, errors.As(fmt.Errorf("batch: %w", err), &up))
	assert.Equal(t, "yahoo", up.Source)
}

func TestHTTPStatus(t *testing.T) {
	resolution := &ResolutionError{Target: time.Unix(0, 0), Err: ErrNonMonotonic}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid argument", fmt.Errorf("%w: period", ErrInvalidArgument), http.StatusBadRequest},
		{"missing configuration", fmt.Errorf("burn: %w", ErrConfigurationMissing), http.StatusNotImplemented},
		{"no data", ErrNoUsableData, http.StatusNotFound},
		{"upstream", Upstream("xrpl", errors.New("refused")), http.StatusServiceUnavailable},
		{"resolution", fmt.Errorf("daily: %w", resolution), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestResolutionError(t *testing.T) {
	err := &ResolutionError{Target: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Err: ErrNonMonotonic}
	assert.ErrorIs(t, err, ErrNonMonotonic)
	assert.Equal(t, "resolve ledger at 2025-01-02T03:04:05Z: non-monotonic ledger sequence", err.Error())
}
