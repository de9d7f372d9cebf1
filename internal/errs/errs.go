// Package errs defines the failure taxonomy shared by the cache, the
// aggregation engine and the ledger components.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrUpstreamUnavailable marks transport failures and timeouts talking to
	// an external collaborator.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNoUsableData marks a response that arrived but carried nothing usable.
	ErrNoUsableData = errors.New("no usable data")
	// ErrStaleDataServed is reported alongside a cached value whose refresh failed.
	ErrStaleDataServed = errors.New("stale data served")
	// ErrConfigurationMissing disables a feature whose credentials or endpoints are absent.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrNonMonotonic is returned when ledger probes contradict the ordering assumption.
	ErrNonMonotonic = errors.New("non-monotonic ledger sequence")
	// ErrInvalidArgument rejects a request parameter before any upstream call.
	ErrInvalidArgument = errors.New("invalid argument")
)

// UpstreamError wraps a failed call to a named upstream.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes every UpstreamError match ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Upstream wraps err as an UpstreamError for source. nil stays nil.
func Upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Source: source, Err: err}
}

// ResolutionError reports a ledger time search that could not complete.
type ResolutionError struct {
	Target time.Time
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve ledger at %s: %v", e.Target.UTC().Format(time.RFC3339), e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// HTTPStatus maps an error from the core to a response status.
func HTTPStatus(err error) int {
	var resErr *ResolutionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfigurationMissing):
		return http.StatusNotImplemented
	case errors.Is(err, ErrNoUsableData):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstreamUnavailable), errors.As(err, &resErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
