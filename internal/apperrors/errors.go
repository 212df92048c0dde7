package apperrors

import (
	"errors"
	"fmt"
	"net"
)

// ErrNotFound marks lookups against an unknown id or reference.
var ErrNotFound = errors.New("not found")

// DownstreamError wraps a failed call to another service. Timeout is split
// out so callers can drive targeted retry policies instead of treating every
// downstream failure the same way.
type DownstreamError struct {
	Service string
	Timeout bool
	Err     error
}

func (e *DownstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s: unavailable: %v", e.Service, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }

// Downstream classifies err as a downstream failure of the named service.
func Downstream(service string, err error) error {
	var netErr net.Error
	timeout := errors.As(err, &netErr) && netErr.Timeout()
	return &DownstreamError{Service: service, Timeout: timeout, Err: err}
}

// IsDownstream reports whether err is a downstream failure.
func IsDownstream(err error) bool {
	var de *DownstreamError
	return errors.As(err, &de)
}
