package client

import (
	"errors"
	"fmt"
)

// ErrUpstream is matched by every *UpstreamCallError.
var ErrUpstream = errors.New("upstream call failed")

// UpstreamCallError reports a request to the experiments API that failed in
// transport or returned a non-success status.
type UpstreamCallError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamCallError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", ErrUpstream.Error(), e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: %s: status %d: %s", ErrUpstream.Error(), e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: %s: status %d", ErrUpstream.Error(), e.Op, e.StatusCode)
	}
}

// Unwrap exposes ErrUpstream and the transport cause, if any.
func (e *UpstreamCallError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}
