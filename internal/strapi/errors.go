package strapi

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when a response body matches neither known encoding.
	ErrShapeMismatch = errors.New("strapi: unexpected response shape")
	// ErrNoToken is returned when a login response carries no usable token.
	ErrNoToken = errors.New("strapi: no token received from login")
)

// TransportError wraps failures that happen before an HTTP status is available:
// DNS, dial, TLS, timeouts and body reads.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("strapi %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamStatusError is a non-2xx answer from the CMS.
type UpstreamStatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("strapi %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("strapi %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}
