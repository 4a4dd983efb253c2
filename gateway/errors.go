package gateway

import (
	"errors"
	"fmt"
)

// ErrTransport matches every *TransportError via errors.Is.
var ErrTransport = errors.New("gateway: transport failure")

// TransportError is returned when a call to the auth service did not
// produce a usable answer: the connection failed, the context ended, or
// the body could not be decoded.
type TransportError struct {
	Op         string // "login", "logout" or "check"
	StatusCode int    // 0 if no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway: %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) true for any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusError is returned when the auth service answered with a non-2xx
// status on an endpoint that has no structured failure body.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s rejected (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: %s rejected (status %d)", e.Op, e.StatusCode)
}
