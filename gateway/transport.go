package gateway

import (
	"net/http"
	"time"
)

// TokenSource yields the bearer token to attach to outgoing requests.
// ok is false when there is no usable token.
type TokenSource interface {
	Token() (token string, ok bool)
}

// BearerTransport attaches the current token from Source to every request
// that does not already carry an Authorization header.
type BearerTransport struct {
	Source TokenSource

	// Base is the underlying transport. Default: http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	token, ok := t.Source.Token()
	if !ok {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(req)
}

// NewAuthorizedClient returns an *http.Client for the rest of the API
// (users, logs, ...) that presents the active session's token.
func NewAuthorizedClient(source TokenSource, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &BearerTransport{Source: source},
	}
}
