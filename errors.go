package switchboard

import "errors"

var (
	// ErrPersistFailed is returned when the in-memory registry changed but the
	// durable store could not be updated. The in-memory state stays
	// authoritative; call Flush to retry.
	ErrPersistFailed = errors.New("switchboard: failed to persist sessions")

	// ErrStoreUnavailable is returned by Init when the durable store cannot be read.
	ErrStoreUnavailable = errors.New("switchboard: session store unavailable")

	// ErrGatewayNotConfigured is returned by New when Config.Gateway is nil.
	ErrGatewayNotConfigured = errors.New("switchboard: auth gateway not configured")
)
