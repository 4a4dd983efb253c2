package store

import "errors"

// ErrClosed is returned by stores that have already been closed.
var ErrClosed = errors.New("store: closed")

// KeyValueStore defines the interface for durable client-local storage.
// The session registry keeps two logical keys in it: the JSON-encoded
// session list and the active user id.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// ok is false if the key does not exist; that is not an error.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing a missing key is a no-op.
	Remove(key string) error

	// Close releases any resources held by the store.
	Close() error
}
