package switchboard

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aadithya-v/switchboard/store"
)

// Config contains configuration options for a Manager.
type Config struct {
	// Gateway performs login, logout and session checks against the
	// remote auth service. Required.
	Gateway AuthGateway

	// Store is the durable client-local storage for sessions.
	// Default: SQLite store (creates switchboard.db in current directory).
	Store store.KeyValueStore

	// DatabasePath is the path for the default SQLite database.
	// Only used if Store is nil.
	// Default: "switchboard.db".
	DatabasePath string

	// SessionsKey is the store key holding the JSON-encoded session list.
	// Default: "edge_sessions".
	SessionsKey string

	// ActiveUserKey is the store key holding the active user id.
	// Default: "edge_current_user".
	ActiveUserKey string

	// FallbackTTL is the session lifetime used when the token carries
	// no decodable exp claim.
	// Default: 24 hours.
	FallbackTTL time.Duration

	// CheckTimeout bounds one shared session check round-trip. The check
	// runs detached from every caller's context; only this timeout ends it.
	// Default: 10 seconds.
	CheckTimeout time.Duration

	// ConcurrentOperations disables the per-manager operation queue.
	// When true, overlapping Login/Logout/CheckSession calls complete in
	// whatever order their network calls return and the last one to touch
	// the registry decides the active user.
	// Default: false (operations are serialized).
	ConcurrentOperations bool

	// Clock is the time source for expiry decisions.
	// Default: the real clock.
	Clock clockwork.Clock

	// Logger receives structured logs. Default: slog.Default().
	Logger *slog.Logger

	// Metrics, if set, is where session metrics are registered.
	Metrics prometheus.Registerer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DatabasePath:  "switchboard.db",
		SessionsKey:   "edge_sessions",
		ActiveUserKey: "edge_current_user",
		FallbackTTL:   24 * time.Hour,
		CheckTimeout:  10 * time.Second,
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
	if c.SessionsKey == "" {
		c.SessionsKey = defaults.SessionsKey
	}
	if c.ActiveUserKey == "" {
		c.ActiveUserKey = defaults.ActiveUserKey
	}
	if c.FallbackTTL <= 0 {
		c.FallbackTTL = defaults.FallbackTTL
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = defaults.CheckTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
