// Package switchboard keeps several authenticated identities in one client
// process, persists them to durable local storage, and reconciles them with
// a remote auth service.
//
// A Manager is built once per process with New, loaded with Init, and then
// driven by the application:
//
//	m, err := switchboard.New(switchboard.Config{Gateway: client})
//	if err != nil { ... }
//	defer m.Close()
//	if err := m.Init(); err != nil { ... }
//	resp, err := m.Login(ctx, "alice", "secret")
//
// Only Login adds sessions, and only after the auth service issued a token.
// Every removal path is a local decision and never waits on the network
// succeeding.
package switchboard

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/aadithya-v/switchboard/gateway"
	"github.com/aadithya-v/switchboard/store"
)

// AuthGateway is the remote auth service as the Manager consumes it.
// *gateway.Client implements it over HTTP.
type AuthGateway interface {
	// Login exchanges credentials for a token. A transport failure is an
	// error; rejected credentials are a response with Success == false.
	Login(ctx context.Context, username, password string) (*gateway.LoginResponse, error)

	// Logout asks the service to end the session behind token.
	Logout(ctx context.Context, token string) error

	// CheckSession asks whether token is still honored.
	CheckSession(ctx context.Context, token string) (*gateway.CheckResponse, error)
}

var _ gateway.TokenSource = (*Manager)(nil)

// Manager is the session manager facade.
// It is safe for concurrent use. Unless Config.ConcurrentOperations is set,
// operations that may change the registry run one at a time in arrival order.
type Manager struct {
	config   Config
	gateway  AuthGateway
	kv       store.KeyValueStore
	registry *Registry
	queue    *semaphore.Weighted
	checks   singleflight.Group
	metrics  *metrics
	log      *slog.Logger
}

// New creates a new Manager with the given configuration.
// If Store is not provided, a SQLite store is opened at DatabasePath.
func New(cfg Config) (*Manager, error) {
	if cfg.Gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	cfg.applyDefaults()

	m := &Manager{
		config:  cfg,
		gateway: cfg.Gateway,
		log:     cfg.Logger.With("component", "manager"),
	}

	met, err := newMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("switchboard: failed to register metrics: %w", err)
	}
	m.metrics = met

	// Initialize session store (default: SQLite)
	if cfg.Store != nil {
		m.kv = cfg.Store
	} else {
		sqliteStore, err := store.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("switchboard: failed to initialize SQLite store: %w", err)
		}
		m.kv = sqliteStore
	}

	m.registry = NewRegistry(m.kv, RegistryOptions{
		SessionsKey:   cfg.SessionsKey,
		ActiveUserKey: cfg.ActiveUserKey,
		Clock:         cfg.Clock,
		Logger:        cfg.Logger,
	})

	if !cfg.ConcurrentOperations {
		m.queue = semaphore.NewWeighted(1)
	}

	return m, nil
}

// Close releases the session store.
// Should be called when the application shuts down.
func (m *Manager) Close() error {
	if err := m.kv.Close(); err != nil {
		return fmt.Errorf("switchboard: failed to close store: %w", err)
	}
	return nil
}

// Init loads persisted sessions. It must be called once at startup before
// anything depends on the authentication state. See Registry.Init.
func (m *Manager) Init() error {
	err := m.registry.Init()
	m.metrics.setSessions(m.registry.Len())
	return err
}

// Login authenticates against the auth service and, on success, adds or
// refreshes the session for the returned identity and makes it active.
//
// Transport failures are returned unchanged and leave the registry alone.
// Rejected credentials return the service's response with a nil error and
// also leave the registry alone. A non-nil error alongside a successful
// response means the session was added in memory but could not be
// persisted (ErrPersistFailed).
func (m *Manager) Login(ctx context.Context, username, password string) (*gateway.LoginResponse, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := m.gateway.Login(ctx, username, password)
	if err != nil {
		m.metrics.login("error")
		return nil, err
	}

	if !resp.Issued() {
		m.metrics.login("rejected")
		if resp != nil {
			m.log.Info("login rejected", "username", username, "message", resp.Message)
		}
		return resp, nil
	}

	session := NewSession(*resp.Token, *resp.UserID, *resp.Username, m.config.Clock.Now(), m.config.FallbackTTL)
	err = m.registry.Upsert(session)

	m.metrics.login("ok")
	m.metrics.setSessions(m.registry.Len())
	m.log.Info("logged in", "user_id", session.UserID, "username", session.Username, "expires_at", session.ExpiresAt)

	return resp, err
}

// Logout ends the active session. It does nothing when no session is active.
//
// The server-side logout is best effort: whatever it returns, the session is
// removed locally and the next session (if any) becomes active. The only
// error returned is a persistence failure.
func (m *Manager) Logout(ctx context.Context) error {
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	active, ok := m.registry.Active()
	if !ok {
		return nil
	}

	if err := m.gateway.Logout(ctx, active.Token); err != nil {
		m.log.Warn("server logout failed, removing session locally",
			"user_id", active.UserID,
			"error", err,
		)
	}

	err = m.registry.Remove(active.UserID)
	m.metrics.logout()
	m.metrics.setSessions(m.registry.Len())
	return err
}

// LogoutAll drops every session locally. No network call is made.
func (m *Manager) LogoutAll() error {
	release, err := m.acquire(context.Background())
	if err != nil {
		return err
	}
	defer release()

	err = m.registry.RemoveAll()
	m.metrics.setSessions(0)
	return err
}

// SwitchUser makes userID's session active. Unknown ids are ignored.
func (m *Manager) SwitchUser(userID int64) error {
	release, err := m.acquire(context.Background())
	if err != nil {
		return err
	}
	defer release()

	return m.registry.SetActive(userID)
}

// CheckSession asks the auth service whether the active session is still
// honored. It returns false without a network call when no session is active.
//
// A live session is left untouched; its expiry is not refreshed. On any
// failure, transport error or rejection alike, the checked session is
// removed and false is returned. This is the only way a server-side
// revocation becomes visible locally.
//
// Concurrent checks of the same session share one round-trip, bounded by
// Config.CheckTimeout. A caller whose ctx ends first stops waiting and gets
// false with ctx's error; the session is kept and the shared check carries on
// for the others. Otherwise the returned error is only ever a persistence
// failure.
func (m *Manager) CheckSession(ctx context.Context) (bool, error) {
	active, ok := m.registry.Active()
	if !ok {
		return false, nil
	}

	live, err := m.verify(ctx, active)
	if err != nil {
		return false, fmt.Errorf("switchboard: waiting for session check: %w", err)
	}
	if live {
		m.metrics.check("live")
		return true, nil
	}
	m.metrics.check("stale")

	release, err := m.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	// a re-login while the check was in flight replaced the token; keep that one
	removed, err := m.registry.RemoveToken(active.UserID, active.Token)
	if removed {
		m.log.Info("removed stale session", "user_id", active.UserID)
	}
	m.metrics.setSessions(m.registry.Len())
	return false, err
}

// verify performs the gateway check, collapsing concurrent calls per token.
// The shared call is detached from ctx; ctx only bounds this caller's wait.
func (m *Manager) verify(ctx context.Context, s Session) (bool, error) {
	ch := m.checks.DoChan(s.Token, func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.CheckTimeout)
		defer cancel()

		resp, err := m.gateway.CheckSession(checkCtx, s.Token)
		if err != nil {
			m.log.Warn("session check failed", "user_id", s.UserID, "error", err)
			return false, nil
		}
		if resp == nil || !resp.Success {
			msg := ""
			if resp != nil {
				msg = resp.Message
			}
			m.log.Info("session rejected by auth service", "user_id", s.UserID, "message", msg)
			return false, nil
		}
		return true, nil
	})

	m.metrics.checkWaiting(1)
	defer m.metrics.checkWaiting(-1)

	select {
	case res := <-ch:
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// PruneExpired drops sessions whose expiry has passed since Init.
func (m *Manager) PruneExpired() (int, error) {
	release, err := m.acquire(context.Background())
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := m.registry.PruneExpired()
	m.metrics.setSessions(m.registry.Len())
	return n, err
}

// Active returns the active session.
func (m *Manager) Active() (Session, bool) {
	return m.registry.Active()
}

// Sessions returns all sessions in registry order.
func (m *Manager) Sessions() []Session {
	return m.registry.All()
}

// Token returns the active session's token if it has not expired.
// It implements gateway.TokenSource.
func (m *Manager) Token() (string, bool) {
	active, ok := m.registry.Active()
	if !ok || active.IsExpired(m.config.Clock.Now()) {
		return "", false
	}
	return active.Token, true
}

// Registry exposes the underlying registry, e.g. to Flush after a
// persistence failure.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// acquire takes the operation queue slot, or returns a no-op release when
// operations are not serialized.
func (m *Manager) acquire(ctx context.Context) (func(), error) {
	if m.queue == nil {
		return func() {}, nil
	}
	if err := m.queue.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("switchboard: waiting for pending operation: %w", err)
	}
	return func() { m.queue.Release(1) }, nil
}
