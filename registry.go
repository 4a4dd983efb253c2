package switchboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/aadithya-v/switchboard/store"
)

// RegistryOptions configures a Registry. Zero values take the
// defaults from DefaultConfig.
type RegistryOptions struct {
	SessionsKey   string
	ActiveUserKey string
	Clock         clockwork.Clock
	Logger        *slog.Logger
}

// Registry is the ordered set of sessions held by one client process,
// plus an optional pointer (by user id) to the active one.
//
// Sessions keep insertion order; re-adding a user replaces its entry in
// place. The active id always names an existing session or is unset.
// Every mutation rewrites the durable store to mirror memory. If that
// write fails, memory is kept and the error wraps ErrPersistFailed.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	kv   store.KeyValueStore
	opts RegistryOptions
	log  *slog.Logger

	sessions  []Session
	active    int64
	hasActive bool
}

// NewRegistry creates an empty registry backed by kv.
// Call Init once before use to load persisted sessions.
func NewRegistry(kv store.KeyValueStore, opts RegistryOptions) *Registry {
	defaults := DefaultConfig()
	if opts.SessionsKey == "" {
		opts.SessionsKey = defaults.SessionsKey
	}
	if opts.ActiveUserKey == "" {
		opts.ActiveUserKey = defaults.ActiveUserKey
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Registry{
		kv:   kv,
		opts: opts,
		log:  opts.Logger.With("component", "registry"),
	}
}

// Init loads persisted sessions, drops expired ones, picks the active
// session and writes the cleaned state back.
//
// The previously active user stays active if its session survived;
// otherwise the first remaining session becomes active. Corrupt persisted
// data is treated as empty. If the store cannot be read at all, the
// registry stays empty, nothing is written, and the error wraps
// ErrStoreUnavailable.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = nil
	r.hasActive = false

	raw, found, err := r.kv.Get(r.opts.SessionsKey)
	if err != nil {
		r.log.Error("failed to read sessions", "error", err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	rawActive, foundActive, err := r.kv.Get(r.opts.ActiveUserKey)
	if err != nil {
		r.log.Error("failed to read active user", "error", err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var loaded []Session
	corrupt := false
	if found {
		if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
			r.log.Warn("discarding corrupt persisted sessions", "error", err)
			loaded = nil
			corrupt = true
		}
	}

	now := r.opts.Clock.Now()
	expired := 0
	for _, s := range loaded {
		if s.IsExpired(now) {
			expired++
			continue
		}
		// first entry wins if the stored list was edited into duplicates
		if r.indexOf(s.UserID) >= 0 {
			continue
		}
		r.sessions = append(r.sessions, s)
	}

	if foundActive && !corrupt {
		if id, err := strconv.ParseInt(rawActive, 10, 64); err == nil && r.indexOf(id) >= 0 {
			r.active, r.hasActive = id, true
		}
	}
	if !r.hasActive && len(r.sessions) > 0 {
		r.active, r.hasActive = r.sessions[0].UserID, true
	}

	r.log.Debug("sessions loaded", "count", len(r.sessions), "expired", expired)

	return r.persist()
}

// Upsert adds s, or replaces the session with the same user id in place,
// and makes it active.
func (r *Registry) Upsert(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(s.UserID); i >= 0 {
		r.sessions[i] = s
	} else {
		r.sessions = append(r.sessions, s)
	}
	r.active, r.hasActive = s.UserID, true

	return r.persist()
}

// Remove deletes the session for userID. Removing an unknown user is a no-op.
// If the removed session was active, the first remaining session becomes
// active, or none if the registry is now empty.
func (r *Registry) Remove(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(userID)
	if i < 0 {
		return nil
	}

	r.sessions = slices.Delete(r.sessions, i, i+1)
	if r.hasActive && r.active == userID {
		r.fallbackActive()
	}

	return r.persist()
}

// RemoveToken removes userID's session only if it still holds token, and
// reports whether it did. Active-pointer fallback is the same as Remove.
func (r *Registry) RemoveToken(userID int64, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(userID)
	if i < 0 || r.sessions[i].Token != token {
		return false, nil
	}

	r.sessions = slices.Delete(r.sessions, i, i+1)
	if r.hasActive && r.active == userID {
		r.fallbackActive()
	}

	return true, r.persist()
}

// RemoveAll clears every session and the active pointer.
func (r *Registry) RemoveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = nil
	r.hasActive = false

	return r.persist()
}

// SetActive makes userID the active session.
// It is silently ignored if no session exists for userID, since a caller
// may race with a removal.
func (r *Registry) SetActive(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(userID) < 0 {
		return nil
	}
	r.active, r.hasActive = userID, true

	return r.persist()
}

// PruneExpired drops sessions that have expired since Init and returns
// how many were removed. The store is only written if something changed.
func (r *Registry) PruneExpired() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Clock.Now()
	before := len(r.sessions)
	r.sessions = slices.DeleteFunc(r.sessions, func(s Session) bool {
		return s.IsExpired(now)
	})

	removed := before - len(r.sessions)
	if removed == 0 {
		return 0, nil
	}

	if r.hasActive && r.indexOf(r.active) < 0 {
		r.fallbackActive()
	}

	return removed, r.persist()
}

// Flush rewrites the durable store from memory.
// Use it to retry after a mutation returned ErrPersistFailed.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.persist()
}

// Active returns the active session.
func (r *Registry) Active() (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.hasActive {
		return Session{}, false
	}
	// resolve on every read; never hand out a cached pointer
	i := r.indexOf(r.active)
	if i < 0 {
		return Session{}, false
	}
	return r.sessions[i], true
}

// ActiveUserID returns the active user id, if any.
func (r *Registry) ActiveUserID() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.active, r.hasActive
}

// Get returns the session for userID.
func (r *Registry) Get(userID int64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(userID); i >= 0 {
		return r.sessions[i], true
	}
	return Session{}, false
}

// All returns a copy of all sessions in registry order.
func (r *Registry) All() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sessions) == 0 {
		return nil
	}
	return slices.Clone(r.sessions)
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// indexOf returns the position of userID's session or -1. Caller holds mu.
func (r *Registry) indexOf(userID int64) int {
	return slices.IndexFunc(r.sessions, func(s Session) bool {
		return s.UserID == userID
	})
}

// fallbackActive points the active id at the first session, or clears it.
// Caller holds mu.
func (r *Registry) fallbackActive() {
	if len(r.sessions) > 0 {
		r.active, r.hasActive = r.sessions[0].UserID, true
		return
	}
	r.active, r.hasActive = 0, false
}

// persist overwrites both store keys with the in-memory state. Caller holds mu.
func (r *Registry) persist() error {
	sessions := r.sessions
	if sessions == nil {
		sessions = []Session{}
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	if err := r.kv.Set(r.opts.SessionsKey, string(data)); err != nil {
		r.log.Error("failed to persist sessions", "error", err)
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	if r.hasActive {
		err = r.kv.Set(r.opts.ActiveUserKey, strconv.FormatInt(r.active, 10))
	} else {
		err = r.kv.Remove(r.opts.ActiveUserKey)
	}
	if err != nil {
		r.log.Error("failed to persist active user", "error", err)
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	return nil
}
