package store

import "sync"

// MemoryStore implements KeyValueStore using an in-memory map.
// Nothing survives the process, so this is useful for testing but not
// as the durable store of a real client.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
	closed  bool
}

// NewMemoryStore creates a new in-memory key/value store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]string),
	}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, ErrClosed
	}

	value, ok := s.entries[key]
	return value, ok, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.entries[key] = value
	return nil
}

// Remove deletes key if present.
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.entries, key)
	return nil
}

// Keys returns the number of stored keys.
func (s *MemoryStore) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close marks the store closed. Later calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
