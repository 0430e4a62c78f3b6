package session

import (
	"sync"
)

// Store is the process-wide session registry: a single mutex-protected
// map from connection id to session. A single mutex keeps per-key
// operations linearizable and debug traces deterministic.
type Store struct {
	mu       sync.Mutex
	sessions map[ConnID]*Session
}

// NewStore creates an empty session registry.
func NewStore() *Store {
	return &Store{sessions: make(map[ConnID]*Session)}
}

// Open inserts a fresh Anonymous session and returns its new connection
// id.
func (s *Store) Open() ConnID {
	id := NewConnID()
	s.mu.Lock()
	s.sessions[id] = newAnonymous()
	s.mu.Unlock()
	return id
}

// Close removes the session for id. Idempotent.
func (s *Store) Close(id ConnID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Authenticate replaces the entry for id with a fresh Authenticated
// session. A no-op if id is absent. Demotion is never supported; a
// fresh authentication replaces the session object in place.
func (s *Store) Authenticate(id ConnID, payload AuthPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return
	}
	s.sessions[id] = newAuthenticated(payload)
}

// Lookup returns the session for id, or (nil, false) if none exists.
func (s *Store) Lookup(id ConnID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Subscribe registers topic with params for id's session. Succeeds only
// if the session exists and is Authenticated.
func (s *Store) Subscribe(id ConnID, topic string, params []byte) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || sess.State != Authenticated {
		return false
	}
	sess.Subscriptions().Set(topic, params)
	return true
}

// Unsubscribe removes topic from id's session. Succeeds only if the
// session exists and is Authenticated.
func (s *Store) Unsubscribe(id ConnID, topic string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || sess.State != Authenticated {
		return false
	}
	sess.Subscriptions().Delete(topic)
	return true
}

// Count returns the number of live sessions. Used by the connection
// lifecycle's session-removed log entry and by tests.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every tracked session whose id is not present in
// live. This backs the periodic janitor: a defensive pass that drops
// sessions the lifecycle manager no longer considers live (e.g. after
// a goroutine leak swallowed the close call), never meant to run on
// the hot path.
func (s *Store) Sweep(live func(ConnID) bool) (removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.sessions {
		if !live(id) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
