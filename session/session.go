// Package session implements the per-connection session registry: the
// anonymous-to-authenticated state machine, the per-session topic
// subscription table, and the per-session scratch store. Subscriptions
// carry their last-registered params, and every session, authenticated
// or not, owns a scratch store.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnID is the opaque 128-bit identifier minted for an accepted
// connection. It is never reused for the engine's lifetime.
type ConnID = uuid.UUID

// NewConnID mints a fresh connection id.
func NewConnID() ConnID { return uuid.New() }

// AuthPayload is everything the engine needs to promote a session from
// Anonymous to Authenticated.
type AuthPayload struct {
	UserID      string
	DBSessionID string
	Strategy    string
	Token       string
	ExpiresAt   time.Time
}

// State tags whether a Session is Anonymous or Authenticated.
type State int

const (
	Anonymous State = iota
	Authenticated
)

// Session is either Anonymous, carrying no identity, or Authenticated,
// additionally carrying identity. Both states own a subscription table
// and a scratch store; the connection id is the Store's key, not a
// field of the Session.
type Session struct {
	State State

	// Authenticated-only fields. Zero value when State == Anonymous.
	UserID      string
	DBSessionID string
	Strategy    string
	Token       string
	ExpiresAt   time.Time

	subs    *subscriptionTable
	scratch *Scratch
}

// Subscriptions returns the session's topic subscription table. Callers
// must check State == Authenticated first. An Anonymous session's table
// is usable, but Store.Subscribe refuses Anonymous sessions, so it stays
// empty unless written to directly.
func (s *Session) Subscriptions() *subscriptionTable {
	if s.subs == nil {
		s.subs = newSubscriptionTable()
	}
	return s.subs
}

// Scratch returns the session's scratch store. Same Anonymous caveat as
// Subscriptions: it is a live, usable, but never-populated-by-the-engine
// store for an Anonymous session.
func (s *Session) Scratch() *Scratch {
	if s.scratch == nil {
		s.scratch = NewScratch()
	}
	return s.scratch
}

func newAnonymous() *Session {
	return &Session{State: Anonymous, subs: newSubscriptionTable(), scratch: NewScratch()}
}

func newAuthenticated(p AuthPayload) *Session {
	return &Session{
		State:       Authenticated,
		UserID:      p.UserID,
		DBSessionID: p.DBSessionID,
		Strategy:    p.Strategy,
		Token:       p.Token,
		ExpiresAt:   p.ExpiresAt,
		subs:        newSubscriptionTable(),
		scratch:     NewScratch(),
	}
}

// subscriptionTable maps topic name to the caller-supplied registration
// params, replayed on every drain.
type subscriptionTable struct {
	mu    sync.Mutex
	byTop map[string]json.RawMessage
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{byTop: make(map[string]json.RawMessage)}
}

func (t *subscriptionTable) Set(topic string, params json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTop[topic] = params
}

func (t *subscriptionTable) Delete(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byTop, topic)
}

func (t *subscriptionTable) Get(topic string) (json.RawMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byTop[topic]
	return p, ok
}

// Scratch is the per-session concurrency-safe key/value store shared by
// reference across every handler call made under the same session. It
// is independently mutex-protected, never folded into the session
// store's own mutex, so a handler holding a scratch lock can never
// deadlock against session lookup/open/close.
type Scratch struct {
	mu   sync.Mutex
	data map[string]any
}

// NewScratch allocates an empty scratch store.
func NewScratch() *Scratch {
	return &Scratch{data: make(map[string]any)}
}

// Get returns the value stored under key, or (nil, false).
func (s *Scratch) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key.
func (s *Scratch) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key, if present.
func (s *Scratch) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}
