package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLookupClose(t *testing.T) {
	s := NewStore()
	id := s.Open()

	sess, ok := s.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, Anonymous, sess.State)

	s.Close(id)
	_, ok = s.Lookup(id)
	assert.False(t, ok)
}

func TestClose_Idempotent(t *testing.T) {
	s := NewStore()
	id := s.Open()
	s.Close(id)
	assert.NotPanics(t, func() { s.Close(id) })
}

func TestAuthenticate_PromotesSession(t *testing.T) {
	s := NewStore()
	id := s.Open()

	s.Authenticate(id, AuthPayload{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})

	sess, ok := s.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, Authenticated, sess.State)
	assert.Equal(t, "u1", sess.UserID)
}

func TestAuthenticate_NoopWhenAbsent(t *testing.T) {
	s := NewStore()
	id := NewConnID()
	assert.NotPanics(t, func() { s.Authenticate(id, AuthPayload{UserID: "ghost"}) })
	_, ok := s.Lookup(id)
	assert.False(t, ok)
}

func TestSubscribeUnsubscribe_RequiresAuthenticated(t *testing.T) {
	s := NewStore()
	anon := s.Open()
	assert.False(t, s.Subscribe(anon, "topic", nil))

	auth := s.Open()
	s.Authenticate(auth, AuthPayload{UserID: "u2"})
	assert.True(t, s.Subscribe(auth, "topic", []byte(`{"a":1}`)))

	sess, _ := s.Lookup(auth)
	params, ok := sess.Subscriptions().Get("topic")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(params))

	assert.True(t, s.Unsubscribe(auth, "topic"))
	_, ok = sess.Subscriptions().Get("topic")
	assert.False(t, ok)
}

func TestCountAndSweep(t *testing.T) {
	s := NewStore()
	live := s.Open()
	leaked := s.Open()
	assert.Equal(t, 2, s.Count())

	removed := s.Sweep(func(id ConnID) bool { return id == live })
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Count())

	_, ok := s.Lookup(leaked)
	assert.False(t, ok)
	_, ok = s.Lookup(live)
	assert.True(t, ok)
}
