package authn

import (
	"testing"

	"github.com/martinschaer/nitram"
	"github.com/martinschaer/nitram/session"
	"github.com/martinschaer/nitram/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_PromotesSessionOnValidToken(t *testing.T) {
	store := session.NewStore()
	connID := store.Open()

	_, _, encoded, err := token.Generate("user-1", token.EmailLink, nil)
	require.NoError(t, err)

	res := New(store, token.EmailLink, nil)
	ok, err := res.Authenticate(nitram.AnonymousSession{ConnID: connID}, Params{Token: encoded})
	require.NoError(t, err)
	assert.True(t, ok)

	sess, found := store.Lookup(connID)
	require.True(t, found)
	assert.Equal(t, session.Authenticated, sess.State)
	assert.Equal(t, "user-1", sess.UserID)
}

func TestAuthenticate_RejectsBadToken(t *testing.T) {
	store := session.NewStore()
	connID := store.Open()

	res := New(store, token.EmailLink, nil)
	ok, err := res.Authenticate(nitram.AnonymousSession{ConnID: connID}, Params{Token: "not a token"})
	assert.Error(t, err)
	assert.False(t, ok)

	sess, _ := store.Lookup(connID)
	assert.Equal(t, session.Anonymous, sess.State)
}
