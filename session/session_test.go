package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScratch_GetSetDelete(t *testing.T) {
	sc := NewScratch()

	_, ok := sc.Get("counter")
	assert.False(t, ok)

	sc.Set("counter", 1)
	v, ok := sc.Get("counter")
	require := assert.New(t)
	require.True(ok)
	require.Equal(1, v)

	sc.Delete("counter")
	_, ok = sc.Get("counter")
	assert.False(t, ok)
}

func TestAnonymousSession_UsableScratchAndSubscriptions(t *testing.T) {
	s := newAnonymous()
	assert.Equal(t, Anonymous, s.State)

	s.Scratch().Set("k", "v")
	v, ok := s.Scratch().Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	s.Subscriptions().Set("topic", []byte("1"))
	_, ok = s.Subscriptions().Get("topic")
	assert.True(t, ok)
}
