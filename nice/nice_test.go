package nice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNiceString_NoData(t *testing.T) {
	assert.Equal(t, "(~ not authorized ~)", From(NotAuthorized).String())
	assert.Equal(t, "(~ server error ~)", From(ServerError).String())
}

func TestNiceString_WithData(t *testing.T) {
	s := WithData(BadRequest, map[string]string{"field": "email"}).String()
	assert.Equal(t, `(~ bad request ~~ {"field":"email"} ~)`, s)
}

func TestMethodErrorWire(t *testing.T) {
	assert.Equal(t, "(~ not found ~)", ErrNotFound.Wire())
	assert.Equal(t, "(~ server error ~)", ErrServer.Wire())
}

func TestIsNoResponse(t *testing.T) {
	assert.True(t, IsNoResponse(ErrNoResponse))
	assert.False(t, IsNoResponse(ErrNotFound))
	assert.False(t, IsNoResponse(assert.AnError))
}
