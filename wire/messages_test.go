package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse(t *testing.T) {
	r := ErrorResponse("Invalid message, check API")
	assert.Equal(t, ErrID, r.ID)
	assert.Equal(t, ErrMethod, r.Method)
	assert.False(t, r.OK)
}

func TestRequest_RoundTrips(t *testing.T) {
	raw := `{"id":"1","method":"Mock","params":{"code":"hi"}}`
	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "Mock", req.Method)
	assert.JSONEq(t, `{"code":"hi"}`, string(req.Params))
}
