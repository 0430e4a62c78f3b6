package nitram

import (
	"encoding/json"
	"testing"

	"github.com/martinschaer/nitram/nice"
	"github.com/martinschaer/nitram/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResource struct{}

func (*mockResource) NitramResource() {}

type mockParams struct {
	Code string `json:"code"`
}

func mockPublicHandler(_ *mockResource, _ AnonymousSession, p mockParams) (string, error) {
	return p.Code, nil
}

func mockPrivateHandler(_ *mockResource, _ AuthenticatedSession, p mockParams) (string, error) {
	if p.Code == "return error" {
		return "", nice.ErrServer
	}
	return upper(p.Code), nil
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func buildTestEngine(t *testing.T) (*Engine, session.ConnID, session.ConnID) {
	t.Helper()
	b := NewBuilder()
	b.AddResource(&mockResource{})
	b.AddPublicHandler("Mock", mockPublicHandler)
	b.AddPrivateHandler("MockPrivate", mockPrivateHandler)
	engine := b.Build()

	anon := engine.Store().Open()
	auth := engine.Store().Open()
	engine.Store().Authenticate(auth, session.AuthPayload{UserID: "fake_user"})
	return engine, anon, auth
}

func decodeResponse(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestDispatch_PublicHandler(t *testing.T) {
	engine, _, auth := buildTestEngine(t)
	resp := engine.Dispatch(auth, `{"id":"1","method":"Mock","params":{"code":"hello"}}`)
	m := decodeResponse(t, resp)
	assert.Equal(t, "1", m["id"])
	assert.Equal(t, "hello", m["response"])
	assert.Equal(t, true, m["ok"])
}

func TestDispatch_PrivateHandler_Authenticated(t *testing.T) {
	engine, _, auth := buildTestEngine(t)
	resp := engine.Dispatch(auth, `{"id":"1","method":"MockPrivate","params":{"code":"hello"}}`)
	m := decodeResponse(t, resp)
	assert.Equal(t, "HELLO", m["response"])
	assert.Equal(t, true, m["ok"])
}

func TestDispatch_PrivateHandler_NotAuthorized(t *testing.T) {
	engine, anon, _ := buildTestEngine(t)
	resp := engine.Dispatch(anon, `{"id":"1","method":"MockPrivate","params":{"code":"hello"}}`)
	m := decodeResponse(t, resp)
	assert.Equal(t, "(~ not authorized ~)", m["response"])
	assert.Equal(t, false, m["ok"])
}

func TestDispatch_HandlerServerError(t *testing.T) {
	engine, _, auth := buildTestEngine(t)
	resp := engine.Dispatch(auth, `{"id":"1","method":"MockPrivate","params":{"code":"return error"}}`)
	m := decodeResponse(t, resp)
	assert.Equal(t, "(~ server error ~)", m["response"])
	assert.Equal(t, false, m["ok"])
}

func TestDispatch_WrongParams(t *testing.T) {
	engine, _, auth := buildTestEngine(t)
	resp := engine.Dispatch(auth, `{"id":"1","method":"Mock","params":{"wrong":69}}`)
	m := decodeResponse(t, resp)
	assert.Equal(t, "(~ bad request ~)", m["response"])
	assert.Equal(t, false, m["ok"])
}

func TestDispatch_UnknownMethod(t *testing.T) {
	engine, _, auth := buildTestEngine(t)
	resp := engine.Dispatch(auth, `{"id":"1","method":"Nope","params":{}}`)
	m := decodeResponse(t, resp)
	assert.Equal(t, "(~ bad request ~)", m["response"])
}

func TestDispatch_MalformedJSON(t *testing.T) {
	engine, _, _ := buildTestEngine(t)
	resp := engine.Dispatch(session.NewConnID(), `not json`)
	m := decodeResponse(t, resp)
	assert.Equal(t, "_err", m["id"])
	assert.Equal(t, "_err", m["method"])
	assert.Equal(t, false, m["ok"])
}

func TestBuild_PanicsOnUnregisteredResource(t *testing.T) {
	b := NewBuilder()
	b.AddPublicHandler("Mock", mockPublicHandler) // mockResource never registered
	assert.Panics(t, func() { b.Build() })
}

func pushHandler(_ AuthenticatedSession) (int, error) {
	return 1, nil
}

func pushNoResponseHandler(_ AuthenticatedSession) (int, error) {
	return 0, nice.ErrNoResponse
}

func TestDrain_TopicRegisterDeregister(t *testing.T) {
	b := NewBuilder()
	b.AddPushHandler("Counter", pushHandler)
	engine := b.Build()

	auth := engine.Store().Open()
	engine.Store().Authenticate(auth, session.AuthPayload{UserID: "u1"})

	assert.Empty(t, engine.Drain(auth))

	engine.Dispatch(auth, `{"id":"1","method":"nitram_topic_register","params":{"topic":"Counter","handler_params":{}}}`)
	batch := engine.Drain(auth)
	require.Len(t, batch, 1)
	assert.Equal(t, "Counter", batch[0].Topic)

	engine.Dispatch(auth, `{"id":"2","method":"nitram_topic_deregister","params":{"topic":"Counter"}}`)
	assert.Empty(t, engine.Drain(auth))
}

func TestDrain_NoResponseOmitsTopic(t *testing.T) {
	b := NewBuilder()
	b.AddPushHandler("Quiet", pushNoResponseHandler)
	engine := b.Build()

	auth := engine.Store().Open()
	engine.Store().Authenticate(auth, session.AuthPayload{UserID: "u1"})
	engine.Dispatch(auth, `{"id":"1","method":"nitram_topic_register","params":{"topic":"Quiet"}}`)

	assert.Empty(t, engine.Drain(auth))
}

func TestDrain_AnonymousSessionNeverDrained(t *testing.T) {
	b := NewBuilder()
	b.AddPushHandler("Counter", pushHandler)
	engine := b.Build()

	anon := engine.Store().Open()
	assert.Empty(t, engine.Drain(anon))
}
