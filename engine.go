package nitram

import (
	"encoding/json"
	"errors"

	"github.com/martinschaer/nitram/internal/logger"
	"github.com/martinschaer/nitram/nice"
	"github.com/martinschaer/nitram/session"
	"github.com/martinschaer/nitram/wire"
)

// Reserved method names the engine itself handles, never user-registered.
const (
	TopicRegister   = "nitram_topic_register"
	TopicDeregister = "nitram_topic_deregister"
)

var (
	errMethodNotFound   = errors.New("method not found")
	errNotAuthenticated = errors.New("not authenticated")
	errNotAuthorized    = errors.New("not authorized")
)

// Engine is the built, immutable dispatch plane: the three frozen
// namespaces, the shared resource bag, the session store, and the
// configured tunables. Construct one with Builder.Build.
type Engine struct {
	public  *namespace
	private *namespace
	push    *namespace

	resources *resourceBag
	store     *session.Store
	tracker   *connTracker

	pingInterval   int // seconds
	timeout        int // seconds
	pushIntervalMS int // 0 means "reuse the ping tick"
	maxFrameSize   int64
}

type topicRegisterParams struct {
	Topic         string          `json:"topic"`
	HandlerParams json.RawMessage `json:"handler_params"`
}

type topicDeregisterParams struct {
	Topic string `json:"topic"`
}

// Dispatch parses the frame, classifies the method, enforces auth
// preconditions, invokes the handler, and wraps the outcome into the
// wire response text.
func (e *Engine) Dispatch(connID session.ConnID, rawFrame string) string {
	var req wire.Request
	if err := json.Unmarshal([]byte(rawFrame), &req); err != nil {
		return mustJSON(wire.ErrorResponse("Invalid message, check API"))
	}

	// Reserved subscription methods short-circuit the namespace router
	// entirely — they execute inline under the session store and always
	// answer ok:true,response:true, even when the session turns out not
	// to be authenticated or the params are malformed (silently logged
	// instead).
	switch req.Method {
	case TopicRegister:
		e.handleTopicRegister(connID, req.Params)
		return mustJSON(wire.Response{ID: req.ID, Method: req.Method, Response: true, OK: true})
	case TopicDeregister:
		e.handleTopicDeregister(connID, req.Params)
		return mustJSON(wire.Response{ID: req.ID, Method: req.Method, Response: true, OK: true})
	}

	result, err := e.handle(connID, req.Method, req.Params)
	resp := wire.Response{ID: req.ID, Method: req.Method, OK: err == nil}
	if err == nil {
		resp.Response = result
		return mustJSON(resp)
	}
	resp.Response = e.wireError(req.Method, err)
	return mustJSON(resp)
}

// handle classifies method into public/private/unknown and invokes the
// matching handler. Public is checked before private; a name
// registered in both is treated as public.
func (e *Engine) handle(connID session.ConnID, method string, params json.RawMessage) (any, error) {
	logger.Engine().Debug().Str("method", method).Msg("dispatching")

	if b, ok := e.public.get(method); ok {
		anon := &AnonymousSession{ConnID: connID}
		return b.call(e.resources, anon, nil, e.anonymousScratch(connID), params)
	}

	if b, ok := e.private.get(method); ok {
		sess, ok := e.store.Lookup(connID)
		if !ok {
			return nil, errNotAuthenticated
		}
		if sess.State != session.Authenticated {
			return nil, errNotAuthorized
		}
		auth := &AuthenticatedSession{ConnID: connID, UserID: sess.UserID}
		return b.call(e.resources, nil, auth, sess.Scratch(), params)
	}

	return nil, errMethodNotFound
}

// anonymousScratch gives a public handler a usable scratch store even
// before authentication, so pre-auth handlers (e.g. a login attempt
// counter) have somewhere to keep state too. It is the scratch store of
// whatever session is currently registered for connID, Anonymous or
// not: nothing forbids a public handler from reading the scratch store
// of a session that later authenticates.
func (e *Engine) anonymousScratch(connID session.ConnID) *session.Scratch {
	if sess, ok := e.store.Lookup(connID); ok {
		return sess.Scratch()
	}
	return session.NewScratch()
}

// wireError maps an internal dispatch failure to the stable wire
// string a client can pattern-match on.
func (e *Engine) wireError(method string, err error) string {
	switch {
	case errors.Is(err, errNotAuthorized):
		return nice.From(nice.NotAuthorized).String()
	case errors.Is(err, errNotAuthenticated):
		return nice.From(nice.NotAuthenticated).String()
	case errors.Is(err, errMethodNotFound):
		return nice.From(nice.BadRequest).String()
	}
	var pp errParamsParsing
	if errors.As(err, &pp) {
		return nice.From(nice.BadRequest).String()
	}
	var pm errParamsMissing
	if errors.As(err, &pm) {
		return nice.From(nice.BadRequest).String()
	}
	var me *nice.MethodError
	if errors.As(err, &me) {
		if nice.IsNoResponse(me) {
			// A request-path NoResponse has no special wire shape: it
			// downgrades to a server error, same as any other
			// unexpected cause.
			logger.Engine().Warn().Str("method", method).Msg("handler returned NoResponse on the request path")
			return nice.From(nice.ServerError).String()
		}
		return me.Wire()
	}
	logger.Engine().Error().Err(err).Str("method", method).Msg("unmapped handler error, downgrading to server error")
	return nice.From(nice.ServerError).String()
}

func (e *Engine) handleTopicRegister(connID session.ConnID, raw json.RawMessage) {
	var p topicRegisterParams
	if err := json.Unmarshal(raw, &p); err != nil || p.Topic == "" {
		logger.Engine().Debug().Err(err).Msg("nitram_topic_register: malformed params, ignoring")
		return
	}
	if !e.store.Subscribe(connID, p.Topic, p.HandlerParams) {
		logger.Engine().Debug().Str("topic", p.Topic).Msg("nitram_topic_register: session not authenticated, ignoring")
	}
}

func (e *Engine) handleTopicDeregister(connID session.ConnID, raw json.RawMessage) {
	var p topicDeregisterParams
	if err := json.Unmarshal(raw, &p); err != nil || p.Topic == "" {
		logger.Engine().Debug().Err(err).Msg("nitram_topic_deregister: malformed params, ignoring")
		return
	}
	e.store.Unsubscribe(connID, p.Topic)
}

// Drain implements the push-drain contract: for every push method
// registered at build time, check whether the session's subscription
// table holds that topic, and if so invoke the handler with its stored
// params. Order matches push-handler registration order, for
// determinism.
func (e *Engine) Drain(connID session.ConnID) []wire.PushMessage {
	sess, ok := e.store.Lookup(connID)
	if !ok || sess.State != session.Authenticated {
		return nil
	}

	var out []wire.PushMessage
	for _, topic := range e.push.order {
		params, subscribed := sess.Subscriptions().Get(topic)
		if !subscribed {
			continue
		}
		b, _ := e.push.get(topic)
		auth := &AuthenticatedSession{ConnID: connID, UserID: sess.UserID}
		result, err := b.call(e.resources, nil, auth, sess.Scratch(), params)
		if err != nil {
			var me *nice.MethodError
			if errors.As(err, &me) && nice.IsNoResponse(me) {
				continue // "no push this tick"; keep polling
			}
			logger.Engine().Warn().Err(err).Str("topic", topic).Msg("push handler error, omitting from batch")
			continue
		}
		out = append(out, wire.PushMessage{Topic: topic, Payload: result})
	}
	return out
}

// Store exposes the engine's session registry for transport glue
// (connection accept/close, authentication handshake).
func (e *Engine) Store() *session.Store { return e.store }

// PingIntervalSeconds, TimeoutSeconds, PushIntervalMillis and
// MaxFrameSize expose the builder-configured tunables to the connection
// lifecycle manager.
func (e *Engine) PingIntervalSeconds() int { return e.pingInterval }
func (e *Engine) TimeoutSeconds() int      { return e.timeout }
func (e *Engine) PushIntervalMillis() int {
	if e.pushIntervalMS > 0 {
		return e.pushIntervalMS
	}
	return e.pingInterval * 1000
}
func (e *Engine) MaxFrameSize() int64 { return e.maxFrameSize }

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Response/Request types are simple, JSON-safe structs; a
		// marshal failure here would mean a handler returned a value
		// json.Marshal cannot serialize at all. Fall back to the
		// canonical server-error wire string rather than panicking the
		// dispatch loop — the orchestrator never panics on a live
		// connection.
		logger.Engine().Error().Err(err).Msg("failed to marshal wire response")
		return `{"id":"_err","method":"_err","response":"(~ server error ~)","ok":false}`
	}
	return string(b)
}
