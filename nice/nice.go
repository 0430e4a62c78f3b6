// Package nice implements the "nice message" formatter: the stable,
// human-readable error strings the engine puts on the wire, and the
// narrow set of errors a handler is allowed to return.
//
package nice

import (
	"encoding/json"
	"fmt"
)

// Message is the canonical vocabulary a Nice value can carry.
type Message int

const (
	ServerError Message = iota
	NotFound
	NotAuthorized
	NotAuthenticated
	BadRequest
)

func (m Message) String() string {
	switch m {
	case ServerError:
		return "server error"
	case NotFound:
		return "not found"
	case NotAuthorized:
		return "not authorized"
	case NotAuthenticated:
		return "not authenticated"
	case BadRequest:
		return "bad request"
	default:
		return "server error"
	}
}

// Nice is a formatted wire error payload: "(~ <message> ~)" or, with an
// attached data blob, "(~ <message> ~~ <json-data> ~)".
type Nice struct {
	msg  Message
	data any
}

// From wraps a bare Message with no attached data.
func From(msg Message) Nice {
	return Nice{msg: msg}
}

// WithData attaches a JSON-serializable data blob to the message.
func WithData(msg Message, data any) Nice {
	return Nice{msg: msg, data: data}
}

// String renders the canonical "(~ ... ~)" wire form.
func (n Nice) String() string {
	if n.data == nil {
		return fmt.Sprintf("(~ %s ~)", n.msg)
	}
	b, err := json.Marshal(n.data)
	if err != nil {
		return fmt.Sprintf("(~ %s ~)", n.msg)
	}
	return fmt.Sprintf("(~ %s ~~ %s ~)", n.msg, b)
}

// MethodError is the narrow error vocabulary surfaced to handler
// authors. A handler returns one of these (or nil on success); the
// engine maps it to the matching Nice string on the wire.
type MethodError struct {
	kind Message
}

var (
	ErrServer           = &MethodError{kind: ServerError}
	ErrNotFound         = &MethodError{kind: NotFound}
	ErrNotAuthorized    = &MethodError{kind: NotAuthorized}
	ErrNotAuthenticated = &MethodError{kind: NotAuthenticated}
)

// ErrNoResponse is the "produce nothing this tick" sentinel, only
// meaningful when returned by a push (topic) handler.
var ErrNoResponse = &MethodError{kind: -1}

func (e *MethodError) Error() string {
	if e == ErrNoResponse {
		return "no response"
	}
	return From(e.kind).String()
}

// IsNoResponse reports whether err is the NoResponse sentinel.
func IsNoResponse(err error) bool {
	me, ok := err.(*MethodError)
	return ok && me == ErrNoResponse
}

// Wire renders err as the Nice variant string, for embedding directly
// as a Response.Response value.
func (e *MethodError) Wire() string {
	return From(e.kind).String()
}
