// Package nitram implements the per-connection RPC dispatch plane of a
// WebSocket gateway: a three-namespace method router, a reflection-based
// resource injector, the dispatch orchestrator, and the connection
// lifecycle engine.
package nitram

import (
	"reflect"

	"github.com/martinschaer/nitram/session"
)

// Resource is the marker a type implements to opt into injection as a
// shared application resource. It carries no behavior — an explicit
// opt-in tag distinguishing a registered resource type from an
// ordinary params struct a handler wants decoded from the call.
type Resource interface {
	NitramResource()
}

// AnonymousSession is the identity injectable a public handler may
// declare: just the connection id, regardless of whether the
// underlying session has since authenticated.
type AnonymousSession struct {
	ConnID session.ConnID
}

// AuthenticatedSession is the identity injectable a private or push
// handler may declare: the connection id and the caller's user id. A
// push handler receives the topic's last-registered params through its
// params argument, not through this value.
type AuthenticatedSession struct {
	ConnID session.ConnID
	UserID string
}

// resourceBag holds every application resource registered at build time,
// keyed by concrete type, so the injector can look one up by the type a
// handler declares positionally.
type resourceBag struct {
	byType map[reflect.Type]reflect.Value
}

func newResourceBag() *resourceBag {
	return &resourceBag{byType: make(map[reflect.Type]reflect.Value)}
}

func (b *resourceBag) add(r Resource) {
	b.byType[reflect.TypeOf(r)] = reflect.ValueOf(r)
}

func (b *resourceBag) get(t reflect.Type) (reflect.Value, bool) {
	v, ok := b.byType[t]
	return v, ok
}

var (
	scratchPtrType    = reflect.TypeOf(&session.Scratch{})
	anonSessionType   = reflect.TypeOf(AnonymousSession{})
	authSessionType   = reflect.TypeOf(AuthenticatedSession{})
	resourceIfaceType = reflect.TypeOf((*Resource)(nil)).Elem()
	errorIfaceType    = reflect.TypeOf((*error)(nil)).Elem()
)
