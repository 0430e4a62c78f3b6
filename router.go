package nitram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/martinschaer/nitram/session"
)

// slotKind classifies one positional argument of a registered handler,
// decided once at registration time by the argument's declared type: a
// handler declares, positionally, which injectables it consumes.
type slotKind int

const (
	slotResource slotKind = iota
	slotAnonSession
	slotAuthSession
	slotScratch
	slotParams
)

// binder is the compiled, ready-to-invoke form of a registered handler:
// its reflected function value plus, for every positional argument, how
// to fill it in from a call's resource bag.
type binder struct {
	name      string
	fn        reflect.Value
	slots     []slotKind
	slotTypes []reflect.Type // only meaningful for slotResource
	paramsIdx int            // -1 if the handler takes no params
	paramsTyp reflect.Type
}

// newBinder reflects over fn's signature and resolves every argument to
// a slotKind. Any failure here is a configuration error — a missing
// required injectable — that must surface at build time, never at
// runtime: newBinder is only ever called while the Builder is
// assembling namespaces, before the engine is built.
func newBinder(name string, fn any, resources *resourceBag) (*binder, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler %q: not a function", name)
	}
	if t.NumOut() != 2 || !t.Out(1).Implements(errorIfaceType) {
		return nil, fmt.Errorf("handler %q: must return (result, error)", name)
	}

	b := &binder{name: name, fn: v, paramsIdx: -1}
	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		switch {
		case in == anonSessionType:
			b.slots = append(b.slots, slotAnonSession)
			b.slotTypes = append(b.slotTypes, nil)
		case in == authSessionType:
			b.slots = append(b.slots, slotAuthSession)
			b.slotTypes = append(b.slotTypes, nil)
		case in == scratchPtrType:
			b.slots = append(b.slots, slotScratch)
			b.slotTypes = append(b.slotTypes, nil)
		case in.Implements(resourceIfaceType):
			if _, ok := resources.get(in); !ok {
				return nil, fmt.Errorf("handler %q: requires unregistered resource %s", name, in)
			}
			b.slots = append(b.slots, slotResource)
			b.slotTypes = append(b.slotTypes, in)
		default:
			if b.paramsIdx != -1 {
				return nil, fmt.Errorf("handler %q: more than one params-shaped argument (%s and %s)", name, b.paramsTyp, in)
			}
			b.paramsIdx = i
			b.paramsTyp = in
			b.slots = append(b.slots, slotParams)
			b.slotTypes = append(b.slotTypes, nil)
		}
	}
	return b, nil
}

// call builds the argument vector and invokes the handler. params may be
// nil (push handlers invoked with no registration params, or handlers
// with no declared params argument).
func (b *binder) call(resources *resourceBag, anon *AnonymousSession, auth *AuthenticatedSession, scratch *session.Scratch, params json.RawMessage) (any, error) {
	args := make([]reflect.Value, len(b.slots))
	for i, kind := range b.slots {
		switch kind {
		case slotAnonSession:
			if anon == nil {
				return nil, fmt.Errorf("handler %q: no anonymous session in this call", b.name)
			}
			args[i] = reflect.ValueOf(*anon)
		case slotAuthSession:
			if auth == nil {
				return nil, fmt.Errorf("handler %q: no authenticated session in this call", b.name)
			}
			args[i] = reflect.ValueOf(*auth)
		case slotScratch:
			args[i] = reflect.ValueOf(scratch)
		case slotResource:
			rv, _ := resources.get(b.slotTypes[i])
			args[i] = rv
		case slotParams:
			ptr := reflect.New(b.paramsTyp)
			if len(params) > 0 {
				// DisallowUnknownFields catches a caller sending the wrong
				// shape entirely (e.g. {"wrong":69} for a struct expecting
				// "code"): a bare Unmarshal would silently zero-value the
				// missing field and let the handler run on garbage input.
				dec := json.NewDecoder(bytes.NewReader(params))
				dec.DisallowUnknownFields()
				if err := dec.Decode(ptr.Interface()); err != nil {
					return nil, errParamsParsing{err}
				}
			} else if !b.paramsTypeIsEmptyable() {
				return nil, errParamsMissing{}
			}
			args[i] = ptr.Elem()
		}
	}

	out := b.fn.Call(args)
	resVal, errVal := out[0], out[1]
	if !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}
	return resVal.Interface(), nil
}

// paramsTypeIsEmptyable reports whether the handler's params struct can
// reasonably be zero-valued when no params were sent (a struct with no
// fields, e.g. the EmptyParams convention). Anything else requires the
// caller to actually send params.
func (b *binder) paramsTypeIsEmptyable() bool {
	if b.paramsIdx == -1 {
		return true
	}
	return b.paramsTyp.Kind() == reflect.Struct && b.paramsTyp.NumField() == 0
}

// errParamsParsing / errParamsMissing are the two internal causes that
// map to the "(~ bad request ~)" wire response.
type errParamsParsing struct{ cause error }

func (e errParamsParsing) Error() string { return fmt.Sprintf("params parsing: %v", e.cause) }

type errParamsMissing struct{}

func (errParamsMissing) Error() string { return "params missing" }

// namespace is one of the three independent method-name -> handler
// mappings: public, private, push. Registration is append-only during
// the build phase; freeze makes it immutable and rejects any further
// registration.
type namespace struct {
	handlers map[string]*binder
	order    []string // registration order, for push-drain determinism
	frozen   bool
}

func newNamespace() *namespace {
	return &namespace{handlers: make(map[string]*binder)}
}

func (n *namespace) add(name string, fn any, resources *resourceBag) error {
	if n.frozen {
		return fmt.Errorf("namespace frozen: cannot register %q", name)
	}
	b, err := newBinder(name, fn, resources)
	if err != nil {
		return err
	}
	if _, exists := n.handlers[name]; !exists {
		n.order = append(n.order, name)
	}
	n.handlers[name] = b
	return nil
}

func (n *namespace) freeze() { n.frozen = true }

func (n *namespace) get(name string) (*binder, bool) {
	b, ok := n.handlers[name]
	return b, ok
}

func (n *namespace) has(name string) bool {
	_, ok := n.handlers[name]
	return ok
}
