package nitram

import (
	"github.com/martinschaer/nitram/internal/logger"
	"github.com/martinschaer/nitram/session"
)

const (
	defaultPingIntervalSeconds = 5
	defaultTimeoutSeconds      = 10
	defaultMaxFrameSize        = 128 * 1024 // 128 KiB
)

// Builder assembles an Engine from registered handlers, resources, and
// tunables. Registration is append-only; Build freezes all three
// namespaces and returns a handle clonable across connections.
type Builder struct {
	resources *resourceBag
	public    *namespace
	private   *namespace
	push      *namespace
	store     *session.Store

	pingInterval   int
	timeout        int
	pushIntervalMS int
	maxFrameSize   int64

	err error // first registration error, surfaced by Build
}

// NewBuilder creates a Builder with sensible default tunables. The
// session store is allocated here, not in Build, so a resource that
// wraps it (an authentication handler, say) can be registered before
// the engine exists.
func NewBuilder() *Builder {
	return &Builder{
		resources:    newResourceBag(),
		public:       newNamespace(),
		private:      newNamespace(),
		push:         newNamespace(),
		store:        session.NewStore(),
		pingInterval: defaultPingIntervalSeconds,
		timeout:      defaultTimeoutSeconds,
		maxFrameSize: defaultMaxFrameSize,
	}
}

// Store returns the session store the eventual Engine will use. Wrap
// it in a Resource to make the authentication handshake (or any other
// store-touching handler) injectable.
func (b *Builder) Store() *session.Store { return b.store }

// AddResource makes r injectable into every handler in every namespace.
func (b *Builder) AddResource(r Resource) *Builder {
	b.resources.add(r)
	return b
}

// AddPublicHandler registers h under name in the public namespace. h
// may be invoked by either session state.
func (b *Builder) AddPublicHandler(name string, h any) *Builder {
	if err := b.public.add(name, h, b.resources); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// AddPrivateHandler registers h under name in the private namespace. h
// requires an Authenticated session.
func (b *Builder) AddPrivateHandler(name string, h any) *Builder {
	if err := b.private.add(name, h, b.resources); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// AddPushHandler registers h under name in the push namespace. h is
// invoked only by the outbound loop, only for Authenticated sessions
// that subscribed to the matching topic.
func (b *Builder) AddPushHandler(name string, h any) *Builder {
	if err := b.push.add(name, h, b.resources); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// PingIntervalSeconds sets the outbound loop period (default 5).
func (b *Builder) PingIntervalSeconds(seconds int) *Builder {
	b.pingInterval = seconds
	return b
}

// TimeoutSeconds sets the max time since last pong before forced close
// (default 10).
func (b *Builder) TimeoutSeconds(seconds int) *Builder {
	b.timeout = seconds
	return b
}

// ServerMessagesIntervalMillis sets the minimum spacing between push
// drains; if never called, the outbound loop reuses the ping tick.
func (b *Builder) ServerMessagesIntervalMillis(millis int) *Builder {
	b.pushIntervalMS = millis
	return b
}

// MaxFrameSize sets the inbound frame size cap (default 128 KiB).
func (b *Builder) MaxFrameSize(bytes int64) *Builder {
	b.maxFrameSize = bytes
	return b
}

// Build freezes all three namespaces and returns the engine handle. It
// panics if any handler registered along the way declared an
// injectable the builder cannot satisfy — a configuration error that
// must surface at build time, never at runtime.
func (b *Builder) Build() *Engine {
	if b.err != nil {
		panic("nitram: builder configuration error: " + b.err.Error())
	}

	b.public.freeze()
	b.private.freeze()
	b.push.freeze()

	logger.Engine().Debug().Strs("public", b.public.order).
		Strs("private", b.private.order).
		Strs("push", b.push.order).
		Msg("nitram engine built")

	return &Engine{
		public:         b.public,
		private:        b.private,
		push:           b.push,
		resources:      b.resources,
		store:          b.store,
		tracker:        newConnTracker(),
		pingInterval:   b.pingInterval,
		timeout:        b.timeout,
		pushIntervalMS: b.pushIntervalMS,
		maxFrameSize:   b.maxFrameSize,
	}
}
