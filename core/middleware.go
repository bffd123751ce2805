package core

import (
	"context"
	"sync"
)

// Direction tags which queue role a message is flowing through. It is
// passed to every Middleware hook so a single middleware can tell inbound
// user traffic apart from outbound traffic and delivery events.
type Direction string

const (
	DirInbound  Direction = "inbound"
	DirOutbound Direction = "outbound"
	DirEvent    Direction = "event"
	DirFailure  Direction = "failure"
)

// Middleware transforms messages flowing through the dispatcher. msg is a
// *UserMessage for DirInbound/DirOutbound and an *Event for DirEvent;
// implementations type-switch on it. Returning a nil msg (with a nil error)
// signals a drop: the pipeline stops and nothing is published. Returning a
// non-nil error is a middleware failure and also stops the pipeline.
//
// Middlewares are constructed once at startup from their configuration
// subtree (see MiddlewareFactory), then shared across all dispatch tasks —
// implementations must be stateless or internally synchronized.
type Middleware interface {
	HandleConsume(ctx context.Context, dir Direction, msg any, endpoint string) (any, error)
	HandlePublish(ctx context.Context, dir Direction, msg any, endpoint string) (any, error)
}

// BaseMiddleware implements Middleware as a passthrough. Concrete
// middlewares embed it and override only the hooks they care about.
type BaseMiddleware struct{}

func (BaseMiddleware) HandleConsume(_ context.Context, _ Direction, msg any, _ string) (any, error) {
	return msg, nil
}

func (BaseMiddleware) HandlePublish(_ context.Context, _ Direction, msg any, _ string) (any, error) {
	return msg, nil
}

// MiddlewareStack applies an ordered sequence of Middleware instances:
// HandleConsume runs in declared order on ingress, HandlePublish runs in
// reverse declared order on egress.
type MiddlewareStack struct {
	stack []Middleware
}

// NewMiddlewareStack builds a stack from middlewares in declared order.
func NewMiddlewareStack(mws ...Middleware) *MiddlewareStack {
	cp := make([]Middleware, len(mws))
	copy(cp, mws)
	return &MiddlewareStack{stack: cp}
}

// ApplyConsume runs the consume hook of every middleware in declared order.
func (s *MiddlewareStack) ApplyConsume(ctx context.Context, dir Direction, msg any, endpoint string) (any, error) {
	for _, mw := range s.stack {
		var err error
		msg, err = mw.HandleConsume(ctx, dir, msg, endpoint)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, ErrDropMessage
		}
	}
	return msg, nil
}

// ApplyPublish runs the publish hook of every middleware in the reverse of
// declared order.
func (s *MiddlewareStack) ApplyPublish(ctx context.Context, dir Direction, msg any, endpoint string) (any, error) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		var err error
		msg, err = s.stack[i].HandlePublish(ctx, dir, msg, endpoint)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, ErrDropMessage
		}
	}
	return msg, nil
}

// MiddlewareFactory constructs a Middleware from its config subtree.
// Concrete middleware packages register one of these under a short name via
// RegisterMiddleware, the same static-registry answer to
// `load_class_by_string` that RegisterRouter provides for routers.
type MiddlewareFactory func(cfg Config) (Middleware, error)

var (
	middlewareMu   sync.RWMutex
	middlewareRegs = make(map[string]MiddlewareFactory)
)

// RegisterMiddleware adds a named middleware factory.
func RegisterMiddleware(name string, factory MiddlewareFactory) {
	middlewareMu.Lock()
	defer middlewareMu.Unlock()
	middlewareRegs[name] = factory
}

// NewMiddleware instantiates a registered middleware by name.
func NewMiddleware(name string, cfg Config) (Middleware, error) {
	middlewareMu.RLock()
	factory, ok := middlewareRegs[name]
	middlewareMu.RUnlock()
	if !ok {
		return nil, NewConfigError("middleware", "unknown middleware %q", name)
	}
	return factory(cfg)
}

// NewMiddlewareChain builds the ordered middleware list for a dispatcher's
// `middleware:` config by resolving each name through the registry against
// the shared cfg subtree, in declared order.
func NewMiddlewareChain(names []string, cfg Config) ([]Middleware, error) {
	if len(names) == 0 {
		return nil, nil
	}
	mws := make([]Middleware, 0, len(names))
	for _, name := range names {
		mw, err := NewMiddleware(name, cfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}
