package core

import (
	"context"
	"sort"
	"sync"
)

// Router is the polymorphic routing contract every concrete router
// implements. All routers are constructed with (dispatcher, config) and
// share this contract so the dispatcher can delegate to whichever one was
// selected by router_class without knowing its concrete type.
type Router interface {
	DispatchInboundMessage(ctx context.Context, msg *UserMessage) error
	DispatchInboundEvent(ctx context.Context, evt *Event) error
	DispatchOutboundMessage(ctx context.Context, msg *UserMessage) error
}

// RouterFactory constructs a Router from a Dispatcher and its config
// subtree. Concrete router packages register one of these under a short
// name via RegisterRouter.
type RouterFactory func(d *Dispatcher, cfg Config) (Router, error)

var (
	routerMu   sync.RWMutex
	routerRegs = make(map[string]RouterFactory)
)

// RegisterRouter adds a named router factory: router packages call this
// from an init() func, so router_class resolves against a static registry
// instead of a dynamically loaded class path.
func RegisterRouter(name string, factory RouterFactory) {
	routerMu.Lock()
	defer routerMu.Unlock()
	routerRegs[name] = factory
}

// NewRouter instantiates a registered router by name.
func NewRouter(name string, d *Dispatcher, cfg Config) (Router, error) {
	routerMu.RLock()
	factory, ok := routerRegs[name]
	routerMu.RUnlock()
	if !ok {
		return nil, NewConfigError("router", "unknown router_class %q", name)
	}
	return factory(d, cfg)
}

// RoutingSetup is implemented by routers that need a setup step after field
// assignment — compiling regexes, validating rules, opening KV connections.
// Dispatcher.setupRouter calls it once right after construction.
// FromAddrMultiplex and ContentKeyword implement it: their constructors only
// capture the dispatcher and config subtree, and SetupRouting does the
// cardinality/rule validation and field derivation. The other built-in
// routers validate directly in their constructor instead; a constructor
// that can fail already returns an error.
type RoutingSetup interface {
	SetupRouting() error
}

// SimpleOutbound implements the Simple router's outbound semantics: the
// destination transport is transport_mappings.get(msg.transport_name,
// msg.transport_name), with the message published unchanged. ToAddr,
// UserGrouping, and ContentKeyword all call this directly for their own
// DispatchOutboundMessage instead of re-deriving it.
func SimpleOutbound(ctx context.Context, d *Dispatcher, cfg Config, msg *UserMessage) error {
	mappings := cfg.StringMap("transport_mappings")
	name := msg.TransportName
	if mapped, ok := mappings[name]; ok {
		name = mapped
	}
	return d.PublishOutboundMessage(ctx, name, msg)
}

// SimpleInboundEvent implements the Simple router's inbound-event semantics:
// fan the event out, cloned, to every exposed name listed under
// route_mappings[evt.TransportName]. UserGrouping falls through to this
// directly rather than re-deriving it.
func SimpleInboundEvent(ctx context.Context, d *Dispatcher, cfg Config, evt *Event) error {
	routing := cfg.StringMapStringSlice("route_mappings")
	names, ok := routing[evt.TransportName]
	if !ok {
		return nil
	}
	for _, name := range names {
		if err := d.PublishInboundEvent(ctx, name, evt.Copy()); err != nil {
			return NewRouteError("simple", name, err)
		}
	}
	return nil
}

// SortedKeys returns the keys of m sorted lexically. Used by UserGrouping
// to make round-robin group assignment deterministic across processes that
// share the same KV store.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
