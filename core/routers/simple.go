// Package routers provides the concrete core.Router implementations: Simple,
// TransportToTransport, ToAddr, FromAddrMultiplex, UserGrouping,
// ContentKeyword, and RedirectOutbound. Each registers itself against
// core.RegisterRouter from an init() func.
package routers

import (
	"context"
	"log"

	"github.com/dispatchmux/dispatchmux/core"
)

func init() {
	core.RegisterRouter("simple", newSimple)
}

// Simple maps transport_names to exposed_names via route_mappings for
// inbound traffic, and applies transport_mappings (falling back to the
// message's own transport_name) for outbound traffic.
type Simple struct {
	d       *core.Dispatcher
	cfg     core.Config
	routing map[string][]string
}

func newSimple(d *core.Dispatcher, cfg core.Config) (core.Router, error) {
	routing := cfg.StringMapStringSlice("route_mappings")
	if routing == nil {
		return nil, core.NewConfigError("simple", "route_mappings is required")
	}
	return &Simple{d: d, cfg: cfg, routing: routing}, nil
}

func (r *Simple) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	names, ok := r.routing[msg.TransportName]
	if !ok {
		log.Printf("[dispatchmux] simple: no route_mappings entry for transport %q", msg.TransportName)
		return nil
	}
	for _, name := range names {
		if err := r.d.PublishInboundMessage(ctx, name, msg.Copy()); err != nil {
			return core.NewRouteError("simple", name, err)
		}
	}
	return nil
}

func (r *Simple) DispatchInboundEvent(ctx context.Context, evt *core.Event) error {
	if _, ok := r.routing[evt.TransportName]; !ok {
		log.Printf("[dispatchmux] simple: no route_mappings entry for transport %q", evt.TransportName)
		return nil
	}
	return core.SimpleInboundEvent(ctx, r.d, r.cfg, evt)
}

func (r *Simple) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return core.SimpleOutbound(ctx, r.d, r.cfg, msg)
}
