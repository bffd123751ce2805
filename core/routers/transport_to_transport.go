package routers

import (
	"context"
	"log"

	"github.com/dispatchmux/dispatchmux/core"
)

func init() {
	core.RegisterRouter("transport_to_transport", newTransportToTransport)
}

// TransportToTransport connects transports directly to other transports via
// route_mappings. Events are discarded (transports can't receive them) and
// there are never outbound messages to dispatch, since nothing exposed is
// attached.
type TransportToTransport struct {
	d       *core.Dispatcher
	routing map[string][]string
}

func newTransportToTransport(d *core.Dispatcher, cfg core.Config) (core.Router, error) {
	routing := cfg.StringMapStringSlice("route_mappings")
	if routing == nil {
		return nil, core.NewConfigError("transport_to_transport", "route_mappings is required")
	}
	return &TransportToTransport{d: d, routing: routing}, nil
}

func (r *TransportToTransport) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	names, ok := r.routing[msg.TransportName]
	if !ok {
		log.Printf("[dispatchmux] transport_to_transport: no route_mappings entry for transport %q", msg.TransportName)
		return nil
	}
	for _, name := range names {
		if err := r.d.PublishOutboundMessage(ctx, name, msg.Copy()); err != nil {
			return core.NewRouteError("transport_to_transport", name, err)
		}
	}
	return nil
}

func (r *TransportToTransport) DispatchInboundEvent(context.Context, *core.Event) error {
	return nil
}

func (r *TransportToTransport) DispatchOutboundMessage(context.Context, *core.UserMessage) error {
	return nil
}
