package routers

import (
	"context"

	"github.com/dispatchmux/dispatchmux/core"
)

func init() {
	core.RegisterRouter("fromaddr_multiplex", newFromAddrMultiplex)
}

// FromAddrMultiplex presents a pool of single-address transports (each
// configured under its own transport_name) as one exposed endpoint.
// Inbound traffic is rewritten to carry the exposed name as its
// transport_name and forwarded there; outbound traffic is routed back to
// whichever transport owns the message's from_addr via fromaddr_mappings.
// Exactly one exposed_name is required.
//
// Construction only captures the dispatcher and config subtree; the
// cardinality check and field derivation happen in SetupRouting, run once
// field assignment completes.
type FromAddrMultiplex struct {
	d   *core.Dispatcher
	cfg core.Config

	exposedName  string
	fromMappings map[string]string
}

func newFromAddrMultiplex(d *core.Dispatcher, cfg core.Config) (core.Router, error) {
	return &FromAddrMultiplex{d: d, cfg: cfg}, nil
}

// SetupRouting validates that exactly one exposed_name is configured and
// that fromaddr_mappings is present, then derives the fields Dispatch*
// reads from.
func (r *FromAddrMultiplex) SetupRouting() error {
	exposedNames := r.cfg.StringSlice("exposed_names")
	if len(exposedNames) != 1 {
		return core.NewConfigError("fromaddr_multiplex", "exactly one exposed_name is required, got %d", len(exposedNames))
	}
	mappings := r.cfg.StringMap("fromaddr_mappings")
	if mappings == nil {
		return core.NewConfigError("fromaddr_multiplex", "fromaddr_mappings is required")
	}
	r.exposedName = exposedNames[0]
	r.fromMappings = mappings
	return nil
}

func (r *FromAddrMultiplex) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	cp := msg.Copy()
	cp.TransportName = r.exposedName
	if err := r.d.PublishInboundMessage(ctx, r.exposedName, cp); err != nil {
		return core.NewRouteError("fromaddr_multiplex", r.exposedName, err)
	}
	return nil
}

func (r *FromAddrMultiplex) DispatchInboundEvent(ctx context.Context, evt *core.Event) error {
	cp := evt.Copy()
	cp.TransportName = r.exposedName
	if err := r.d.PublishInboundEvent(ctx, r.exposedName, cp); err != nil {
		return core.NewRouteError("fromaddr_multiplex", r.exposedName, err)
	}
	return nil
}

func (r *FromAddrMultiplex) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	name, ok := r.fromMappings[msg.FromAddr]
	if !ok {
		return core.NewRouteError("fromaddr_multiplex", "", core.NewConfigError("fromaddr_multiplex", "no fromaddr_mappings entry for %q", msg.FromAddr))
	}
	cp := msg.Copy()
	cp.TransportName = name
	return r.d.PublishOutboundMessage(ctx, name, cp)
}
