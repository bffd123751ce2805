package routers

import (
	"context"
	"log"

	"github.com/dispatchmux/dispatchmux/core"
)

func init() {
	core.RegisterRouter("redirect_outbound", newRedirectOutbound)
}

// RedirectOutbound redirects outbound messages from one transport to
// another via redirect_outbound, keyed by the exposed endpoint's existing
// transport_name. Inbound traffic isn't this router's concern; it only
// exists to rewrite where outbound replies land.
type RedirectOutbound struct {
	d        *core.Dispatcher
	mappings map[string]string
}

func newRedirectOutbound(d *core.Dispatcher, cfg core.Config) (core.Router, error) {
	mappings := cfg.StringMap("redirect_outbound")
	return &RedirectOutbound{d: d, mappings: mappings}, nil
}

func (r *RedirectOutbound) DispatchInboundMessage(context.Context, *core.UserMessage) error {
	return nil
}

func (r *RedirectOutbound) DispatchInboundEvent(context.Context, *core.Event) error {
	return nil
}

func (r *RedirectOutbound) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	redirectTo, ok := r.mappings[msg.TransportName]
	if !ok || redirectTo == "" {
		log.Printf("[dispatchmux] redirect_outbound: no redirect_outbound specified for %s", msg.TransportName)
		return nil
	}
	if err := r.d.PublishOutboundMessage(ctx, redirectTo, msg); err != nil {
		return core.NewRouteError("redirect_outbound", redirectTo, err)
	}
	return nil
}
