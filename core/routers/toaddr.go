package routers

import (
	"context"
	"log"
	"regexp"

	"github.com/dispatchmux/dispatchmux/core"
)

func init() {
	core.RegisterRouter("toaddr", newToAddr)
}

type toaddrMapping struct {
	name  string
	regex *regexp.Regexp
}

// ToAddr dispatches inbound messages by matching msg.ToAddr against a set
// of regular expressions in toaddr_mappings; outbound messages fall back to
// SimpleOutbound's transport_mappings behavior. Events can't be
// return-routed here: nothing records which application an inbound
// message's to_addr matched, so inbound events are logged and dropped.
type ToAddr struct {
	d        *core.Dispatcher
	cfg      core.Config
	mappings []toaddrMapping
}

func newToAddr(d *core.Dispatcher, cfg core.Config) (core.Router, error) {
	raw := cfg.StringMap("toaddr_mappings")
	if raw == nil {
		return nil, core.NewConfigError("toaddr", "toaddr_mappings is required")
	}
	mappings := make([]toaddrMapping, 0, len(raw))
	for _, name := range core.SortedKeys(raw) {
		// Patterns match from the start of to_addr, not anywhere inside it.
		re, err := regexp.Compile(`\A(?:` + raw[name] + `)`)
		if err != nil {
			return nil, core.NewConfigError("toaddr", "invalid pattern for %q: %v", name, err)
		}
		mappings = append(mappings, toaddrMapping{name: name, regex: re})
	}
	return &ToAddr{d: d, cfg: cfg, mappings: mappings}, nil
}

func (r *ToAddr) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	for _, m := range r.mappings {
		if m.regex.MatchString(msg.ToAddr) {
			if err := r.d.PublishInboundMessage(ctx, m.name, msg.Copy()); err != nil {
				return core.NewRouteError("toaddr", m.name, err)
			}
		}
	}
	return nil
}

func (r *ToAddr) DispatchInboundEvent(_ context.Context, evt *core.Event) error {
	log.Printf("[dispatchmux] toaddr: no return route for event on message %s, dropping", evt.UserMessageID)
	return nil
}

func (r *ToAddr) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return core.SimpleOutbound(ctx, r.d, r.cfg, msg)
}
