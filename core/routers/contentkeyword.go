package routers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/core/kv"
)

func init() {
	core.RegisterRouter("content_keyword", newContentKeyword)
}

// defaultRoutingTimeout is how long a return route is remembered in the
// store before it expires when expire_routing_memory isn't configured.
const defaultRoutingTimeout = 7 * 24 * time.Hour

type keywordRule struct {
	app     string
	keyword string
	toAddr  string
	hasTo   bool
	prefix  string
}

// ContentKeyword dispatches inbound messages by matching the first word of
// msg.Content (the "keyword") against a rule list, optionally constrained
// by to_addr and from_addr prefix. Outbound messages are routed by
// transport_mappings on from_addr, and the message's own transport_name
// (the sending application's endpoint, not the transport it is routed to)
// is remembered in the store (keyed by message_id) so inbound events for
// that message can be routed back to the application that sent it.
//
// Construction only captures the dispatcher and config subtree; rule
// validation and lowering, the keyword_mappings merge, and the
// transport_mappings and timeout checks all happen in SetupRouting.
type ContentKeyword struct {
	d   *core.Dispatcher
	cfg core.Config

	store            kv.Store
	prefix           string
	rules            []keywordRule
	fallback         string
	hasFallback      bool
	transportMapping map[string]string
	routingTimeout   time.Duration
}

func newContentKeyword(d *core.Dispatcher, cfg core.Config) (core.Router, error) {
	return &ContentKeyword{d: d, cfg: cfg}, nil
}

// SetupRouting validates dispatcher_name/store/rules/transport_mappings and
// derives the fields Dispatch* reads from: the rule list (validated and
// lowercased, with keyword_mappings appended), the fallback application, the
// transport mapping, and the return-route expiry.
func (r *ContentKeyword) SetupRouting() error {
	prefix := r.cfg.String("dispatcher_name")
	if prefix == "" {
		return core.NewConfigError("content_keyword", "dispatcher_name is required")
	}
	storeVal, ok := r.cfg.Get("store")
	if !ok {
		return core.NewConfigError("content_keyword", "store is required")
	}
	store, ok := storeVal.(kv.Store)
	if !ok {
		return core.NewConfigError("content_keyword", "store must implement kv.Store")
	}

	var rules []keywordRule
	for _, raw := range r.cfg.Slice("rules") {
		ruleCfg, err := core.AsConfig(raw)
		if err != nil {
			return core.NewConfigError("content_keyword", "invalid rule: %v", err)
		}
		app := ruleCfg.String("app")
		keyword := ruleCfg.String("keyword")
		if app == "" || keyword == "" {
			return core.NewConfigError("content_keyword", "rule definition %+v must contain both 'app' and 'keyword'", ruleCfg)
		}
		rule := keywordRule{app: app, keyword: strings.ToLower(keyword)}
		if toAddr, ok := ruleCfg.Get("to_addr"); ok {
			rule.toAddr, _ = toAddr.(string)
			rule.hasTo = true
		}
		rule.prefix = ruleCfg.String("prefix")
		rules = append(rules, rule)
	}

	keywordMappings := r.cfg.StringMap("keyword_mappings")
	for _, transportName := range core.SortedKeys(keywordMappings) {
		rules = append(rules, keywordRule{app: transportName, keyword: strings.ToLower(keywordMappings[transportName])})
	}

	fallback, hasFallback := r.cfg.Get("fallback_application")
	fallbackName, _ := fallback.(string)

	transportMappings := r.cfg.StringMap("transport_mappings")
	if transportMappings == nil {
		return core.NewConfigError("content_keyword", "transport_mappings is required")
	}

	timeout := defaultRoutingTimeout
	if secs := r.cfg.IntOr("expire_routing_memory", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	r.store = store
	r.prefix = prefix
	r.rules = rules
	r.fallback = fallbackName
	r.hasFallback = hasFallback && fallbackName != ""
	r.transportMapping = transportMappings
	r.routingTimeout = timeout
	return nil
}

func firstWord(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (r *ContentKeyword) matches(keyword string, msg *core.UserMessage, rule keywordRule) bool {
	if keyword != rule.keyword {
		return false
	}
	if rule.hasTo && msg.ToAddr != rule.toAddr {
		return false
	}
	if rule.prefix != "" && !strings.HasPrefix(msg.FromAddr, rule.prefix) {
		return false
	}
	return true
}

func (r *ContentKeyword) messageKey(messageID string) string {
	return core.RKey(r.prefix, "message", messageID)
}

func (r *ContentKeyword) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	keyword := strings.ToLower(firstWord(msg.Content))
	matched := false
	for _, rule := range r.rules {
		if r.matches(keyword, msg, rule) {
			matched = true
			if err := r.d.PublishInboundMessage(ctx, rule.app, msg.Copy()); err != nil {
				return core.NewRouteError("content_keyword", rule.app, err)
			}
		}
	}
	if !matched {
		if r.hasFallback {
			return r.d.PublishInboundMessage(ctx, r.fallback, msg)
		}
		log.Printf("[dispatchmux] content_keyword: message could not be routed: %+v", msg)
	}
	return nil
}

func (r *ContentKeyword) DispatchInboundEvent(ctx context.Context, evt *core.Event) error {
	name, ok, err := r.store.Get(ctx, r.messageKey(evt.UserMessageID))
	if err != nil {
		return core.NewRouteError("content_keyword", "", err)
	}
	if !ok || name == "" {
		log.Printf("[dispatchmux] content_keyword: no transport_name for return route found while dispatching event for message %s", evt.UserMessageID)
		return nil
	}
	if err := r.d.PublishInboundEvent(ctx, name, evt); err != nil {
		log.Printf("[dispatchmux] content_keyword: no publishing route for %s", name)
	}
	return nil
}

func (r *ContentKeyword) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	transportName, ok := r.transportMapping[msg.FromAddr]
	if !ok {
		log.Printf("[dispatchmux] content_keyword: no transport for %s", msg.FromAddr)
		return nil
	}
	if err := r.d.PublishOutboundMessage(ctx, transportName, msg); err != nil {
		return core.NewRouteError("content_keyword", transportName, err)
	}
	key := r.messageKey(msg.MessageID)
	if err := r.store.SetWithExpiry(ctx, key, msg.TransportName, r.routingTimeout); err != nil {
		return core.NewRouteError("content_keyword", "", err)
	}
	return nil
}
