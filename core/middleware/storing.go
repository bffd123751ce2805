package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/core/kv"
)

// StoringMiddleware records every inbound/outbound message and event it
// sees, keyed by message id, in a core/kv.Store. It never sees a
// DirFailure-tagged message through the consume/publish hooks, so failure
// persistence is out of scope here. Registered under the name "storing";
// expects a "store" entry in its config subtree (a kv.Store, injected the
// same way routers receive theirs).
type StoringMiddleware struct {
	store  kv.Store
	prefix string
}

func init() {
	core.RegisterMiddleware("storing", newStoringMiddleware)
}

func newStoringMiddleware(cfg core.Config) (core.Middleware, error) {
	raw, ok := cfg["store"]
	if !ok {
		return nil, core.NewConfigError("storing", "config key %q is required", "store")
	}
	store, ok := raw.(kv.Store)
	if !ok {
		return nil, core.NewConfigError("storing", "config key %q must be a kv.Store", "store")
	}
	prefix := cfg.StringOr("store_prefix", "message_store")
	return &StoringMiddleware{store: store, prefix: prefix}, nil
}

func (m *StoringMiddleware) HandleConsume(ctx context.Context, dir core.Direction, msg any, endpoint string) (any, error) {
	return msg, m.storeMsg(ctx, dir, msg)
}

func (m *StoringMiddleware) HandlePublish(ctx context.Context, dir core.Direction, msg any, endpoint string) (any, error) {
	return msg, m.storeMsg(ctx, dir, msg)
}

// storeMsg persists msg (a *core.UserMessage or *core.Event) under a
// direction-and-id key.
func (m *StoringMiddleware) storeMsg(ctx context.Context, dir core.Direction, msg any) error {
	var id string
	switch v := msg.(type) {
	case *core.UserMessage:
		id = v.MessageID
	case *core.Event:
		id = v.UserMessageID
	default:
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dispatchmux: storing middleware: marshal %s: %w", dir, err)
	}
	key := core.RKey(m.prefix, string(dir), id)
	if err := m.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("dispatchmux: storing middleware: persist %s: %w", dir, err)
	}
	return nil
}
