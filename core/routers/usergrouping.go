package routers

import (
	"context"
	"fmt"

	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/core/kv"
)

func init() {
	core.RegisterRouter("user_grouping", newUserGrouping)
}

// UserGrouping sticks each unique from_addr to one of the groups in
// group_mappings, assigned round-robin on first contact and remembered in
// the store thereafter — useful for splitting traffic across application
// variants (A/B testing). Outbound traffic falls back to SimpleOutbound.
type UserGrouping struct {
	d      *core.Dispatcher
	cfg    core.Config
	store  kv.Store
	prefix string
	groups map[string]string // group name -> exposed/transport name
	sorted []string          // group names, sorted, for deterministic round robin
}

func newUserGrouping(d *core.Dispatcher, cfg core.Config) (core.Router, error) {
	groups := cfg.StringMap("group_mappings")
	if len(groups) == 0 {
		return nil, core.NewConfigError("user_grouping", "group_mappings is required")
	}
	prefix := cfg.String("dispatcher_name")
	if prefix == "" {
		return nil, core.NewConfigError("user_grouping", "dispatcher_name is required")
	}
	store, ok := cfg.Get("store")
	if !ok {
		return nil, core.NewConfigError("user_grouping", "store is required")
	}
	s, ok := store.(kv.Store)
	if !ok {
		return nil, core.NewConfigError("user_grouping", "store must implement kv.Store")
	}
	return &UserGrouping{
		d:      d,
		cfg:    cfg,
		store:  s,
		prefix: prefix,
		groups: groups,
		sorted: core.SortedKeys(groups),
	}, nil
}

func (r *UserGrouping) getCounter(ctx context.Context) (int64, error) {
	n, err := r.store.Incr(ctx, core.RKey(r.prefix, "round-robin"))
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

func (r *UserGrouping) nextGroup(ctx context.Context) (string, error) {
	counter, err := r.getCounter(ctx)
	if err != nil {
		return "", err
	}
	idx := int(counter % int64(len(r.sorted)))
	if idx < 0 {
		idx += len(r.sorted)
	}
	return r.sorted[idx], nil
}

func (r *UserGrouping) groupForUser(ctx context.Context, userID string) (string, error) {
	userKey := core.RKey(r.prefix, "user", userID)
	group, ok, err := r.store.Get(ctx, userKey)
	if err != nil {
		return "", err
	}
	if ok && group != "" {
		return group, nil
	}
	group, err = r.nextGroup(ctx)
	if err != nil {
		return "", err
	}
	if err := r.store.Set(ctx, userKey, group); err != nil {
		return "", err
	}
	return group, nil
}

func (r *UserGrouping) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	group, err := r.groupForUser(ctx, msg.User())
	if err != nil {
		return core.NewRouteError("user_grouping", "", err)
	}
	name, ok := r.groups[group]
	if !ok {
		return core.NewRouteError("user_grouping", "", fmt.Errorf("dispatchmux: no group_mappings entry for group %q", group))
	}
	if err := r.d.PublishInboundMessage(ctx, name, msg); err != nil {
		return core.NewRouteError("user_grouping", name, err)
	}
	return nil
}

// DispatchInboundEvent falls through to Simple's route_mappings-based event
// fan-out.
func (r *UserGrouping) DispatchInboundEvent(ctx context.Context, evt *core.Event) error {
	return core.SimpleInboundEvent(ctx, r.d, r.cfg, evt)
}

func (r *UserGrouping) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return core.SimpleOutbound(ctx, r.d, r.cfg, msg)
}
