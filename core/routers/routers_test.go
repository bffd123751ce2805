package routers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/core/kv"
	_ "github.com/dispatchmux/dispatchmux/core/routers"
	"github.com/dispatchmux/dispatchmux/internal/mock"
)

func newDispatcher(t *testing.T, transports, exposed []string) (*core.Dispatcher, *mock.Broker) {
	t.Helper()
	b := mock.NewBroker()
	d := core.NewDispatcher(b)
	return d, b
}

func configureDispatcher(t *testing.T, d *core.Dispatcher, transports, exposed []string, router string, routerCfg core.Config) {
	t.Helper()
	err := d.Configure(core.Config{
		"transport_names": transports,
		"exposed_names":   exposed,
	}, nil, router, routerCfg)
	require.NoError(t, err)
}

func TestSimpleRouterFanOut(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"app1", "app2"})
	configureDispatcher(t, d, []string{"sms"}, []string{"app1", "app2"}, "simple", core.Config{
		"route_mappings": map[string]any{"sms": []any{"app1", "app2"}},
	})

	msg := core.NewUserMessage()
	msg.TransportName = "sms"
	msg.Content = "hi"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", msg))

	published := b.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "app1.inbound", published[0].Topic)
	assert.Equal(t, "app2.inbound", published[1].Topic)

	for _, p := range published {
		got, err := core.JSONCodec{}.DecodeUserMessage(p.Message.Value())
		require.NoError(t, err)
		assert.Equal(t, "hi", got.Content)
		assert.Equal(t, msg.MessageID, got.MessageID)
	}
}

func TestSimpleRouterOutboundTransportMapping(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms-v2"}, []string{"app1"})
	configureDispatcher(t, d, []string{"sms-v2"}, []string{"app1"}, "simple", core.Config{
		"route_mappings":     map[string]any{"sms": []any{"app1"}},
		"transport_mappings": map[string]any{"sms": "sms-v2"},
	})

	msg := core.NewUserMessage()
	msg.TransportName = "sms"
	require.NoError(t, d.DispatchOutboundMessage(context.Background(), "app1", msg))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "sms-v2.outbound", published[0].Topic)
}

func TestTransportToTransportRouter(t *testing.T) {
	d, b := newDispatcher(t, []string{"xmpp-in", "xmpp-out"}, nil)
	configureDispatcher(t, d, []string{"xmpp-in", "xmpp-out"}, nil, "transport_to_transport", core.Config{
		"route_mappings": map[string]any{"xmpp-in": []any{"xmpp-out"}},
	})

	msg := core.NewUserMessage()
	msg.TransportName = "xmpp-in"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "xmpp-in", msg))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "xmpp-out.outbound", published[0].Topic)

	// Events are discarded.
	require.NoError(t, d.DispatchInboundEvent(context.Background(), "xmpp-in", core.NewEvent(core.EventTypeAck, "id")))
	assert.Len(t, b.Published(), 1)
}

func TestToAddrRouterMatchesByRegex(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"shortcode_app", "longcode_app"})
	configureDispatcher(t, d, []string{"sms"}, []string{"shortcode_app", "longcode_app"}, "toaddr", core.Config{
		"toaddr_mappings": map[string]any{
			"shortcode_app": `^12345$`,
			"longcode_app":  `^\+27.*$`,
		},
	})

	msg := core.NewUserMessage()
	msg.ToAddr = "+27821234567"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", msg))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "longcode_app.inbound", published[0].Topic)
}

func TestToAddrRouterMatchesStartOfAddress(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"appX"})
	configureDispatcher(t, d, []string{"sms"}, []string{"appX"}, "toaddr", core.Config{
		"toaddr_mappings": map[string]any{"appX": `\+2782`},
	})

	hit := core.NewUserMessage()
	hit.ToAddr = "+27821234567"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", hit))
	require.Len(t, b.Published(), 1)
	assert.Equal(t, "appX.inbound", b.Published()[0].Topic)

	miss := core.NewUserMessage()
	miss.ToAddr = "+27801234567"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", miss))
	assert.Len(t, b.Published(), 1, "non-matching to_addr must not route")

	// The pattern is anchored at the start of to_addr, not anywhere inside.
	inner := core.NewUserMessage()
	inner.ToAddr = "00+2782"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", inner))
	assert.Len(t, b.Published(), 1, "mid-string match must not route")
}

func TestToAddrRouterDropsEvents(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"appX"})
	configureDispatcher(t, d, []string{"sms"}, []string{"appX"}, "toaddr", core.Config{
		"toaddr_mappings": map[string]any{"appX": `\+2782`},
	})

	evt := core.NewEvent(core.EventTypeDeliveryReport, "m1")
	evt.TransportName = "sms"
	require.NoError(t, d.DispatchInboundEvent(context.Background(), "sms", evt))
	assert.Empty(t, b.Published())
}

func TestFromAddrMultiplexRouterRewritesTransportName(t *testing.T) {
	d, b := newDispatcher(t, []string{"xmpp-1", "xmpp-2"}, []string{"pool"})
	configureDispatcher(t, d, []string{"xmpp-1", "xmpp-2"}, []string{"pool"}, "fromaddr_multiplex", core.Config{
		"exposed_names":     []string{"pool"},
		"fromaddr_mappings": map[string]any{"user@host": "xmpp-1"},
	})

	msg := core.NewUserMessage()
	msg.TransportName = "xmpp-1"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "xmpp-1", msg))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "pool.inbound", published[0].Topic)

	in, err := core.JSONCodec{}.DecodeUserMessage(published[0].Message.Value())
	require.NoError(t, err)
	assert.Equal(t, "pool", in.TransportName, "inbound must carry the exposed name")

	out := core.NewUserMessage()
	out.FromAddr = "user@host"
	out.TransportName = "pool"
	require.NoError(t, d.DispatchOutboundMessage(context.Background(), "pool", out))

	published = b.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "xmpp-1.outbound", published[1].Topic)

	back, err := core.JSONCodec{}.DecodeUserMessage(published[1].Message.Value())
	require.NoError(t, err)
	assert.Equal(t, "xmpp-1", back.TransportName, "outbound must carry the owning transport's name")
}

func TestFromAddrMultiplexUnknownFromAddrIsRouteError(t *testing.T) {
	d, b := newDispatcher(t, []string{"xmpp-1"}, []string{"pool"})
	configureDispatcher(t, d, []string{"xmpp-1"}, []string{"pool"}, "fromaddr_multiplex", core.Config{
		"exposed_names":     []string{"pool"},
		"fromaddr_mappings": map[string]any{"user@host": "xmpp-1"},
	})

	out := core.NewUserMessage()
	out.FromAddr = "stranger@elsewhere"
	err := d.DispatchOutboundMessage(context.Background(), "pool", out)
	require.Error(t, err)
	assert.Empty(t, b.Published(), "unknown from_addr must not publish")
}

func TestFromAddrMultiplexRequiresSingleExposedName(t *testing.T) {
	d, _ := newDispatcher(t, []string{"xmpp"}, []string{"a", "b"})
	err := d.Configure(core.Config{
		"transport_names": []string{"xmpp"},
		"exposed_names":   []string{"a", "b"},
	}, nil, "fromaddr_multiplex", core.Config{
		"exposed_names":     []string{"a", "b"},
		"fromaddr_mappings": map[string]any{},
	})
	require.Error(t, err)
}

func TestUserGroupingRouterStickyAssignment(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"group_a", "group_b"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"sms"}, []string{"group_a", "group_b"}, "user_grouping", core.Config{
		"dispatcher_name": "test-dispatcher",
		"group_mappings":  map[string]any{"a": "group_a", "b": "group_b"},
		"store":           store,
	})

	msg1 := core.NewUserMessage()
	msg1.TransportName = "sms"
	msg1.FromAddr = "+2781111"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", msg1))

	msg2 := core.NewUserMessage()
	msg2.TransportName = "sms"
	msg2.FromAddr = "+2781111"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", msg2))

	published := b.Published()
	require.Len(t, published, 2)
	assert.Equal(t, published[0].Topic, published[1].Topic, "same user must be sticky to the same group")
}

func TestUserGroupingRouterRoundRobinIsDeterministic(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"appA", "appB"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"sms"}, []string{"appA", "appB"}, "user_grouping", core.Config{
		"dispatcher_name": "test-dispatcher",
		"group_mappings":  map[string]any{"a": "appA", "b": "appB"},
		"store":           store,
	})

	for _, from := range []string{"u1", "u2", "u3", "u1"} {
		msg := core.NewUserMessage()
		msg.TransportName = "sms"
		msg.FromAddr = from
		require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", msg))
	}

	published := b.Published()
	require.Len(t, published, 4)
	assert.Equal(t, "appA.inbound", published[0].Topic)
	assert.Equal(t, "appB.inbound", published[1].Topic)
	assert.Equal(t, "appA.inbound", published[2].Topic)
	assert.Equal(t, "appA.inbound", published[3].Topic, "u1 stays in its first-seen group")
}

func TestUserGroupingRouterEventFallsThroughToRouteMappings(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"group_a"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"sms"}, []string{"group_a"}, "user_grouping", core.Config{
		"dispatcher_name": "test-dispatcher",
		"group_mappings":  map[string]any{"a": "group_a"},
		"route_mappings":  map[string]any{"sms": []any{"group_a"}},
		"store":           store,
	})

	evt := core.NewEvent(core.EventTypeAck, "m1")
	evt.TransportName = "sms"
	require.NoError(t, d.DispatchInboundEvent(context.Background(), "sms", evt))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "group_a.event", published[0].Topic)
}

func TestContentKeywordRouterRoutesByFirstWord(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"survey_app"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"sms"}, []string{"survey_app"}, "content_keyword", core.Config{
		"dispatcher_name": "test-dispatcher",
		"rules": []any{
			map[string]any{"app": "survey_app", "keyword": "start"},
		},
		"transport_mappings": map[string]any{},
		"store":              store,
	})

	msg := core.NewUserMessage()
	msg.Content = "START now"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", msg))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "survey_app.inbound", published[0].Topic)
}

func TestContentKeywordRouterOutboundRemembersRoute(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"survey_app"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"sms"}, []string{"survey_app"}, "content_keyword", core.Config{
		"dispatcher_name":    "test-dispatcher",
		"transport_mappings": map[string]any{"+27821": "sms"},
		"store":              store,
	})

	out := core.NewUserMessage()
	out.FromAddr = "+27821"
	out.MessageID = "msg-1"
	out.TransportName = "sms"
	require.NoError(t, d.DispatchOutboundMessage(context.Background(), "survey_app", out))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "sms.outbound", published[0].Topic)

	val, ok, err := store.Get(context.Background(), "test-dispatcher:message:msg-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sms", val)

	// The return route remembers the outbound message's own transport_name;
	// dispatching an event for it here finds no matching exposed endpoint to
	// forward to and is logged and dropped rather than erroring.
	evt := core.NewEvent(core.EventTypeAck, "msg-1")
	require.NoError(t, d.DispatchInboundEvent(context.Background(), "sms", evt))
	assert.Len(t, b.Published(), 1)
}

func TestContentKeywordRouterRemembersAppsOwnTransportName(t *testing.T) {
	// The outbound message's own transport_name ("quiz") differs from the
	// transport it gets routed to
	// ("smpp") via transport_mappings on from_addr. The return-route record
	// must hold the app's transport_name, not the destination, so the event
	// comes back to "quiz.event" rather than "smpp.event".
	d, b := newDispatcher(t, []string{"smpp"}, []string{"quiz"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"smpp"}, []string{"quiz"}, "content_keyword", core.Config{
		"dispatcher_name":    "test-dispatcher",
		"transport_mappings": map[string]any{"+111": "smpp"},
		"store":              store,
	})

	out := core.NewUserMessage()
	out.FromAddr = "+111"
	out.MessageID = "m1"
	out.TransportName = "quiz"
	require.NoError(t, d.DispatchOutboundMessage(context.Background(), "quiz", out))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "smpp.outbound", published[0].Topic)

	val, ok, err := store.Get(context.Background(), "test-dispatcher:message:m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "quiz", val, "return route must record the app's own transport_name")

	evt := core.NewEvent(core.EventTypeAck, "m1")
	require.NoError(t, d.DispatchInboundEvent(context.Background(), "smpp", evt))

	published = b.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "quiz.event", published[1].Topic)
}

func TestContentKeywordRouterExpireRoutingMemoryConfigurable(t *testing.T) {
	d, b := newDispatcher(t, []string{"smpp"}, []string{"quiz"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"smpp"}, []string{"quiz"}, "content_keyword", core.Config{
		"dispatcher_name":       "test-dispatcher",
		"transport_mappings":    map[string]any{"+111": "smpp"},
		"store":                 store,
		"expire_routing_memory": 1,
	})

	out := core.NewUserMessage()
	out.FromAddr = "+111"
	out.MessageID = "m1"
	out.TransportName = "quiz"
	require.NoError(t, d.DispatchOutboundMessage(context.Background(), "quiz", out))
	require.Len(t, b.Published(), 1)

	time.Sleep(1100 * time.Millisecond)

	_, ok, err := store.Get(context.Background(), "test-dispatcher:message:m1")
	require.NoError(t, err)
	assert.False(t, ok, "return route must expire after expire_routing_memory seconds")
}

func TestContentKeywordRouterFallbackApplication(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"survey_app", "catch_all"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"sms"}, []string{"survey_app", "catch_all"}, "content_keyword", core.Config{
		"dispatcher_name": "test-dispatcher",
		"rules": []any{
			map[string]any{"app": "survey_app", "keyword": "start"},
		},
		"fallback_application": "catch_all",
		"transport_mappings":   map[string]any{},
		"store":                store,
	})

	msg := core.NewUserMessage()
	msg.Content = "help"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", msg))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "catch_all.inbound", published[0].Topic)
}

func TestContentKeywordRouterPrefixAndToAddrConstraints(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms"}, []string{"quiz"})
	store := kv.NewMemStore()
	configureDispatcher(t, d, []string{"sms"}, []string{"quiz"}, "content_keyword", core.Config{
		"dispatcher_name": "test-dispatcher",
		"rules": []any{
			map[string]any{"app": "quiz", "keyword": "PLAY", "prefix": "+27"},
		},
		"transport_mappings": map[string]any{},
		"store":              store,
	})

	hit := core.NewUserMessage()
	hit.Content = "play now"
	hit.FromAddr = "+2711"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", hit))
	require.Len(t, b.Published(), 1)

	miss := core.NewUserMessage()
	miss.Content = "PLAY"
	miss.FromAddr = "+4411"
	require.NoError(t, d.DispatchInboundMessage(context.Background(), "sms", miss))
	assert.Len(t, b.Published(), 1, "prefix mismatch must not route")
}

func TestRedirectOutboundRouter(t *testing.T) {
	d, b := newDispatcher(t, []string{"sms", "sms-backup"}, []string{"app"})
	configureDispatcher(t, d, []string{"sms", "sms-backup"}, []string{"app"}, "redirect_outbound", core.Config{
		"redirect_outbound": map[string]any{"sms": "sms-backup"},
	})

	msg := core.NewUserMessage()
	msg.TransportName = "sms"
	require.NoError(t, d.DispatchOutboundMessage(context.Background(), "app", msg))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "sms-backup.outbound", published[0].Topic)
}
