package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/internal/mock"
)

func TestSortedKeysIsDeterministic(t *testing.T) {
	m := map[string]string{"c": "1", "a": "2", "b": "3"}
	assert.Equal(t, []string{"a", "b", "c"}, core.SortedKeys(m))
}

func TestSimpleOutboundNoMapping(t *testing.T) {
	d, b := newConfiguredDispatcher(t)

	msg := core.NewUserMessage()
	msg.TransportName = "sms"
	err := core.SimpleOutbound(context.Background(), d, core.Config{}, msg)
	require.NoError(t, err)

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "sms.outbound", published[0].Topic)
}

func TestSimpleOutboundAppliesTransportMappings(t *testing.T) {
	b := mock.NewBroker()
	d := core.NewDispatcher(b)
	require.NoError(t, d.Configure(
		core.Config{"transport_names": []string{"sms-v2"}},
		nil, "pass_through_test", core.Config{}))

	msg := core.NewUserMessage()
	msg.TransportName = "sms"
	cfg := core.Config{"transport_mappings": map[string]any{"sms": "sms-v2"}}
	err := core.SimpleOutbound(context.Background(), d, cfg, msg)
	require.NoError(t, err)

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "sms-v2.outbound", published[0].Topic)
}

func TestNewRouterUnknownName(t *testing.T) {
	b := mock.NewBroker()
	d := core.NewDispatcher(b)
	_, err := core.NewRouter("definitely-not-registered", d, core.Config{})
	require.Error(t, err)
}
