package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/internal/mock"
)

type passThroughRouter struct {
	d *core.Dispatcher
}

func (r *passThroughRouter) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return r.d.PublishInboundMessage(ctx, "app", msg)
}

func (r *passThroughRouter) DispatchInboundEvent(ctx context.Context, evt *core.Event) error {
	return r.d.PublishInboundEvent(ctx, "app", evt)
}

func (r *passThroughRouter) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return r.d.PublishOutboundMessage(ctx, "sms", msg)
}

func init() {
	core.RegisterRouter("pass_through_test", func(d *core.Dispatcher, _ core.Config) (core.Router, error) {
		return &passThroughRouter{d: d}, nil
	})
}

func newConfiguredDispatcher(t *testing.T) (*core.Dispatcher, *mock.Broker) {
	t.Helper()
	b := mock.NewBroker()
	d := core.NewDispatcher(b)
	err := d.Configure(
		core.Config{
			"transport_names": []string{"sms"},
			"exposed_names":   []string{"app"},
		},
		nil,
		"pass_through_test",
		core.Config{},
	)
	require.NoError(t, err)
	return d, b
}

func TestDispatcherDispatchInboundMessagePublishes(t *testing.T) {
	d, b := newConfiguredDispatcher(t)

	msg := core.NewUserMessage()
	msg.Content = "hello"
	err := d.DispatchInboundMessage(context.Background(), "sms", msg)
	require.NoError(t, err)

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "app.inbound", published[0].Topic)
}

func TestDispatcherPublishRejectsUnknownEndpoint(t *testing.T) {
	d, _ := newConfiguredDispatcher(t)

	err := d.PublishInboundMessage(context.Background(), "nonexistent", core.NewUserMessage())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownEndpoint))
}

func TestDispatcherConfigureRequiresEndpoints(t *testing.T) {
	b := mock.NewBroker()
	d := core.NewDispatcher(b)
	err := d.Configure(core.Config{}, nil, "pass_through_test", core.Config{})
	require.Error(t, err)
}

func TestDispatcherConfigureRejectsUnknownRouter(t *testing.T) {
	b := mock.NewBroker()
	d := core.NewDispatcher(b)
	err := d.Configure(core.Config{"transport_names": []string{"sms"}}, nil, "no-such-router", core.Config{})
	require.Error(t, err)
}

func TestDispatcherStartDeliversEndToEnd(t *testing.T) {
	d, b := newConfiguredDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool {
		return b.HasHandler("sms.inbound")
	}, time.Second, 5*time.Millisecond)

	payload, err := core.JSONCodec{}.EncodeUserMessage(&core.UserMessage{TransportName: "sms", Content: "hi"})
	require.NoError(t, err)

	err = b.Deliver(ctx, "sms.inbound", &mock.Message{K: []byte("k"), V: payload})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(b.Published()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
}
