package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmux/dispatchmux/core"
	"github.com/dispatchmux/dispatchmux/core/kv"
)

func newStoring(t *testing.T, store kv.Store) core.Middleware {
	t.Helper()
	mw, err := core.NewMiddleware("storing", core.Config{"store": store})
	require.NoError(t, err)
	return mw
}

func TestStoringMiddlewareConsumePersistsMessage(t *testing.T) {
	store := kv.NewMemStore()
	mw := newStoring(t, store)

	msg := core.NewUserMessage()
	msg.MessageID = "m1"

	out, err := mw.HandleConsume(context.Background(), core.DirInbound, msg, "sms_in")
	require.NoError(t, err)
	assert.Same(t, msg, out)

	v, ok, err := store.Get(context.Background(), "message_store:inbound:m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, v, "m1")
}

func TestStoringMiddlewarePublishPersistsEvent(t *testing.T) {
	store := kv.NewMemStore()
	mw := newStoring(t, store)

	evt := &core.Event{UserMessageID: "m1", EventType: core.EventTypeAck}

	out, err := mw.HandlePublish(context.Background(), core.DirEvent, evt, "appA")
	require.NoError(t, err)
	assert.Same(t, evt, out)

	v, ok, err := store.Get(context.Background(), "message_store:event:m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, v, "ack")
}

func TestStoringMiddlewareMissingStoreIsConfigError(t *testing.T) {
	_, err := core.NewMiddleware("storing", core.Config{})
	require.Error(t, err)
}
