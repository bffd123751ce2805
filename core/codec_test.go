package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmux/dispatchmux/core"
)

func TestJSONCodecUserMessageRoundTrip(t *testing.T) {
	codec := core.JSONCodec{}

	msg := core.NewUserMessage()
	msg.TransportName = "sms"
	msg.FromAddr = "+27731234567"
	msg.ToAddr = "12345"
	msg.Content = "hello"
	msg.TransportMetadata["foo"] = "bar"

	data, err := codec.EncodeUserMessage(msg)
	require.NoError(t, err)

	got, err := codec.DecodeUserMessage(data)
	require.NoError(t, err)

	assert.Equal(t, msg.MessageID, got.MessageID)
	assert.Equal(t, msg.TransportName, got.TransportName)
	assert.Equal(t, msg.FromAddr, got.FromAddr)
	assert.Equal(t, msg.ToAddr, got.ToAddr)
	assert.Equal(t, msg.Content, got.Content)
	assert.Equal(t, "bar", got.TransportMetadata["foo"])
}

func TestJSONCodecDecodeUserMessageRejectsGarbage(t *testing.T) {
	codec := core.JSONCodec{}
	_, err := codec.DecodeUserMessage([]byte("not json"))
	require.Error(t, err)
}

func TestJSONCodecEventRoundTrip(t *testing.T) {
	codec := core.JSONCodec{}

	evt := core.NewEvent(core.EventTypeAck, "msg-1")
	evt.TransportMetadata["foo"] = "bar"

	data, err := codec.EncodeEvent(evt)
	require.NoError(t, err)

	got, err := codec.DecodeEvent(data)
	require.NoError(t, err)

	assert.Equal(t, evt.UserMessageID, got.UserMessageID)
	assert.Equal(t, evt.EventType, got.EventType)
	assert.Equal(t, "bar", got.TransportMetadata["foo"])
}

func TestJSONCodecDecodeEventRejectsGarbage(t *testing.T) {
	codec := core.JSONCodec{}
	_, err := codec.DecodeEvent([]byte("not json"))
	require.Error(t, err)
}
