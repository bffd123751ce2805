package core

import (
	"encoding/json"
	"fmt"
)

// Codec serializes and deserializes the dispatcher's envelope types to and
// from raw broker message bytes. The only values ever flowing over the wire
// are UserMessage and Event, so the interface is narrowed to those two.
type Codec interface {
	EncodeUserMessage(msg *UserMessage) ([]byte, error)
	DecodeUserMessage(data []byte) (*UserMessage, error)
	EncodeEvent(evt *Event) ([]byte, error)
	DecodeEvent(data []byte) (*Event, error)
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

func (JSONCodec) EncodeUserMessage(msg *UserMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("dispatchmux: encode user message: %w", err)
	}
	return data, nil
}

func (JSONCodec) DecodeUserMessage(data []byte) (*UserMessage, error) {
	var msg UserMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("dispatchmux: decode user message: %w", err)
	}
	if msg.TransportMetadata == nil {
		msg.TransportMetadata = make(map[string]any)
	}
	return &msg, nil
}

func (JSONCodec) EncodeEvent(evt *Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("dispatchmux: encode event: %w", err)
	}
	return data, nil
}

func (JSONCodec) DecodeEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("dispatchmux: decode event: %w", err)
	}
	if evt.TransportMetadata == nil {
		evt.TransportMetadata = make(map[string]any)
	}
	return &evt, nil
}
