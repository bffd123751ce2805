package core

import "github.com/google/uuid"

// SessionEvent enumerates the session lifecycle an inbound message may
// carry (new session, mid-session, or close).
type SessionEvent string

const (
	SessionEventNone   SessionEvent = ""
	SessionEventNew    SessionEvent = "new"
	SessionEventResume SessionEvent = "resume"
	SessionEventClose  SessionEvent = "close"
)

// UserMessage is the dispatcher's typed envelope for both inbound and
// outbound user traffic. TransportName is the endpoint of origin at the
// point of observation: routers may rewrite it (e.g. FromAddrMultiplex)
// before publish, and that rewrite is always the router's own
// responsibility, done before the message is handed to the publisher.
type UserMessage struct {
	TransportName     string         `json:"transport_name"`
	MessageID         string         `json:"message_id"`
	ToAddr            string         `json:"to_addr"`
	FromAddr          string         `json:"from_addr"`
	Content           string         `json:"content"`
	SessionEvent      SessionEvent   `json:"session_event,omitempty"`
	Group             string         `json:"group,omitempty"`
	TransportType     string         `json:"transport_type,omitempty"`
	TransportMetadata map[string]any `json:"transport_metadata"`
}

// NewUserMessage builds a UserMessage with a freshly assigned MessageID.
func NewUserMessage() *UserMessage {
	return &UserMessage{
		MessageID:         uuid.NewString(),
		TransportMetadata: make(map[string]any),
	}
}

// User returns the stable per-user key routers key stateful memory off of.
// For inbound traffic this is the sender's address.
func (m *UserMessage) User() string {
	return m.FromAddr
}

// Copy produces a duplicate of the message with its own TransportMetadata
// map. Every router fanning a single inbound message out to more than one
// destination calls Copy before each publish so that field rewrites and
// top-level metadata changes on one clone are not observed on another. The
// metadata map is copied one level deep: nested maps or slices stored as
// metadata values are shared between the original and the copy.
func (m *UserMessage) Copy() *UserMessage {
	if m == nil {
		return nil
	}
	meta := make(map[string]any, len(m.TransportMetadata))
	for k, v := range m.TransportMetadata {
		meta[k] = v
	}
	cp := *m
	cp.TransportMetadata = meta
	return &cp
}

// EventType enumerates the delivery event kinds that follow the routing of
// the user message that generated them.
type EventType string

const (
	EventTypeAck            EventType = "ack"
	EventTypeNack           EventType = "nack"
	EventTypeDeliveryReport EventType = "delivery_report"
)

// Event is the dispatcher's typed envelope for acknowledgements and
// delivery reports. UserMessageID ties the event back to the outbound
// message it concerns, used by the keyword router's return-route lookup.
type Event struct {
	EventType         EventType      `json:"event_type"`
	UserMessageID     string         `json:"user_message_id"`
	TransportName     string         `json:"transport_name"`
	TransportMetadata map[string]any `json:"transport_metadata"`
}

// NewEvent builds an Event; callers set the fields relevant to the event
// kind being constructed.
func NewEvent(eventType EventType, userMessageID string) *Event {
	return &Event{
		EventType:         eventType,
		UserMessageID:     userMessageID,
		TransportMetadata: make(map[string]any),
	}
}

// Copy produces a duplicate with its own TransportMetadata map, used by
// routers that fan an event out to more than one destination. As with
// UserMessage.Copy, nested maps or slices inside metadata values are shared.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	meta := make(map[string]any, len(e.TransportMetadata))
	for k, v := range e.TransportMetadata {
		meta[k] = v
	}
	cp := *e
	cp.TransportMetadata = meta
	return &cp
}
