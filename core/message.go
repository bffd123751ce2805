package core

import "context"

// Message is the broker-agnostic message abstraction.
// Implementations are provided by broker plugins.
type Message interface {
	Key() []byte
	Value() []byte
	Headers() map[string]string
	Ack() error
	Nack() error
}

// Handler is the low-level handler bridging a broker subscription to the
// dispatcher's decode-and-dispatch pipeline for one endpoint.
type Handler func(ctx context.Context, msg Message) error

// Interceptor wraps a Handler to add cross-cutting behavior (logging,
// panic recovery, metrics) around the whole per-message dispatch task,
// independent of the per-direction Middleware pipeline in middleware.go.
type Interceptor func(Handler) Handler
