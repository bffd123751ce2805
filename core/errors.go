package core

import (
	"errors"
	"fmt"
)

var (
	// ErrBrokerClosed is returned when operations are attempted on a closed broker.
	ErrBrokerClosed = errors.New("dispatchmux: broker is closed")

	// ErrNoHandler is returned when no handler matches the incoming topic.
	ErrNoHandler = errors.New("dispatchmux: no handler registered for topic")

	// ErrAlreadyStarted is returned when Start is called on a running dispatcher.
	ErrAlreadyStarted = errors.New("dispatchmux: dispatcher already started")

	// ErrNoBroker is returned when a dispatcher is created without a broker.
	ErrNoBroker = errors.New("dispatchmux: broker is nil")

	// ErrUnknownEndpoint is returned when a router or dispatcher is asked to
	// publish to an endpoint outside the configured
	// transport_names/exposed_names sets. This is a programming/
	// configuration-drift error and is never retried.
	ErrUnknownEndpoint = errors.New("dispatchmux: unknown endpoint")

	// ErrDropMessage signals that a middleware wants to stop pipeline
	// execution for this message without that being a failure. The dispatch
	// task completes silently; nothing is published.
	ErrDropMessage = errors.New("dispatchmux: message dropped by middleware")

	// ErrNoRouter is returned when a dispatcher is started without a router.
	ErrNoRouter = errors.New("dispatchmux: router is nil")
)

// ConfigError reports a fatal configuration problem detected at startup
// (missing required key, malformed rule, wrong cardinality). Dispatcher
// construction and router setup both return these; they are fatal at
// startup and never retried or recovered from.
type ConfigError struct {
	Component string
	Msg       string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dispatchmux: config error in %s: %s", e.Component, e.Msg)
}

// NewConfigError builds a ConfigError for the named component.
func NewConfigError(component, format string, args ...any) *ConfigError {
	return &ConfigError{Component: component, Msg: fmt.Sprintf(format, args...)}
}

// RouteError wraps a route-miss or KV failure for a single message. Routers
// return it from their Dispatch* methods; the dispatcher's per-subscription
// bridge handler logs it and drops the message, so it is never propagated
// past the per-message dispatch task and never retried.
type RouteError struct {
	Router   string
	Endpoint string
	Err      error
}

func (e *RouteError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("dispatchmux: %s: route error for endpoint %q: %v", e.Router, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("dispatchmux: %s: route error: %v", e.Router, e.Err)
}

func (e *RouteError) Unwrap() error { return e.Err }

// NewRouteError builds a RouteError attributed to the given router name.
func NewRouteError(router, endpoint string, err error) *RouteError {
	return &RouteError{Router: router, Endpoint: endpoint, Err: err}
}
