// Package dispatchmux routes bearer-transport traffic (SMS, XMPP, USSD,
// HTTP, ...) between transports and application endpoints over a pluggable
// message bus. The package re-exports the core types most callers need so
// they don't have to import core directly for simple wiring.
package dispatchmux

import (
	"github.com/dispatchmux/dispatchmux/core"
)

type (
	Dispatcher  = core.Dispatcher
	Broker      = core.Broker
	Message     = core.Message
	Handler     = core.Handler
	Interceptor = core.Interceptor
	Middleware  = core.Middleware
	Router      = core.Router
	Config      = core.Config
	UserMessage = core.UserMessage
	Event       = core.Event
	Codec       = core.Codec
)

// New creates a Dispatcher bound to b, using the default JSON envelope
// codec.
func New(b Broker) *Dispatcher {
	return core.NewDispatcher(b)
}

// RegisterRouter adds a named router factory, for callers that ship their
// own Router implementations alongside the built-in ones in core/routers.
func RegisterRouter(name string, factory core.RouterFactory) {
	core.RegisterRouter(name, factory)
}
