package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// shutdownDrainTimeout bounds how long Start waits for subscription loops
// to wind down after the context is cancelled before closing the broker.
const shutdownDrainTimeout = 5 * time.Second

// Dispatcher is the dispatch worker: it wires a worker to a set of named
// transport and exposed queues on the bus, runs the middleware pipeline on
// ingress/egress, and delegates routing decisions to a pluggable Router.
// Construction and startup follow a strict order: endpoints -> middleware
// -> router -> transport publishers -> exposed publishers -> transport
// consumers -> exposed consumers.
type Dispatcher struct {
	broker Broker
	codec  Codec

	middlewares *MiddlewareStack
	router      Router
	routerKind  string

	interceptors []Interceptor

	transportNames []string
	exposedNames   []string

	transportOutbound map[string]bool // transport names with a declared outbound publisher
	exposedInbound    map[string]bool // exposed names with a declared inbound publisher
	exposedEvent      map[string]bool // exposed names with a declared event publisher

	mu      sync.RWMutex
	started bool
}

// NewDispatcher creates a Dispatcher bound to the given Broker, using
// JSONCodec for envelope (de)serialization.
func NewDispatcher(b Broker) *Dispatcher {
	return &Dispatcher{
		broker: b,
		codec:  JSONCodec{},
	}
}

// SetCodec replaces the envelope codec. Must be called before Configure.
func (d *Dispatcher) SetCodec(c Codec) { d.codec = c }

// Use registers a global Interceptor wrapping every per-endpoint bridge
// handler. The first registered interceptor wraps outermost; the last
// registered sits directly around the bridge handler.
func (d *Dispatcher) Use(i Interceptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interceptors = append(d.interceptors, i)
}

// Router returns the configured router, primarily for tests.
func (d *Dispatcher) Router() Router { return d.router }

// Configure runs the dispatcher's ordered, non-blocking startup steps:
// setupEndpoints, setupMiddleware, setupRouter, setupTransportPublishers,
// setupExposedPublishers. Subscriptions (the consumer side) are attached by
// Start. Configure must be called exactly once, before Start.
func (d *Dispatcher) Configure(cfg Config, mws []Middleware, routerName string, routerCfg Config) error {
	if d.broker == nil {
		return ErrNoBroker
	}

	if err := d.setupEndpoints(cfg); err != nil {
		return err
	}
	d.setupMiddleware(mws)
	if err := d.setupRouter(routerName, routerCfg); err != nil {
		return err
	}
	d.setupTransportPublishers()
	d.setupExposedPublishers()

	log.Printf("[dispatchmux] Starting a %s dispatcher with config: %+v", d.routerKind, cfg)
	return nil
}

func (d *Dispatcher) setupEndpoints(cfg Config) error {
	transportNames := cfg.StringSlice("transport_names")
	exposedNames := cfg.StringSlice("exposed_names")
	if len(transportNames) == 0 && len(exposedNames) == 0 {
		return NewConfigError("dispatcher", "transport_names and exposed_names are both empty")
	}
	d.transportNames = transportNames
	d.exposedNames = exposedNames
	return nil
}

func (d *Dispatcher) setupMiddleware(mws []Middleware) {
	d.middlewares = NewMiddlewareStack(mws...)
}

func (d *Dispatcher) setupRouter(routerName string, routerCfg Config) error {
	router, err := NewRouter(routerName, d, routerCfg)
	if err != nil {
		return err
	}
	if setup, ok := router.(RoutingSetup); ok {
		if err := setup.SetupRouting(); err != nil {
			return err
		}
	}
	d.router = router
	d.routerKind = routerName
	return nil
}

func (d *Dispatcher) setupTransportPublishers() {
	d.transportOutbound = make(map[string]bool, len(d.transportNames))
	for _, name := range d.transportNames {
		d.transportOutbound[name] = true
	}
}

func (d *Dispatcher) setupExposedPublishers() {
	d.exposedInbound = make(map[string]bool, len(d.exposedNames))
	d.exposedEvent = make(map[string]bool, len(d.exposedNames))
	for _, name := range d.exposedNames {
		d.exposedInbound[name] = true
		d.exposedEvent[name] = true
	}
}

// Start attaches transport-side inbound/event consumers and exposed-side
// outbound consumers, then blocks until ctx is cancelled or a subscription
// fails to attach. On return it closes the broker. Configure must have
// completed successfully before Start is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.router == nil {
		d.mu.Unlock()
		return ErrNoRouter
	}
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	var wg sync.WaitGroup
	errCh := make(chan error, len(d.transportNames)*2+len(d.exposedNames))

	subscribe := func(topic string, bridge Handler) {
		wrapped := d.applyInterceptors(bridge)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.broker.Subscribe(ctx, topic, wrapped); err != nil {
				errCh <- fmt.Errorf("dispatchmux: subscribe %q: %w", topic, err)
			}
		}()
	}

	// setupTransportConsumers
	for _, name := range d.transportNames {
		transportName := name
		subscribe(transportInboundTopic(transportName), d.bridgeInboundMessage(transportName))
		subscribe(transportEventTopic(transportName), d.bridgeInboundEvent(transportName))
	}

	// setupExposedConsumers
	for _, name := range d.exposedNames {
		exposedName := name
		subscribe(exposedOutboundTopic(exposedName), d.bridgeOutboundMessage(exposedName))
	}

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(errCh)
		close(drained)
	}()

	select {
	case <-ctx.Done():
		select {
		case <-drained:
		case <-time.After(shutdownDrainTimeout):
			log.Printf("[dispatchmux] shutdown drain timed out after %s", shutdownDrainTimeout)
		}
		return d.broker.Close()
	case err, ok := <-errCh:
		if ok && err != nil {
			_ = d.broker.Close()
			return err
		}
		<-ctx.Done()
		return d.broker.Close()
	}
}

func (d *Dispatcher) applyInterceptors(h Handler) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := len(d.interceptors) - 1; i >= 0; i-- {
		h = d.interceptors[i](h)
	}
	return h
}

func (d *Dispatcher) bridgeInboundMessage(endpoint string) Handler {
	return func(ctx context.Context, raw Message) error {
		msg, err := d.codec.DecodeUserMessage(raw.Value())
		if err != nil {
			log.Printf("[dispatchmux] discarding inbound message on %s: %v", endpoint, err)
			return nil
		}
		if err := d.DispatchInboundMessage(ctx, endpoint, msg); err != nil {
			log.Printf("[dispatchmux] inbound dispatch error on %s: %v", endpoint, err)
		}
		return nil
	}
}

func (d *Dispatcher) bridgeInboundEvent(endpoint string) Handler {
	return func(ctx context.Context, raw Message) error {
		evt, err := d.codec.DecodeEvent(raw.Value())
		if err != nil {
			log.Printf("[dispatchmux] discarding inbound event on %s: %v", endpoint, err)
			return nil
		}
		if err := d.DispatchInboundEvent(ctx, endpoint, evt); err != nil {
			log.Printf("[dispatchmux] event dispatch error on %s: %v", endpoint, err)
		}
		return nil
	}
}

func (d *Dispatcher) bridgeOutboundMessage(endpoint string) Handler {
	return func(ctx context.Context, raw Message) error {
		msg, err := d.codec.DecodeUserMessage(raw.Value())
		if err != nil {
			log.Printf("[dispatchmux] discarding outbound message on %s: %v", endpoint, err)
			return nil
		}
		if err := d.DispatchOutboundMessage(ctx, endpoint, msg); err != nil {
			log.Printf("[dispatchmux] outbound dispatch error on %s: %v", endpoint, err)
		}
		return nil
	}
}

// --- Dispatch operations --------------------------------------------------

// DispatchInboundMessage applies the inbound middleware consume-chain for
// endpoint, then hands the result to the router.
func (d *Dispatcher) DispatchInboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	out, err := d.middlewares.ApplyConsume(ctx, DirInbound, msg, endpoint)
	if err != nil {
		if errors.Is(err, ErrDropMessage) {
			return nil
		}
		return fmt.Errorf("dispatchmux: inbound middleware: %w", err)
	}
	return d.router.DispatchInboundMessage(ctx, out.(*UserMessage))
}

// DispatchInboundEvent applies the event middleware consume-chain for
// endpoint, then hands the result to the router.
func (d *Dispatcher) DispatchInboundEvent(ctx context.Context, endpoint string, evt *Event) error {
	out, err := d.middlewares.ApplyConsume(ctx, DirEvent, evt, endpoint)
	if err != nil {
		if errors.Is(err, ErrDropMessage) {
			return nil
		}
		return fmt.Errorf("dispatchmux: event middleware: %w", err)
	}
	return d.router.DispatchInboundEvent(ctx, out.(*Event))
}

// DispatchOutboundMessage applies the outbound middleware consume-chain for
// endpoint, then hands the result to the router.
func (d *Dispatcher) DispatchOutboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	out, err := d.middlewares.ApplyConsume(ctx, DirOutbound, msg, endpoint)
	if err != nil {
		if errors.Is(err, ErrDropMessage) {
			return nil
		}
		return fmt.Errorf("dispatchmux: outbound middleware: %w", err)
	}
	return d.router.DispatchOutboundMessage(ctx, out.(*UserMessage))
}

// --- Publish operations (invoked by routers) ----------------------------

// PublishInboundMessage applies the inbound publish-chain then delivers to
// the exposed endpoint's inbound publisher. Publishing to an endpoint
// outside exposed_names is a configuration-drift error and fails loudly.
func (d *Dispatcher) PublishInboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	if !d.exposedInbound[endpoint] {
		log.Printf("[dispatchmux] publish to unknown exposed endpoint %q", endpoint)
		return fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}
	out, err := d.middlewares.ApplyPublish(ctx, DirInbound, msg, endpoint)
	if err != nil {
		if errors.Is(err, ErrDropMessage) {
			return nil
		}
		return fmt.Errorf("dispatchmux: inbound publish middleware: %w", err)
	}
	return d.publishEncoded(ctx, exposedInboundTopic(endpoint), out.(*UserMessage))
}

// PublishInboundEvent applies the event publish-chain then delivers to the
// exposed endpoint's event publisher.
func (d *Dispatcher) PublishInboundEvent(ctx context.Context, endpoint string, evt *Event) error {
	if !d.exposedEvent[endpoint] {
		log.Printf("[dispatchmux] publish to unknown exposed endpoint %q", endpoint)
		return fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}
	out, err := d.middlewares.ApplyPublish(ctx, DirEvent, evt, endpoint)
	if err != nil {
		if errors.Is(err, ErrDropMessage) {
			return nil
		}
		return fmt.Errorf("dispatchmux: event publish middleware: %w", err)
	}
	return d.publishEncodedEvent(ctx, exposedEventTopic(endpoint), out.(*Event))
}

// PublishOutboundMessage applies the outbound publish-chain then delivers
// to the transport endpoint's outbound publisher.
func (d *Dispatcher) PublishOutboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	if !d.transportOutbound[endpoint] {
		log.Printf("[dispatchmux] publish to unknown transport endpoint %q", endpoint)
		return fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}
	out, err := d.middlewares.ApplyPublish(ctx, DirOutbound, msg, endpoint)
	if err != nil {
		if errors.Is(err, ErrDropMessage) {
			return nil
		}
		return fmt.Errorf("dispatchmux: outbound publish middleware: %w", err)
	}
	return d.publishEncoded(ctx, transportOutboundTopic(endpoint), out.(*UserMessage))
}

func (d *Dispatcher) publishEncoded(ctx context.Context, topic string, msg *UserMessage) error {
	data, err := d.codec.EncodeUserMessage(msg)
	if err != nil {
		return err
	}
	return d.broker.Publish(ctx, topic, &wireMessage{key: []byte(msg.MessageID), value: data})
}

func (d *Dispatcher) publishEncodedEvent(ctx context.Context, topic string, evt *Event) error {
	data, err := d.codec.EncodeEvent(evt)
	if err != nil {
		return err
	}
	return d.broker.Publish(ctx, topic, &wireMessage{key: []byte(evt.UserMessageID), value: data})
}

// wireMessage is a minimal core.Message used only to hand encoded envelope
// bytes to Broker.Publish; brokers that need ack/nack on published messages
// don't call them on outbound messages they construct themselves.
type wireMessage struct {
	key   []byte
	value []byte
}

func (m *wireMessage) Key() []byte                { return m.key }
func (m *wireMessage) Value() []byte              { return m.value }
func (m *wireMessage) Headers() map[string]string { return nil }
func (m *wireMessage) Ack() error                 { return nil }
func (m *wireMessage) Nack() error                { return nil }
