package core

// Bus queue naming: every transport endpoint T exposes
// T.inbound/T.outbound/T.event; every exposed (application-facing)
// endpoint E exposes the same three queues with reversed roles.

func transportInboundTopic(name string) string { return name + ".inbound" }
func transportOutboundTopic(name string) string { return name + ".outbound" }
func transportEventTopic(name string) string    { return name + ".event" }

func exposedInboundTopic(name string) string { return name + ".inbound" }
func exposedOutboundTopic(name string) string { return name + ".outbound" }
func exposedEventTopic(name string) string    { return name + ".event" }
