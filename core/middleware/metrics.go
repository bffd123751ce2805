package middleware

import (
	"context"
	"time"

	"github.com/dispatchmux/dispatchmux/core"
)

// MetricsCollector is the interface metrics backends must implement. This
// keeps the interceptor decoupled from any specific metrics library.
type MetricsCollector interface {
	// MessageProcessed records that a message was processed. topic is the
	// subscription queue name, duration is processing time, and err is nil
	// on success.
	MessageProcessed(topic string, duration time.Duration, err error)
}

// Metrics returns an Interceptor that reports processing metrics to the
// given collector. topic identifies the subscription for metric labeling.
func Metrics(topic string, collector MetricsCollector) core.Interceptor {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, msg core.Message) error {
			start := time.Now()
			err := next(ctx, msg)
			collector.MessageProcessed(topic, time.Since(start), err)
			return err
		}
	}
}
