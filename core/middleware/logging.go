package middleware

import (
	"context"
	"log"
	"time"

	"github.com/dispatchmux/dispatchmux/core"
)

// Logging returns an Interceptor that logs message processing duration and
// errors around the dispatcher's per-subscription bridge handler.
func Logging() core.Interceptor {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, msg core.Message) error {
			start := time.Now()
			err := next(ctx, msg)
			elapsed := time.Since(start)

			if err != nil {
				log.Printf("[dispatchmux] ERROR key=%s elapsed=%s err=%v", string(msg.Key()), elapsed, err)
			} else {
				log.Printf("[dispatchmux] OK    key=%s elapsed=%s", string(msg.Key()), elapsed)
			}
			return err
		}
	}
}

// LoggingMiddleware is a concrete core.Middleware, distinct from the
// Interceptor bridge wrapper above: it logs every message as it passes each
// direction-tagged consume/publish hook, tagged by direction and endpoint.
// Registered under the name "logging" so `middleware: [logging]` in a
// dispatcher's YAML config wires it into the stack.
type LoggingMiddleware struct{}

func init() {
	core.RegisterMiddleware("logging", func(cfg core.Config) (core.Middleware, error) {
		return LoggingMiddleware{}, nil
	})
}

func (LoggingMiddleware) HandleConsume(_ context.Context, dir core.Direction, msg any, endpoint string) (any, error) {
	log.Printf("[dispatchmux] middleware consume dir=%s endpoint=%s", dir, endpoint)
	return msg, nil
}

func (LoggingMiddleware) HandlePublish(_ context.Context, dir core.Direction, msg any, endpoint string) (any, error) {
	log.Printf("[dispatchmux] middleware publish dir=%s endpoint=%s", dir, endpoint)
	return msg, nil
}
