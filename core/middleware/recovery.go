package middleware

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/dispatchmux/dispatchmux/core"
)

// Recovery returns an Interceptor that recovers from panics raised while
// decoding or dispatching a message, logs the stack trace, and turns the
// panic into an error. Interceptors wrap the dispatcher's bridge handler, so
// that error is returned to the broker's subscription loop that invoked the
// wrapped handler.
func Recovery() core.Interceptor {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, msg core.Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					log.Printf("[dispatchmux] PANIC recovered: %v\n%s", r, buf[:n])
					err = fmt.Errorf("dispatchmux: panic recovered: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}
