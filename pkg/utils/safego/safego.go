package safego

import (
	"context"
	"runtime/debug"

	"github.com/kiosk404/anima/pkg/logger"
)

// Go runs fn in a new goroutine with panic isolation.
// A panicking fn is logged with its stack trace instead of crashing the process.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[safego] goroutine panic recovered: %v\n%s", r, debug.Stack())
			}
		}()
		select {
		case <-ctx.Done():
			return
		default:
		}
		fn()
	}()
}
