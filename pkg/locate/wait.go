package locate

import (
	"context"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// DefaultInterval is the polling interval between checks of a wait.
const DefaultInterval = 500 * time.Millisecond

// Until calls fn every interval until it returns nil, the timeout elapses or
// ctx is done. fn is always called at least once, so a zero timeout is a
// single check. On timeout the last error from fn is the cause of the
// returned core.ErrWaitTimeout.
func Until(ctx context.Context, timeout, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return core.ErrWaitTimeout.
				WithMessage("wait timed out after " + timeout.String()).
				WithCause(err)
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
