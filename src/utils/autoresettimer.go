package utils

import (
	"context"
	"time"
)

// AutoResetTimer fires on C every dur, measured from when the previous tick
// was received rather than when it was sent. Slow consumers never see a
// backlog of ticks. C is closed when ctx is done.
type AutoResetTimer struct {
	C chan struct{}
}

func MakeAutoResetTimer(ctx context.Context, dur time.Duration, triggerImmediately bool) *AutoResetTimer {
	res := &AutoResetTimer{C: make(chan struct{})}

	go func() {
		defer close(res.C)

		send := func() bool {
			select {
			case res.C <- struct{}{}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if triggerImmediately && !send() {
			return
		}

		timer := time.NewTimer(dur)
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				if !send() {
					return
				}
				timer.Reset(dur)
			case <-ctx.Done():
				return
			}
		}
	}()

	return res
}
