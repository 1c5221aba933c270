// Package query holds the live filter plumbing of list views.
package query

import (
	"context"
	"time"
)

// DefaultDelay is the quiet period before a filter edit is applied
const DefaultDelay = 500 * time.Millisecond

// Debounce emits the last value received from in once no new value arrived
// for delay. Pending values are flushed when in is closed; the returned
// channel is closed when in is closed or ctx is done.
func Debounce[T any](ctx context.Context, in <-chan T, delay time.Duration) <-chan T {
	if delay <= 0 {
		delay = DefaultDelay
	}
	out := make(chan T)

	go func() {
		defer close(out)

		timer := time.NewTimer(delay)
		timer.Stop()
		defer timer.Stop()

		var (
			last    T
			pending bool
		)
		emit := func() bool {
			pending = false
			select {
			case out <- last:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					if pending {
						emit()
					}
					return
				}
				last, pending = v, true
				timer.Reset(delay)
			case <-timer.C:
				if pending && !emit() {
					return
				}
			}
		}
	}()

	return out
}
