package netutil

import (
	"errors"
	"time"
)

// ErrWaitTimeout is returned by WaitFor when the condition never held.
var ErrWaitTimeout = errors.New("condition not met before timeout")

// WaitFor polls check every interval until it returns true or timeout
// elapses. The check runs once immediately, so an already-true condition
// never sleeps. The retry budget is bounded; there is no other cancellation
// mechanism.
func WaitFor(check func() bool, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if check() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrWaitTimeout
		}
		time.Sleep(interval)
	}
}
