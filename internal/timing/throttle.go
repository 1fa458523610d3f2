package timing

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle lets one call through, then ignores calls for limit before
// letting the next one through and restarting the window.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns a throttle with the given window.
// A non-positive limit never throttles.
func NewThrottle(limit time.Duration) *Throttle {
	if limit <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(limit), 1)}
}

// Allow reports whether a call at the current time may proceed and, if so,
// starts a new window
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}

// Wrap returns fn guarded by the throttle. The returned function reports
// whether fn ran.
func (t *Throttle) Wrap(fn func()) func() bool {
	return func() bool {
		if !t.Allow() {
			return false
		}
		fn()
		return true
	}
}

// ThrottleFunc returns fn guarded by a fresh throttle of the given window
func ThrottleFunc[T any](fn func(T), limit time.Duration) func(T) bool {
	t := NewThrottle(limit)
	return func(v T) bool {
		if !t.Allow() {
			return false
		}
		fn(v)
		return true
	}
}
