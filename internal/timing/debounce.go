// Package timing provides debounce and throttle wrappers used by the
// engagement controller and by scroll-driven pagination.
package timing

import (
	"sync"
	"time"
)

// Debouncer delays fn until wait has passed without another Call.
// Only the argument of the last Call in a busy window is delivered.
// A Debouncer owns at most one outstanding timer.
type Debouncer[T any] struct {
	fn   func(T)
	wait time.Duration

	mu    sync.Mutex
	timer *time.Timer
	arg   T
	gen   uint64 // bumped on every reschedule so a timer that lost the race to Stop can tell
}

// NewDebouncer returns a debouncer calling fn after wait
func NewDebouncer[T any](fn func(T), wait time.Duration) *Debouncer[T] {
	return &Debouncer[T]{fn: fn, wait: wait}
}

// Debounce is the function form of NewDebouncer
func Debounce[T any](fn func(T), wait time.Duration) func(T) {
	return NewDebouncer(fn, wait).Call
}

// Call cancels any scheduled invocation and schedules fn(v) after the wait
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.arg = v
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

// Stop cancels the scheduled invocation. It reports whether one was pending.
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	var zero T
	d.arg = zero
	return true
}

// Flush runs a pending invocation immediately on the calling goroutine
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	arg := d.take()
	d.mu.Unlock()

	d.fn(arg)
}

// Pending reports whether an invocation is scheduled
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	arg := d.take()
	d.mu.Unlock()

	d.fn(arg)
}

// take clears the pending state and returns its argument. Caller holds mu.
func (d *Debouncer[T]) take() T {
	arg := d.arg
	var zero T
	d.arg = zero
	d.timer = nil
	d.gen++
	return arg
}
