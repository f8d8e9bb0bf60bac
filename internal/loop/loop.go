// Package loop provides the single-threaded cooperative event loop that every
// frame context runs on. Detector samples, timers, visual-frame commits and
// inbound messages are all funnelled through one queue, so the state they
// touch never needs locking.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs callbacks on a single logical thread.
type Scheduler interface {
	// Now returns the scheduler's notion of the current time.
	Now() time.Time
	// AfterFunc runs f on the loop once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	// Post enqueues f to run on the loop as soon as possible.
	Post(f func())
}

// Timer is a cancellable pending callback. Stop reports whether the call
// prevented the callback from running.
type Timer interface {
	Stop() bool
}

// ErrStopped is returned by Do when the loop has been stopped.
var ErrStopped = errors.New("loop: stopped")

// Loop is the real-time Scheduler. Callbacks posted from any goroutine run
// sequentially on the goroutine that called Run.
type Loop struct {
	queue    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// New creates a loop with the given queue capacity.
func New(size int, logger *slog.Logger) *Loop {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  make(chan func(), size),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// Run drains the queue until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.queue:
			l.invoke(fn)
		case <-l.stopCh:
			return nil
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		}
	}
}

// Stop ends Run. Stop is idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time { return time.Now() }

// Post implements Scheduler. Callbacks posted after Stop are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.stopCh:
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case l.queue <- func() {
		defer close(done)
		fn()
	}:
	case <-l.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc implements Scheduler. The callback is posted to the loop when the
// underlying timer fires and is skipped if Stop won the race in between.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.fire() {
				fn()
			}
		})
	})
	return t
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop: callback panicked", "panic", r)
		}
	}()
	fn()
}

const (
	timerPending int32 = iota
	timerFired
	timerStopped
)

type loopTimer struct {
	timer *time.Timer
	state atomic.Int32
}

func (t *loopTimer) fire() bool {
	return t.state.CompareAndSwap(timerPending, timerFired)
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.state.CompareAndSwap(timerPending, timerStopped)
}
