// Package loop provides the single-threaded cooperative scheduler every engine
// runs on. Callbacks never run concurrently with each other; timers post their
// callbacks onto the loop, and a stopped Token guarantees its callback never runs.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Token cancels one pending timer. Stop is idempotent.
type Token interface {
	Stop()
}

// Scheduler is what engines depend on for time and deferred work.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Token
	// Post queues fn to run on the loop after the current callback.
	Post(fn func())
}

// Loop is the real-time Scheduler. Run must be called for callbacks to execute.
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	running atomic.Bool
	once    sync.Once
}

// New creates a loop with the given task queue capacity.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Now returns wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn. Posting after shutdown is a no-op.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

type loopTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (lt *loopTimer) Stop() {
	lt.stopped.Store(true)
	if lt.t != nil {
		lt.t.Stop()
	}
}

// AfterFunc arms a wall-clock timer whose callback is executed on the loop.
// The stop flag is checked on the loop, so a Token stopped from a loop
// callback can never fire afterwards even if its timer already expired.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Token {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped.Load() {
				return
			}
			fn()
		})
	})
	return lt
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return context.Canceled
	}
}

// Run executes posted callbacks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	defer l.running.Store(false)
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.done:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Close stops the loop. Pending callbacks are dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}
