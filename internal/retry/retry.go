// Package retry is the single bounded-retry utility used for every
// "wait for host readiness" need. Attempts are scheduled on the loop, never
// slept on, and stop after MaxAttempts.
package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/mapscene/animator/internal/loop"
)

// ErrGaveUp wraps the last error once the attempt cap is reached.
var ErrGaveUp = errors.New("retry attempts exhausted")

// Policy is a capped, increasing backoff schedule.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// DefaultPolicy mirrors the config defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the wait before the given attempt (attempt 1 runs immediately).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay)
	for i := 2; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Run is one in-flight retry sequence.
type Run struct {
	policy   Policy
	sched    loop.Scheduler
	fn       func(attempt int) error
	onGiveUp func(error)
	token    loop.Token
	attempt  int
	done     bool
}

// Start runs fn immediately and re-schedules it on retryable failure. onGiveUp
// is called once with an error wrapping ErrGaveUp (or the non-retryable error).
func Start(p Policy, sched loop.Scheduler, fn func(attempt int) error, onGiveUp func(error)) *Run {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	r := &Run{policy: p, sched: sched, fn: fn, onGiveUp: onGiveUp}
	r.next()
	return r
}

func (r *Run) next() {
	if r.done {
		return
	}
	r.token = nil
	r.attempt++
	err := r.fn(r.attempt)
	if err == nil {
		r.done = true
		return
	}
	if r.policy.Retryable != nil && !r.policy.Retryable(err) {
		r.finish(err)
		return
	}
	if r.attempt >= r.policy.MaxAttempts {
		r.finish(fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, r.attempt, err))
		return
	}
	r.token = r.sched.AfterFunc(r.policy.Delay(r.attempt+1), r.next)
}

func (r *Run) finish(err error) {
	r.done = true
	if r.onGiveUp != nil {
		r.onGiveUp(err)
	}
}

// Stop cancels any pending attempt. Safe to call more than once.
func (r *Run) Stop() {
	if r == nil {
		return
	}
	r.done = true
	if r.token != nil {
		r.token.Stop()
		r.token = nil
	}
}

// Attempts returns how many times fn has run.
func (r *Run) Attempts() int {
	return r.attempt
}

// Done reports whether the sequence succeeded, gave up or was stopped.
func (r *Run) Done() bool {
	return r.done
}
