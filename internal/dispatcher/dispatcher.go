// Package dispatcher routes text commands from the UI, scripts and the host
// event bridge to their handlers. Handlers are wrapped in middleware chosen at
// registration: loop marshalling, deadlines and debug logging.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/mapscene/animator/internal/dispatcher"

// ErrUnknownCommand is returned by Dispatch for unregistered commands.
var ErrUnknownCommand = errors.New("unknown command")

// Event is one command from the UI, a script or the host event bridge.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// Arg returns the i-th argument, or "" if absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Runner executes fn on the engine loop and waits for it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	runner  Runner
	timeout time.Duration
	logged  bool
}

// OnLoop runs the handler on the engine loop, so it may touch engine state
// no matter which goroutine dispatched the event.
func OnLoop(r Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

// Timeout bounds how long a loop handler may wait to be scheduled. A handler
// the loop reaches after the deadline is skipped. It has no effect without
// OnLoop.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

// Dispatcher routes events to registered handlers. Registration is not
// synchronized and must finish before events are dispatched.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	events   metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := otel.Meter(instrumentationName)

	var err error
	d.events, err = m.Int64Counter(
		"dispatcher.events",
		metric.WithDescription("Events dispatched, by command and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"dispatcher.event.duration",
		metric.WithDescription("Time spent handling an event"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Registering a command twice replaces the earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := h
	if o.runner != nil {
		handler = withRunner(o.runner, o.timeout, handler)
	}
	if o.logged {
		handler = d.withLogging(command, handler)
	}
	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}

	start := time.Now()
	result, err := h(e)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("command", e.Command),
		attribute.String("outcome", outcome),
	)
	ctx := context.Background()
	d.events.Add(ctx, 1, attrs)
	d.duration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), attrs)

	return result, err
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands returns every registered command, sorted.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	slices.Sort(out)
	return out
}

func withRunner(r Runner, timeout time.Duration, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var (
			result  any
			err     error
			claimed atomic.Bool
		)
		run := func() {
			if !claimed.CompareAndSwap(false, true) {
				return
			}
			result, err = h(e)
		}
		if runErr := r.Do(ctx, run); runErr != nil {
			// the caller is gone; keep a late run from mutating state
			claimed.Store(true)
			return nil, fmt.Errorf("running %s on loop: %w", e.Command, runErr)
		}
		return result, err
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
