// Package render hosts sub-renderers inside the map host's per-frame
// callback. Each renderer becomes one host custom layer with the lifecycle
// Unregistered -> Initializing -> Active -> TornDown.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/retry"
)

// ErrDisposal wraps failures while freeing renderer resources. It is logged
// and discarded, never returned to callers.
var ErrDisposal = errors.New("disposal failed")

// ErrUnknownLayer is returned for handles this host never issued.
var ErrUnknownLayer = errors.New("unknown layer")

// State is a layer lifecycle state.
type State int

const (
	Unregistered State = iota
	Initializing
	Active
	TornDown
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Initializing:
		return "initializing"
	case Active:
		return "active"
	case TornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handle identifies a registered layer. It is the host layer id.
type Handle string

// Spec describes a layer to register.
type Spec struct {
	ID string
	// Before inserts the layer below the host layer with this id.
	Before   string
	Renderer Renderer
}

// FrameStats is reported to observers after each drawn layer frame.
type FrameStats struct {
	Layer    string
	Number   int
	Duration time.Duration
	Drawn    bool
}

// FrameObserver receives per-layer frame statistics.
type FrameObserver func(FrameStats)

// LayerStatus is a read-only view of one layer.
type LayerStatus struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Frames int    `json:"frames"`
	// GaveUp is set when initialization exhausted its retries.
	GaveUp bool `json:"gaveUp,omitempty"`
}

// Host owns every registered layer.
type Host struct {
	adapter *host.Adapter
	sched   loop.Scheduler
	policy  retry.Policy
	logger  *slog.Logger

	layers    map[Handle]*layer
	order     []Handle
	observers []FrameObserver

	framesDrawn   metric.Int64Counter
	framesSkipped metric.Int64Counter
	frameDuration metric.Float64Histogram
}

// NewHost creates a layer host. Uses the global OTel meter (no-op if not configured).
func NewHost(adapter *host.Adapter, sched loop.Scheduler, policy retry.Policy, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy.Retryable = func(err error) bool {
		return errors.Is(err, host.ErrHostNotReady)
	}
	h := &Host{
		adapter: adapter,
		sched:   sched,
		policy:  policy,
		logger:  logger,
		layers:  make(map[Handle]*layer),
	}

	m := meter()
	var err error
	h.framesDrawn, err = m.Int64Counter(
		"render.frames.drawn",
		metric.WithDescription("Layer frames drawn"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating drawn counter: %w", err)
	}
	h.framesSkipped, err = m.Int64Counter(
		"render.frames.skipped",
		metric.WithDescription("Layer frames skipped (inactive, invalid matrix or draw failure)"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	h.frameDuration, err = m.Float64Histogram(
		"render.frame.duration",
		metric.WithDescription("Layer draw time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return h, nil
}

// Adapter returns the host adapter layers are bound to.
func (h *Host) Adapter() *host.Adapter {
	return h.adapter
}

// Observe registers a frame observer.
func (h *Host) Observe(fn FrameObserver) {
	h.observers = append(h.observers, fn)
}

// Register adds a host custom layer for spec. The host's OnAdd starts
// initialization, which is retried while the host is not ready.
func (h *Host) Register(spec Spec) (Handle, error) {
	if spec.ID == "" {
		return "", errors.New("layer id is required")
	}
	if spec.Renderer == nil {
		return "", fmt.Errorf("layer %s: renderer is required", spec.ID)
	}
	handle := Handle(spec.ID)
	if l, ok := h.layers[handle]; ok && l.state != TornDown {
		return "", fmt.Errorf("%w: %s", host.ErrLayerExists, spec.ID)
	}
	l := &layer{host: h, handle: handle, spec: spec}
	h.layers[handle] = l
	h.order = append(slices.DeleteFunc(h.order, func(x Handle) bool { return x == handle }), handle)

	if err := h.adapter.AddLayer(l, spec.Before); err != nil {
		delete(h.layers, handle)
		h.order = slices.DeleteFunc(h.order, func(x Handle) bool { return x == handle })
		return "", fmt.Errorf("registering layer %s: %w", spec.ID, err)
	}
	h.logger.Debug("layer registered", "layer", spec.ID, "before", spec.Before)
	return handle, nil
}

// State returns the lifecycle state of handle.
func (h *Host) State(handle Handle) State {
	if l, ok := h.layers[handle]; ok {
		return l.state
	}
	return Unregistered
}

// Layers returns every known layer in registration order.
func (h *Host) Layers() []LayerStatus {
	out := make([]LayerStatus, 0, len(h.order))
	for _, handle := range h.order {
		l := h.layers[handle]
		out = append(out, LayerStatus{ID: string(handle), State: l.state.String(), Frames: l.frames, GaveUp: l.gaveUp})
	}
	return out
}

// PerFrame draws one layer for one host frame: adopt the host matrix, reset
// the shared surface, draw, and request another frame while animating.
// Failures are logged and the frame is skipped; nothing reaches the host.
func (h *Host) PerFrame(handle Handle, matrix [16]float64) {
	l, ok := h.layers[handle]
	if !ok {
		return
	}
	l.draw(matrix)
}

// RenderAll draws every active layer in host layer order with one matrix snapshot.
func (h *Host) RenderAll(matrix [16]float64) {
	for _, handle := range h.drawOrder() {
		if l := h.layers[handle]; l.state == Active {
			l.draw(matrix)
		}
	}
}

func (h *Host) drawOrder() []Handle {
	ids, err := h.adapter.LayerOrder()
	if err != nil {
		return slices.Clone(h.order)
	}
	out := make([]Handle, 0, len(h.layers))
	for _, id := range ids {
		if _, ok := h.layers[Handle(id)]; ok {
			out = append(out, Handle(id))
		}
	}
	return out
}

// Unregister tears a layer down: cancels pending initialization, removes the
// host layer and disposes the renderer. It is idempotent and never fails;
// errors are logged at debug level and discarded.
func (h *Host) Unregister(handle Handle) {
	l, ok := h.layers[handle]
	if !ok {
		return
	}
	if l.state == TornDown {
		return
	}
	l.teardown()
	if h.adapter.HasLayer(string(handle)) {
		if err := h.adapter.RemoveLayer(string(handle)); err != nil {
			h.logger.Debug("remove layer failed", "layer", handle, "error", err)
		}
	}
}

// Teardown unregisters every layer in registration order. Call it before the
// shared surface is destroyed.
func (h *Host) Teardown() {
	for _, handle := range slices.Clone(h.order) {
		h.Unregister(handle)
	}
}

func (h *Host) record(ctx context.Context, stats FrameStats) {
	attrs := metric.WithAttributes(attribute.String("layer", stats.Layer))
	if stats.Drawn {
		h.framesDrawn.Add(ctx, 1, attrs)
		h.frameDuration.Record(ctx, float64(stats.Duration)/float64(time.Millisecond), attrs)
	} else {
		h.framesSkipped.Add(ctx, 1, attrs)
	}
	for _, fn := range h.observers {
		fn(stats)
	}
}

// layer is the host custom layer wrapping one renderer.
type layer struct {
	host    *Host
	handle  Handle
	spec    Spec
	state   State
	surface Surface
	init    *retry.Run
	frames  int
	gaveUp  bool
}

var _ host.CustomLayer = (*layer)(nil)

func (l *layer) ID() string {
	return string(l.handle)
}

func (l *layer) OnAdd(_ host.Map, s host.Surface) {
	if l.state != Unregistered {
		return
	}
	l.state = Initializing
	l.surface = s
	h := l.host
	l.init = retry.Start(h.policy, h.sched, func(attempt int) error {
		if l.state != Initializing {
			return nil
		}
		if err := h.adapter.Ready(); err != nil {
			h.logger.Debug("host not ready, deferring layer init", "layer", l.handle, "attempt", attempt)
			return err
		}
		if err := l.initRenderer(); err != nil {
			h.logger.Debug("layer init failed", "layer", l.handle, "attempt", attempt, "error", err)
			return err
		}
		l.state = Active
		h.logger.Info("layer active", "layer", l.handle, "attempts", attempt)
		if err := h.adapter.TriggerRepaint(); err != nil {
			h.logger.Debug("repaint request failed", "layer", l.handle, "error", err)
		}
		return nil
	}, func(err error) {
		l.gaveUp = true
		h.logger.Warn("giving up on layer initialization", "layer", l.handle, "error", err)
	})
}

func (l *layer) initRenderer() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer init panic: %v", r)
		}
	}()
	return l.spec.Renderer.Init(l.surface, l.host.adapter)
}

func (l *layer) Render(_ host.Surface, matrix [16]float64) {
	l.draw(matrix)
}

func (l *layer) OnRemove(host.Map, host.Surface) {
	l.teardown()
}

func (l *layer) draw(matrix [16]float64) {
	h := l.host
	ctx := context.Background()
	stats := FrameStats{Layer: string(l.handle), Number: l.frames + 1}

	if l.state != Active || l.surface == nil || l.surface.Destroyed() {
		h.record(ctx, stats)
		return
	}
	proj, err := geo.ProjectMatrix(matrix)
	if err != nil {
		h.logger.Warn("skipping frame", "layer", l.handle, "error", err)
		h.record(ctx, stats)
		return
	}

	l.surface.ResetState()
	w, ht := l.surface.Size()
	frame := Frame{
		Number:   stats.Number,
		Matrix:   proj,
		Viewport: geo.Viewport{Width: float64(w), Height: float64(ht)},
	}
	if camera, err := h.adapter.Camera(); err == nil {
		frame.Camera = camera
	}

	start := time.Now()
	if err := l.renderSafe(frame); err != nil {
		h.logger.Warn("layer draw failed", "layer", l.handle, "error", err)
		h.record(ctx, stats)
		return
	}
	stats.Duration = time.Since(start)
	stats.Drawn = true
	l.frames++
	h.record(ctx, stats)

	if a, ok := l.spec.Renderer.(Animator); ok && a.Animating() {
		if err := h.adapter.TriggerRepaint(); err != nil {
			h.logger.Debug("repaint request failed", "layer", l.handle, "error", err)
		}
	}
}

func (l *layer) renderSafe(frame Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return l.spec.Renderer.Render(l.surface, frame)
}

// teardown is the terminal transition. Safe to call repeatedly.
func (l *layer) teardown() {
	if l.state == TornDown {
		return
	}
	prev := l.state
	l.state = TornDown
	l.init.Stop()
	l.init = nil
	if prev == Unregistered {
		return
	}
	if err := l.disposeSafe(); err != nil {
		l.host.logger.Debug("ignoring disposal error", "layer", l.handle, "error", err)
	}
	l.surface = nil
}

func (l *layer) disposeSafe() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDisposal, r)
		}
	}()
	if err := l.spec.Renderer.Dispose(); err != nil {
		return fmt.Errorf("%w: %w", ErrDisposal, err)
	}
	return nil
}
