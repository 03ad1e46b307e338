// Package keyframe plays camera paths, actor animations and effects of a
// scene against the host, and handles keyframe capture and drag editing.
package keyframe

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/pkg/core"
)

// Config tunes the engine.
type Config struct {
	// TickInterval is the playback clock resolution.
	TickInterval time.Duration
	// HitRadius is the pointer hit-test distance in pixels.
	HitRadius float64
}

// DefaultConfig mirrors the config defaults.
func DefaultConfig() Config {
	return Config{TickInterval: 16 * time.Millisecond, HitRadius: 20}
}

// EffectHandler is notified with an effect and its progress in [0,1).
type EffectHandler func(e core.Effect, progress float64)

type playback struct {
	sceneID  string
	speed    float64
	duration float64
	started  time.Time
	t        float64
	token    loop.Token
	playing  bool
}

type editState struct {
	enabled  bool
	selected int
	dragging bool
}

// Engine drives one playback clock at a time against the host.
type Engine struct {
	scenes  *scene.Context
	adapter *host.Adapter
	sched   loop.Scheduler
	logger  *slog.Logger
	cfg     Config

	handlers     map[core.EffectKind][]EffectHandler
	onFrame      []func(Frame)
	onPathChange []func(core.Scene)

	play       playback
	edit       editState
	lastCamera core.CameraState
}

// New creates an engine. Built-in effect handlers are not installed; see
// RegisterBuiltinEffects.
func New(scenes *scene.Context, adapter *host.Adapter, sched loop.Scheduler, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.HitRadius <= 0 {
		cfg.HitRadius = def.HitRadius
	}
	return &Engine{
		scenes:   scenes,
		adapter:  adapter,
		sched:    sched,
		logger:   logger,
		cfg:      cfg,
		handlers: make(map[core.EffectKind][]EffectHandler),
		edit:     editState{selected: -1},
	}
}

// HandleEffect registers fn for effects of kind.
func (e *Engine) HandleEffect(kind core.EffectKind, fn EffectHandler) {
	e.handlers[kind] = append(e.handlers[kind], fn)
}

// OnFrame registers an observer for every applied frame.
func (e *Engine) OnFrame(fn func(Frame)) {
	e.onFrame = append(e.onFrame, fn)
}

// OnPathChange registers an observer for camera path edits.
func (e *Engine) OnPathChange(fn func(core.Scene)) {
	e.onPathChange = append(e.onPathChange, fn)
}

// Play starts the playback clock for sceneID from t=0. A running playback is
// restarted, never stacked. A path with fewer than two keyframes is a logged
// no-op returning ErrInsufficientKeyframes and leaves the host untouched.
func (e *Engine) Play(sceneID string, speed float64) error {
	s, ok := e.scenes.Get(sceneID)
	if !ok {
		return fmt.Errorf("%w: scene %s", scene.ErrNotFound, sceneID)
	}
	if len(s.CameraPath) < 2 {
		e.logger.Warn("playback skipped", "scene", s.Name, "keyframes", len(s.CameraPath))
		return ErrInsufficientKeyframes
	}
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = 1
	}

	e.stopClock()
	if _, err := e.scenes.Update(sceneID, func(s core.Scene) (core.Scene, error) {
		return scene.ResetActors(s), nil
	}); err != nil {
		return err
	}

	e.play = playback{
		sceneID:  sceneID,
		speed:    speed,
		duration: scene.EffectiveDuration(s),
		started:  e.sched.Now(),
		playing:  true,
	}
	e.logger.Info("playback started", "scene", s.Name, "duration", e.play.duration, "speed", speed)
	e.tick()
	return nil
}

func (e *Engine) tick() {
	p := &e.play
	p.token = nil
	if !p.playing {
		return
	}
	p.t = math.Min(e.sched.Now().Sub(p.started).Seconds()*p.speed, p.duration)
	e.applyAt(p.sceneID, p.t)
	if p.t >= p.duration {
		p.playing = false
		e.logger.Info("playback finished", "scene", p.sceneID)
		return
	}
	p.token = e.sched.AfterFunc(e.cfg.TickInterval, e.tick)
}

// applyAt samples the scene and pushes the result to the host, the scene
// context and the effect handlers.
func (e *Engine) applyAt(sceneID string, t float64) {
	s, ok := e.scenes.Get(sceneID)
	if !ok {
		e.logger.Warn("scene vanished during playback", "scene", sceneID)
		e.stopClock()
		return
	}
	frame, err := Sample(s, t)
	if err != nil {
		e.logger.Warn("playback stopped", "scene", s.Name, "error", err)
		e.stopClock()
		return
	}
	if err := e.adapter.JumpTo(CameraState(frame.Camera)); err != nil {
		e.logger.Debug("camera update failed", "error", err)
	}
	if len(frame.Actors) > 0 {
		if _, err := e.scenes.Update(sceneID, func(s core.Scene) (core.Scene, error) {
			out := scene.Clone(s)
			for i := range out.Actors {
				if i < len(frame.Actors) && out.Actors[i].ID == frame.Actors[i].ID {
					out.Actors[i].Current = frame.Actors[i].Current
				}
			}
			return out, nil
		}); err != nil {
			e.logger.Debug("actor update failed", "error", err)
		}
	}
	for _, es := range frame.Effects {
		for _, fn := range e.handlers[es.Effect.Kind] {
			e.notifyEffect(fn, es)
		}
	}
	for _, fn := range e.onFrame {
		fn(frame)
	}
}

func (e *Engine) notifyEffect(fn EffectHandler, es EffectSample) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("effect handler panicked", "effect", es.Effect.ID, "kind", es.Effect.Kind, "panic", r)
		}
	}()
	fn(es.Effect, es.Progress)
}

// Seek applies the scene state at t without starting the clock.
func (e *Engine) Seek(sceneID string, t float64) error {
	s, ok := e.scenes.Get(sceneID)
	if !ok {
		return fmt.Errorf("%w: scene %s", scene.ErrNotFound, sceneID)
	}
	if len(s.CameraPath) < 2 {
		return ErrInsufficientKeyframes
	}
	e.applyAt(sceneID, math.Max(0, t))
	return nil
}

func (e *Engine) stopClock() {
	if e.play.token != nil {
		e.play.token.Stop()
		e.play.token = nil
	}
	e.play.playing = false
}

// Stop halts the clock and resets t to 0.
func (e *Engine) Stop() {
	wasPlaying := e.play.playing
	e.stopClock()
	e.play.t = 0
	if wasPlaying {
		e.logger.Info("playback stopped", "scene", e.play.sceneID)
	}
}

// Playing reports whether a clock is running.
func (e *Engine) Playing() bool {
	return e.play.playing
}

// Status returns the playback state for display.
func (e *Engine) Status() core.PlaybackStatus {
	st := core.PlaybackStatus{
		SceneID:  e.play.sceneID,
		Playing:  e.play.playing,
		Time:     e.play.t,
		Duration: e.play.duration,
	}
	if st.Duration > 0 {
		st.Progress = st.Time / st.Duration
	}
	return st
}

// Capture appends a keyframe from camera at t to sceneID.
func (e *Engine) Capture(sceneID string, camera core.CameraState, t float64) (core.Scene, error) {
	s, err := e.scenes.Update(sceneID, func(s core.Scene) (core.Scene, error) {
		return scene.CaptureKeyframe(s, camera, t)
	})
	if err != nil {
		return s, err
	}
	e.pathChanged(s)
	return s, nil
}

// CaptureFromHost appends a keyframe from the live host camera.
func (e *Engine) CaptureFromHost(sceneID string, t float64) (core.Scene, error) {
	camera, err := e.adapter.Camera()
	if err != nil {
		return core.Scene{}, err
	}
	return e.Capture(sceneID, camera, t)
}

// LastCamera returns the most recent camera seen through CameraMovedMsg.
func (e *Engine) LastCamera() core.CameraState {
	return e.lastCamera
}

// SetEditMode toggles drag editing. Leaving edit mode drops any selection.
func (e *Engine) SetEditMode(enabled bool) {
	e.edit = editState{enabled: enabled, selected: -1}
}

// Selected returns the selected keyframe index or -1.
func (e *Engine) Selected() int {
	return e.edit.selected
}

// EditKeyframe handles one pointer event in edit mode. On down it selects
// index when index >= 0, else the nearest projected keyframe within the hit
// radius. Moves drag the selection in place; up releases it.
func (e *Engine) EditKeyframe(sceneID string, index int, ev core.PointerEvent) error {
	if !e.edit.enabled {
		return nil
	}
	s, ok := e.scenes.Get(sceneID)
	if !ok {
		return fmt.Errorf("%w: scene %s", scene.ErrNotFound, sceneID)
	}
	switch ev.Kind {
	case core.PointerDown:
		e.edit.selected = -1
		e.edit.dragging = false
		if index >= 0 {
			if index >= len(s.CameraPath) {
				return fmt.Errorf("%w: keyframe %d", scene.ErrNotFound, index)
			}
			e.edit.selected = index
		} else {
			e.edit.selected = e.hitTest(s, ev.X, ev.Y)
		}
		e.edit.dragging = e.edit.selected >= 0
	case core.PointerMove:
		if !e.edit.dragging {
			return nil
		}
		if !ev.Ground {
			// pointer above the horizon; keep the drag, leave the keyframe
			return nil
		}
		next, err := e.scenes.Update(sceneID, func(s core.Scene) (core.Scene, error) {
			return scene.MoveKeyframe(s, e.edit.selected, core.GeodeticPoint{Lng: ev.Lng, Lat: ev.Lat})
		})
		if err != nil {
			return err
		}
		e.pathChanged(next)
	case core.PointerUp:
		e.edit.dragging = false
		e.edit.selected = -1
	}
	return nil
}

func (e *Engine) hitTest(s core.Scene, x, y float64) int {
	best, bestDist := -1, e.cfg.HitRadius
	for i, kf := range s.CameraPath {
		px, py, err := e.adapter.Project(core.GeodeticPoint{Lng: kf.Position.Lng, Lat: kf.Position.Lat})
		if err != nil {
			if !errors.Is(err, host.ErrNotVisible) {
				e.logger.Debug("hit test projection failed", "keyframe", i, "error", err)
			}
			continue
		}
		if d := math.Hypot(px-x, py-y); d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (e *Engine) pathChanged(s core.Scene) {
	for _, fn := range e.onPathChange {
		fn(s)
	}
	if err := e.adapter.TriggerRepaint(); err != nil {
		e.logger.Debug("repaint request failed", "error", err)
	}
}

// Bind subscribes the engine to host camera and pointer events. Pointer
// events edit the current scene. The returned func unsubscribes.
func (e *Engine) Bind() (func(), error) {
	unMove, err := e.adapter.OnMove(func(c core.CameraState) {
		_ = e.Update(CameraMovedMsg{Camera: c})
	})
	if err != nil {
		return nil, err
	}
	unPointer, err := e.adapter.OnPointer(func(ev core.PointerEvent) {
		if err := e.Update(PointerMsg{SceneID: e.scenes.CurrentID(), Index: -1, Event: ev}); err != nil {
			e.logger.Debug("pointer edit failed", "error", err)
		}
	})
	if err != nil {
		unMove()
		return nil, err
	}
	return func() {
		unMove()
		unPointer()
	}, nil
}
