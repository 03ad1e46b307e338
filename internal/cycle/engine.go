package cycle

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/util"
	"github.com/mapscene/animator/pkg/core"
)

// Paint properties written on the sky layer.
const (
	PropGradient   = "sky-gradient"
	PropBackground = "background-color"
	PropSun        = "sun"
	PropStars      = "stars"
	PropPhase      = "sky-phase"
)

// Config tunes the engine.
type Config struct {
	LayerID            string
	CycleDuration      time.Duration
	FrameInterval      time.Duration
	TransitionDuration time.Duration
	TransitionSteps    int
}

// DefaultConfig mirrors the config defaults.
func DefaultConfig() Config {
	return Config{
		LayerID:            "sky",
		CycleDuration:      60 * time.Second,
		FrameInterval:      16 * time.Millisecond,
		TransitionDuration: 1500 * time.Millisecond,
		TransitionSteps:    90,
	}
}

type transition struct {
	from   State
	to     core.Palette
	step   int
	target string
}

// Engine runs the sky in one of two mutually exclusive modes. A single timer
// token is shared by both, so starting either cancels the other.
type Engine struct {
	adapter *host.Adapter
	sched   loop.Scheduler
	logger  *slog.Logger
	cfg     Config

	lib   *Library
	table *Table

	mode     core.CycleMode
	token    loop.Token
	origin   time.Time
	progress float64
	trans    transition

	applied   State
	palette   string
	observers []func(State)
}

// NewEngine creates an idle engine over lib using table tableName.
func NewEngine(adapter *host.Adapter, sched loop.Scheduler, lib *Library, tableName string, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	def := DefaultConfig()
	if cfg.LayerID == "" {
		cfg.LayerID = def.LayerID
	}
	if cfg.CycleDuration <= 0 {
		cfg.CycleDuration = def.CycleDuration
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	if cfg.TransitionDuration <= 0 {
		cfg.TransitionDuration = def.TransitionDuration
	}
	if cfg.TransitionSteps <= 0 {
		cfg.TransitionSteps = def.TransitionSteps
	}
	if lib == nil {
		lib = DefaultLibrary()
	}
	e := &Engine{adapter: adapter, sched: sched, logger: logger, cfg: cfg, mode: core.CycleIdle}
	if err := e.SetLibrary(lib, tableName); err != nil {
		return nil, err
	}
	return e, nil
}

// SetLibrary swaps palettes and the active table, keeping the current mode
// and progress.
func (e *Engine) SetLibrary(lib *Library, tableName string) error {
	if tableName == "" {
		tableName = DefaultTable
	}
	t, ok := lib.Tables[tableName]
	if !ok {
		return fmt.Errorf("%w: no cycle table %q", ErrInvalidTable, tableName)
	}
	e.lib = lib
	e.table = t
	return nil
}

// Library returns the active palette library.
func (e *Engine) Library() *Library {
	return e.lib
}

// OnApply registers an observer for every applied state.
func (e *Engine) OnApply(fn func(State)) {
	e.observers = append(e.observers, fn)
}

func (e *Engine) cancel() {
	if e.token != nil {
		e.token.Stop()
		e.token = nil
	}
}

// Stop cancels whichever mode is running.
func (e *Engine) Stop() {
	if e.mode == core.CycleContinuous {
		e.progress = e.currentProgress()
	}
	e.cancel()
	e.mode = core.CycleIdle
}

// StartCycle runs the continuous cycle from the current progress, cancelling
// any transition.
func (e *Engine) StartCycle() {
	e.Stop()
	e.mode = core.CycleContinuous
	e.origin = e.sched.Now().Add(-time.Duration(e.progress * float64(e.cfg.CycleDuration)))
	e.logger.Info("sky cycle started", "duration", e.cfg.CycleDuration, "progress", e.progress)
	e.cycleTick()
}

func (e *Engine) elapsed() time.Duration {
	return e.sched.Now().Sub(e.origin)
}

func (e *Engine) currentProgress() float64 {
	if e.mode != core.CycleContinuous {
		return e.progress
	}
	d := e.cfg.CycleDuration
	return float64(e.elapsed()%d) / float64(d)
}

func (e *Engine) cycleTick() {
	e.token = nil
	if e.mode != core.CycleContinuous {
		return
	}
	e.progress = e.currentProgress()
	e.apply(Sample(e.table, e.progress))
	e.token = e.sched.AfterFunc(e.cfg.FrameInterval, e.cycleTick)
}

// SetCycleDuration changes the cycle length. A running cycle restarts with
// the new duration from the same progress, so the sky does not jump.
func (e *Engine) SetCycleDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("cycle duration must be > 0, got %s", d)
	}
	if e.mode != core.CycleContinuous {
		e.cfg.CycleDuration = d
		return nil
	}
	p := e.currentProgress()
	e.cancel()
	e.cfg.CycleDuration = d
	e.progress = p
	e.origin = e.sched.Now().Add(-time.Duration(p * float64(d)))
	e.cycleTick()
	return nil
}

// Seek jumps to progress. A running cycle continues from there.
func (e *Engine) Seek(progress float64) {
	if math.IsNaN(progress) {
		return
	}
	// keep 1.0 as the end of the loop rather than wrapping it to 0
	if progress > 1 || progress < 0 {
		progress -= math.Floor(progress)
	}
	e.progress = progress
	if e.mode == core.CycleContinuous {
		e.cancel()
		e.origin = e.sched.Now().Add(-time.Duration(progress * float64(e.cfg.CycleDuration)))
		e.cycleTick()
		return
	}
	if e.mode == core.CycleTransition {
		e.Stop()
	}
	e.apply(Sample(e.table, progress))
}

// Transition blends from the applied sky to palette name over the transition
// duration, then snaps to the palette exactly. It cancels a running cycle.
func (e *Engine) Transition(name string) error {
	p, err := e.lib.Palette(name)
	if err != nil {
		return err
	}
	e.Stop()
	if len(e.applied.Colors) == 0 {
		e.logger.Debug("nothing applied yet, snapping to palette", "palette", name)
		e.apply(paletteState(p))
		e.palette = name
		return nil
	}
	e.mode = core.CycleTransition
	e.trans = transition{from: e.applied, to: p, target: name}
	e.logger.Info("sky transition started", "from", e.palette, "to", name)
	e.token = e.sched.AfterFunc(e.stepInterval(), e.transitionTick)
	return nil
}

func (e *Engine) stepInterval() time.Duration {
	return e.cfg.TransitionDuration / time.Duration(e.cfg.TransitionSteps)
}

func (e *Engine) transitionTick() {
	e.token = nil
	if e.mode != core.CycleTransition {
		return
	}
	tr := &e.trans
	tr.step++
	if tr.step >= e.cfg.TransitionSteps {
		e.mode = core.CycleIdle
		e.palette = tr.target
		e.apply(paletteState(tr.to))
		e.logger.Debug("sky transition finished", "palette", tr.target)
		return
	}
	f := float64(tr.step) / float64(e.cfg.TransitionSteps)
	e.apply(blendStates(tr.from, paletteState(tr.to), f))
	e.token = e.sched.AfterFunc(e.stepInterval(), e.transitionTick)
}

// paletteState is the static sky of a palette: no sun marker.
func paletteState(p core.Palette) State {
	st := State{
		Colors:     append([]string(nil), p.Colors...),
		Background: p.Background,
		Phase:      p.Phase,
		Stars:      p.Stars,
	}
	st.Gradient = baseGradient(st.Colors)
	return st
}

func blendStates(a, b State, f float64) State {
	eased := util.EaseInOutCubic(f)
	st := State{
		Colors:     blendLists(a.Colors, b.Colors, eased),
		Background: blendHex(a.Background, b.Background, eased),
		Phase:      b.Phase,
		Stars:      b.Stars,
	}
	st.Gradient = baseGradient(st.Colors)
	return st
}

// Applied returns the last applied state.
func (e *Engine) Applied() State {
	return e.applied
}

// Palette returns the last palette reached by a transition.
func (e *Engine) Palette() string {
	return e.palette
}

// Status reports the cycle clock.
func (e *Engine) Status() core.CycleState {
	st := core.CycleState{
		Duration: float64(e.cfg.CycleDuration / time.Millisecond),
		Mode:     e.mode,
		Progress: e.currentProgress(),
	}
	switch e.mode {
	case core.CycleContinuous:
		st.Elapsed = float64(e.elapsed() / time.Millisecond)
	case core.CycleTransition:
		st.Elapsed = float64(time.Duration(e.trans.step) * e.stepInterval() / time.Millisecond)
		st.Duration = float64(e.cfg.TransitionDuration / time.Millisecond)
	}
	return st
}

// Mode returns the active mode.
func (e *Engine) Mode() core.CycleMode {
	return e.mode
}

// apply writes st to the sky layer. A host that is not ready yet only loses
// this tick; the next one writes again.
func (e *Engine) apply(st State) {
	e.applied = st
	props := []struct {
		name  string
		value any
	}{
		{PropGradient, st.Gradient},
		{PropBackground, st.Background},
		{PropSun, st.Sun},
		{PropStars, st.Stars},
		{PropPhase, st.Phase},
	}
	for _, p := range props {
		if err := e.adapter.SetPaint(e.cfg.LayerID, p.name, p.value); err != nil {
			if errors.Is(err, host.ErrHostNotReady) {
				e.logger.Debug("sky not applied, host not ready")
			} else {
				e.logger.Debug("sky paint failed", "property", p.name, "error", err)
			}
			break
		}
	}
	for _, fn := range e.observers {
		fn(st)
	}
}
