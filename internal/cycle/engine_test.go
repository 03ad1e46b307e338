package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/host/sim"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/pkg/core"
)

type stubLayer string

func (s stubLayer) ID() string { return string(s) }
func (stubLayer) OnAdd(host.Map, host.Surface) {}
func (stubLayer) Render(host.Surface, [16]float64) {}
func (stubLayer) OnRemove(host.Map, host.Surface) {}

type fixture struct {
	engine *Engine
	host   *sim.Map
	clock  *loop.Manual
}

func newFixture(t *testing.T, opts sim.Options) *fixture {
	t.Helper()
	clock := loop.NewManual(time.Unix(0, 0))
	m := sim.New(clock, opts)
	t.Cleanup(func() { _ = m.Destroy() })
	require.NoError(t, m.AddLayer(stubLayer("sky"), ""))
	e, err := NewEngine(host.NewAdapter(m, nil), clock, nil, "", Config{
		CycleDuration:      time.Second,
		FrameInterval:      100 * time.Millisecond,
		TransitionDuration: 1500 * time.Millisecond,
		TransitionSteps:    90,
	}, nil)
	require.NoError(t, err)
	return &fixture{engine: e, host: m, clock: clock}
}

func (f *fixture) paint(t *testing.T, name string) any {
	t.Helper()
	v, err := f.host.GetPaintProperty("sky", name)
	require.NoError(t, err)
	return v
}

func TestNewEngine_UnknownTable(t *testing.T) {
	clock := loop.NewManual(time.Unix(0, 0))
	m := sim.New(clock, sim.Options{})
	_, err := NewEngine(host.NewAdapter(m, nil), clock, nil, "polar", Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestStartCycle_WritesPaintEveryFrame(t *testing.T) {
	f := newFixture(t, sim.Options{})
	table := f.engine.Library().Tables[DefaultTable]

	f.engine.StartCycle()
	assert.Equal(t, core.CycleContinuous, f.engine.Mode())
	assert.Equal(t, "night", f.paint(t, PropPhase))

	var applied []float64
	f.engine.OnApply(func(st State) { applied = append(applied, st.Progress) })
	f.clock.Advance(500 * time.Millisecond)

	require.Len(t, applied, 5)
	assert.InDelta(t, 0.5, applied[4], 1e-9)
	want := Sample(table, 0.5)
	assert.Equal(t, want.Background, f.paint(t, PropBackground))
	assert.Equal(t, want.Gradient, f.paint(t, PropGradient))
	assert.Equal(t, want.Sun, f.paint(t, PropSun))
	assert.Equal(t, false, f.paint(t, PropStars))

	// wraps at the end of the loop
	f.clock.Advance(700 * time.Millisecond)
	assert.InDelta(t, 0.2, f.engine.Status().Progress, 1e-9)
	assert.Equal(t, 1, f.clock.Pending())
}

func TestStop_KeepsProgress(t *testing.T) {
	f := newFixture(t, sim.Options{})
	f.engine.StartCycle()
	f.clock.Advance(300 * time.Millisecond)
	f.engine.Stop()

	assert.Equal(t, core.CycleIdle, f.engine.Mode())
	assert.Equal(t, 0, f.clock.Pending())
	f.clock.Advance(time.Second)
	assert.InDelta(t, 0.3, f.engine.Status().Progress, 1e-9)

	f.engine.StartCycle()
	assert.InDelta(t, 0.3, f.engine.Applied().Progress, 1e-6)
}

func TestTransition_SnapsToPaletteAtDuration(t *testing.T) {
	f := newFixture(t, sim.Options{})
	f.engine.Seek(0)
	require.Equal(t, "night", f.engine.Applied().Phase)

	require.NoError(t, f.engine.Transition("day"))
	assert.Equal(t, core.CycleTransition, f.engine.Mode())
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(750 * time.Millisecond)
	mid := f.engine.Applied()
	assert.NotEqual(t, DefaultLibrary().Palettes["night"].Colors, mid.Colors)
	assert.NotEqual(t, DefaultLibrary().Palettes["day"].Colors, mid.Colors)

	f.clock.Advance(749 * time.Millisecond)
	assert.Equal(t, core.CycleTransition, f.engine.Mode())

	f.clock.Advance(time.Millisecond)
	day := DefaultLibrary().Palettes["day"]
	assert.Equal(t, core.CycleIdle, f.engine.Mode())
	assert.Equal(t, "day", f.engine.Palette())
	assert.Equal(t, day.Colors, f.engine.Applied().Colors)
	assert.Equal(t, day.Background, f.paint(t, PropBackground))
	assert.Equal(t, core.SunMarker{}, f.paint(t, PropSun))
	assert.Equal(t, 0, f.clock.Pending())
}

func TestTransition_FromNothingSnaps(t *testing.T) {
	f := newFixture(t, sim.Options{})
	require.NoError(t, f.engine.Transition("dusk"))

	assert.Equal(t, core.CycleIdle, f.engine.Mode())
	assert.Equal(t, DefaultLibrary().Palettes["dusk"].Colors, f.engine.Applied().Colors)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestTransition_UnknownPalette(t *testing.T) {
	f := newFixture(t, sim.Options{})
	f.engine.StartCycle()

	err := f.engine.Transition("aurora")
	assert.ErrorIs(t, err, ErrUnknownPalette)
	assert.Equal(t, core.CycleContinuous, f.engine.Mode(), "a rejected transition leaves the cycle running")
}

func TestModes_AreMutuallyExclusive(t *testing.T) {
	f := newFixture(t, sim.Options{})
	f.engine.Seek(0.5)
	require.NoError(t, f.engine.Transition("night"))
	f.clock.Advance(200 * time.Millisecond)

	f.engine.StartCycle()
	assert.Equal(t, core.CycleContinuous, f.engine.Mode())
	assert.Equal(t, 1, f.clock.Pending())

	require.NoError(t, f.engine.Transition("dawn"))
	assert.Equal(t, core.CycleTransition, f.engine.Mode())
	assert.Equal(t, 1, f.clock.Pending())

	var applied int
	f.engine.OnApply(func(State) { applied++ })
	f.clock.Advance(3 * time.Second)
	assert.Equal(t, 90, applied, "only the transition ticks")
	assert.Equal(t, core.CycleIdle, f.engine.Mode())
}

func TestSetCycleDuration_PreservesProgress(t *testing.T) {
	f := newFixture(t, sim.Options{})
	f.engine.StartCycle()
	f.clock.Advance(300 * time.Millisecond)
	before := f.engine.Applied()

	require.NoError(t, f.engine.SetCycleDuration(10*time.Second))
	assert.InDelta(t, before.Progress, f.engine.Applied().Progress, 1e-6)
	assert.Equal(t, before.Colors, f.engine.Applied().Colors)
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(time.Second)
	assert.InDelta(t, 0.4, f.engine.Status().Progress, 1e-6)
	assert.InDelta(t, 10000, f.engine.Status().Duration, 1e-9)

	assert.Error(t, f.engine.SetCycleDuration(0))
}

func TestSeek(t *testing.T) {
	f := newFixture(t, sim.Options{})
	table := f.engine.Library().Tables[DefaultTable]
	tests := []struct {
		in   float64
		want float64
	}{
		{0.4, 0.4},
		{1, 1},
		{1.25, 0.25},
		{-0.25, 0.75},
	}
	for _, tt := range tests {
		f.engine.Seek(tt.in)
		assert.InDelta(t, tt.want, f.engine.Applied().Progress, 1e-12, "seek %v", tt.in)
		assert.Equal(t, Sample(table, tt.want).Colors, f.engine.Applied().Colors, "seek %v", tt.in)
	}
	assert.Equal(t, core.CycleIdle, f.engine.Mode())
	assert.Equal(t, 0, f.clock.Pending())
}

func TestSeek_WhileCyclingContinuesFromThere(t *testing.T) {
	f := newFixture(t, sim.Options{})
	f.engine.StartCycle()
	f.engine.Seek(0.6)
	f.clock.Advance(200 * time.Millisecond)

	assert.Equal(t, core.CycleContinuous, f.engine.Mode())
	assert.InDelta(t, 0.8, f.engine.Applied().Progress, 1e-6)
}

func TestEngine_HostNotReady(t *testing.T) {
	f := newFixture(t, sim.Options{StyleLoadDelay: -1})

	assert.NotPanics(t, func() {
		f.engine.StartCycle()
		f.clock.Advance(300 * time.Millisecond)
	})
	assert.Nil(t, f.paint(t, PropPhase))
	assert.InDelta(t, 0.3, f.engine.Applied().Progress, 1e-9)

	f.host.SetStyleLoaded(true)
	f.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, f.engine.Applied().Background, f.paint(t, PropBackground))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, sim.Options{})

	require.NoError(t, f.engine.Update(StartCycleMsg{}))
	assert.Equal(t, core.CycleContinuous, f.engine.Mode())
	require.NoError(t, f.engine.Update(SeekMsg{Progress: 0.5}))
	require.NoError(t, f.engine.Update(SetDurationMsg{Duration: 2 * time.Second}))
	assert.InDelta(t, 0.5, f.engine.Status().Progress, 1e-6)
	assert.Error(t, f.engine.Update(SetDurationMsg{}))
	require.NoError(t, f.engine.Update(TransitionMsg{Palette: "dawn"}))
	assert.Equal(t, core.CycleTransition, f.engine.Mode())
	assert.ErrorIs(t, f.engine.Update(TransitionMsg{Palette: "nope"}), ErrUnknownPalette)
	require.NoError(t, f.engine.Update(StopMsg{}))
	assert.Equal(t, core.CycleIdle, f.engine.Mode())
}
