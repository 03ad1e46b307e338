package layers

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/assets"
	"github.com/mapscene/animator/internal/cycle"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/host/sim"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/render"
	"github.com/mapscene/animator/internal/retry"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/pkg/core"
)

var center = core.GeodeticPoint{Lng: 13.405, Lat: 52.52}

type fixture struct {
	host   *render.Host
	m      *sim.Map
	clock  *loop.Manual
	scenes *scene.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := loop.NewManual(time.Unix(0, 0))
	m := sim.New(clock, sim.Options{Width: 200, Height: 200, Camera: core.CameraState{Center: center, Zoom: 14}})
	t.Cleanup(func() { _ = m.Destroy() })
	h, err := render.NewHost(host.NewAdapter(m, nil), clock, retry.DefaultPolicy(), nil)
	require.NoError(t, err)
	return &fixture{host: h, m: m, clock: clock, scenes: scene.NewContext()}
}

func (f *fixture) register(t *testing.T, id string, r render.Renderer) {
	t.Helper()
	_, err := f.host.Register(render.Spec{ID: id, Renderer: r})
	require.NoError(t, err)
	f.clock.Advance(0)
}

func (f *fixture) pixel(x, y int) color.RGBA {
	return color.RGBAModel.Convert(f.m.Surface().Canvas().Image().At(x, y)).(color.RGBA)
}

func assertColor(t *testing.T, want string, got color.RGBA) {
	t.Helper()
	c, err := cycle.NormalizeHex(want)
	require.NoError(t, err)
	var r, g, b uint8
	_, err = fmt.Sscanf(c, "#%02x%02x%02x", &r, &g, &b)
	require.NoError(t, err)
	assert.InDelta(t, float64(r), float64(got.R), 3, "red of %s", want)
	assert.InDelta(t, float64(g), float64(got.G), 3, "green of %s", want)
	assert.InDelta(t, float64(b), float64(got.B), 3, "blue of %s", want)
}

func TestSky_PaintsBackgroundGradientAndSun(t *testing.T) {
	f := newFixture(t)
	f.register(t, "sky", NewSky("sky"))

	require.NoError(t, f.m.SetPaintProperty("sky", cycle.PropBackground, "#112233"))
	f.clock.Advance(0)
	assertColor(t, "#112233", f.pixel(100, 100))

	flat := []core.GradientPoint{{Offset: 0, Color: "#336699"}, {Offset: 1, Color: "#336699"}}
	require.NoError(t, f.m.SetPaintProperty("sky", cycle.PropGradient, flat))
	f.clock.Advance(0)
	assertColor(t, "#336699", f.pixel(100, 100))
	assertColor(t, "#336699", f.pixel(10, 190))

	require.NoError(t, f.m.SetPaintProperty("sky", cycle.PropSun, core.SunMarker{Visible: true, X: 0.5, Y: 0.5}))
	f.clock.Advance(0)
	assertColor(t, cycle.GlowColor, f.pixel(100, 100))
	assertColor(t, "#336699", f.pixel(10, 190))
}

func TestSky_DrawsCycleEngineOutput(t *testing.T) {
	f := newFixture(t)
	f.register(t, "sky", NewSky("sky"))

	e, err := cycle.NewEngine(f.host.Adapter(), f.clock, nil, "", cycle.Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Transition("day"))
	f.clock.Advance(0)

	day := e.Applied()
	assertColor(t, day.Colors[0], f.pixel(100, 0))
	assertColor(t, day.Colors[len(day.Colors)-1], f.pixel(100, 199))

	require.NoError(t, f.m.SetPaintProperty("sky", cycle.PropStars, true))
	f.clock.Advance(0)
	assert.Equal(t, 3, f.host.Layers()[0].Frames)
}

func TestStarField_IsStable(t *testing.T) {
	a, b := starField(starCount), starField(starCount)
	assert.Equal(t, a, b)
	for _, s := range a {
		assert.True(t, s.x >= 0 && s.x < 1)
		assert.True(t, s.y >= 0 && s.y < 0.7)
	}
}

func modelScene(t *testing.T, scenes *scene.Context, url string) core.Actor {
	t.Helper()
	s := scene.New("models", 10)
	s, actor, err := scene.AddActor(s, core.Actor{Name: "tower", Kind: core.ActorBuilding, ModelURL: url, Base: core.Transform{Position: center}})
	require.NoError(t, err)
	scenes.Put(s)
	require.NoError(t, scenes.Select(s.ID))
	return actor
}

func TestModels_DrawsLoadedAsset(t *testing.T) {
	f := newFixture(t)
	modelScene(t, f.scenes, "tower.json")
	var loads int
	loader := assets.LoaderFunc(func(_ context.Context, url string) (*core.Asset, error) {
		loads++
		return &core.Asset{URL: url, WidthM: 300, DepthM: 300, HeightM: 50, Color: "#ff0000"}, nil
	})
	models := NewModels(f.scenes, loader, f.clock, nil)
	models.run = func(fn func()) { fn() }

	f.register(t, "models", models)

	assert.True(t, models.Loaded("tower.json"))
	assert.Equal(t, 1, loads)
	assertColor(t, "#ff0000", f.pixel(100, 100))
	assertColor(t, "#dfe6e9", f.pixel(2, 2))

	f.m.TriggerRepaint()
	f.clock.Advance(0)
	assert.Equal(t, 1, loads, "assets load once")
}

func TestModels_FailedAssetLeavesLayerEmpty(t *testing.T) {
	f := newFixture(t)
	modelScene(t, f.scenes, "broken.json")
	loader := assets.LoaderFunc(func(context.Context, string) (*core.Asset, error) {
		return nil, errors.New("connection refused")
	})
	models := NewModels(f.scenes, loader, f.clock, nil)
	models.run = func(fn func()) { fn() }

	f.register(t, "models", models)

	require.Contains(t, models.Failed(), "broken.json")
	assert.ErrorIs(t, models.Failed()["broken.json"], assets.ErrAssetLoad)
	assert.Equal(t, render.Active, f.host.State("models"))
	assertColor(t, "#dfe6e9", f.pixel(100, 100))
}

func TestModels_LoadRepaintsOnceWhenItLands(t *testing.T) {
	f := newFixture(t)
	modelScene(t, f.scenes, "tower.json")
	loader := assets.LoaderFunc(func(_ context.Context, url string) (*core.Asset, error) {
		return &core.Asset{URL: url, WidthM: 300, DepthM: 300, HeightM: 50, Color: "#ff0000"}, nil
	})
	models := NewModels(f.scenes, loader, f.clock, nil)
	var deferred []func()
	models.run = func(fn func()) { deferred = append(deferred, fn) }

	f.register(t, "models", models)
	require.Len(t, deferred, 1)
	frames := len(f.m.Frames())
	f.clock.Flush()
	assert.Len(t, f.m.Frames(), frames, "no frames while the load is in flight")

	deferred[0]()
	f.clock.Flush()
	assert.True(t, models.Loaded("tower.json"))
	assert.Len(t, f.m.Frames(), frames+1)
	assertColor(t, "#ff0000", f.pixel(100, 100))
}

func TestModels_LoadFinishingAfterDisposeIsDropped(t *testing.T) {
	f := newFixture(t)
	modelScene(t, f.scenes, "slow.json")
	loader := assets.LoaderFunc(func(_ context.Context, url string) (*core.Asset, error) {
		return &core.Asset{URL: url, WidthM: 10, DepthM: 10}, nil
	})
	models := NewModels(f.scenes, loader, f.clock, nil)
	var deferred []func()
	models.run = func(fn func()) { deferred = append(deferred, fn) }

	f.register(t, "models", models)
	require.Len(t, deferred, 1)

	f.host.Unregister("models")
	assert.NotPanics(t, func() {
		deferred[0]()
		f.clock.Advance(0)
	})
	assert.False(t, models.Loaded("slow.json"))
}

func pathScene(t *testing.T, scenes *scene.Context) core.Scene {
	t.Helper()
	s := scene.New("path", 10)
	for i, lng := range []float64{center.Lng - 0.002, center.Lng + 0.002} {
		cam := core.CameraState{Center: core.GeodeticPoint{Lng: lng, Lat: center.Lat}, Zoom: 14}
		var err error
		s, err = scene.CaptureKeyframe(s, cam, float64(i*5))
		require.NoError(t, err)
	}
	scenes.Put(s)
	require.NoError(t, scenes.Select(s.ID))
	return s
}

func TestPath_DrawsLineAndHandles(t *testing.T) {
	f := newFixture(t)
	s := pathScene(t, f.scenes)
	path := NewPath(f.scenes, func() int { return 1 }, nil)

	f.register(t, "path", path)

	require.Equal(t, 2, path.Line().Coordinates().Length())
	assertColor(t, PathColor, f.pixel(100, 100))

	x, y, ok := f.m.Project(scene.CameraPoints(s)[0])
	require.True(t, ok)
	assertColor(t, HandleColor, f.pixel(int(x), int(y)))
	x, y, ok = f.m.Project(scene.CameraPoints(s)[1])
	require.True(t, ok)
	assertColor(t, SelectedColor, f.pixel(int(x), int(y)))
}

func TestPath_RefreshFollowsEdits(t *testing.T) {
	f := newFixture(t)
	s := pathScene(t, f.scenes)
	path := NewPath(f.scenes, nil, nil)
	f.register(t, "path", path)

	s, err := scene.MoveKeyframe(s, 1, core.GeodeticPoint{Lng: center.Lng, Lat: center.Lat + 0.003})
	require.NoError(t, err)
	f.scenes.Put(s)
	path.Refresh(s)
	f.clock.Advance(0)

	seq := path.Line().Coordinates()
	assert.InDelta(t, center.Lat+0.003, seq.GetXY(1).Y, 1e-12)

	one := scene.New("single", 5)
	f.scenes.Put(one)
	require.NoError(t, f.scenes.Select(one.ID))
	f.m.TriggerRepaint()
	f.clock.Advance(0)
	assert.True(t, path.Line().IsEmpty())
}
