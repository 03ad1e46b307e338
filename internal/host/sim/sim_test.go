package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/pkg/core"
)

type recordingLayer struct {
	id           string
	log          *[]string
	matrices     [][16]float64
	added        int
	removed      int
	sawDestroyed bool
}

func (r *recordingLayer) ID() string { return r.id }
func (r *recordingLayer) OnAdd(host.Map, host.Surface) {
	r.added++
	*r.log = append(*r.log, "add:"+r.id)
}
func (r *recordingLayer) Render(_ host.Surface, m [16]float64) {
	r.matrices = append(r.matrices, m)
	*r.log = append(*r.log, "render:"+r.id)
}
func (r *recordingLayer) OnRemove(_ host.Map, s host.Surface) {
	r.removed++
	r.sawDestroyed = r.sawDestroyed || s.Destroyed()
	*r.log = append(*r.log, "remove:"+r.id)
}

var berlin = core.CameraState{Center: core.GeodeticPoint{Lng: 13.4, Lat: 52.52}, Zoom: 14}

func newTestMap(t *testing.T) (*Map, *loop.Manual) {
	t.Helper()
	clock := loop.NewManual(time.Unix(0, 0))
	m := New(clock, Options{Width: 400, Height: 300, Camera: berlin})
	t.Cleanup(func() { _ = m.Destroy() })
	return m, clock
}

func TestMap_LayerOrderWithBefore(t *testing.T) {
	m, clock := newTestMap(t)
	var log []string
	a := &recordingLayer{id: "a", log: &log}
	b := &recordingLayer{id: "b", log: &log}
	c := &recordingLayer{id: "c", log: &log}

	require.NoError(t, m.AddLayer(a, ""))
	require.NoError(t, m.AddLayer(b, ""))
	require.NoError(t, m.AddLayer(c, "a"))
	assert.Equal(t, []string{"c", "a", "b"}, m.LayerOrder())

	assert.ErrorIs(t, m.AddLayer(a, ""), host.ErrLayerExists)
	assert.ErrorIs(t, m.AddLayer(&recordingLayer{id: "d", log: &log}, "zzz"), host.ErrLayerNotFound)

	log = nil
	clock.Flush()
	assert.Equal(t, []string{"render:c", "render:a", "render:b"}, log)
}

func TestMap_RepaintCoalesces(t *testing.T) {
	m, clock := newTestMap(t)
	var log []string
	require.NoError(t, m.AddLayer(&recordingLayer{id: "a", log: &log}, ""))

	m.TriggerRepaint()
	m.TriggerRepaint()
	clock.Flush()
	assert.Len(t, m.Frames(), 1)

	clock.Flush()
	assert.Len(t, m.Frames(), 1, "host renders only on request")
}

func TestMap_FrameCarriesCameraMatrix(t *testing.T) {
	m, clock := newTestMap(t)
	var log []string
	layer := &recordingLayer{id: "a", log: &log}
	require.NoError(t, m.AddLayer(layer, ""))
	clock.Flush()

	want, err := m.Matrix()
	require.NoError(t, err)
	require.Len(t, layer.matrices, 1)
	assert.Equal(t, [16]float64(want), layer.matrices[0])

	m.JumpTo(core.CameraState{Center: core.GeodeticPoint{Lng: 2.35, Lat: 48.85}, Zoom: 10})
	clock.Flush()
	require.Len(t, layer.matrices, 2)
	assert.NotEqual(t, layer.matrices[0], layer.matrices[1])
}

func TestMap_ProjectCenterAndUnproject(t *testing.T) {
	m, _ := newTestMap(t)

	x, y, ok := m.Project(berlin.Center)
	require.True(t, ok)
	assert.InDelta(t, 200, x, 1e-6)
	assert.InDelta(t, 150, y, 1e-6)

	p, ok := m.Unproject(x, y)
	require.True(t, ok)
	assert.InDelta(t, berlin.Center.Lng, p.Lng, 1e-6)
	assert.InDelta(t, berlin.Center.Lat, p.Lat, 1e-6)

	// one world pixel is one screen pixel at pitch 0
	east, _, ok := m.Project(core.GeodeticPoint{Lng: berlin.Center.Lng + 360/WorldSize(berlin.Zoom), Lat: berlin.Center.Lat})
	require.True(t, ok)
	assert.InDelta(t, 201, east, 1e-6)
}

func TestMap_PaintRequiresStyle(t *testing.T) {
	clock := loop.NewManual(time.Unix(0, 0))
	m := New(clock, Options{Camera: berlin, StyleLoadDelay: 300 * time.Millisecond})
	defer m.Destroy()
	var log []string
	require.NoError(t, m.AddLayer(&recordingLayer{id: "sky", log: &log}, ""))

	assert.False(t, m.IsStyleLoaded())
	assert.ErrorIs(t, m.SetPaintProperty("sky", "stars", true), host.ErrHostNotReady)

	clock.Advance(300 * time.Millisecond)
	assert.True(t, m.IsStyleLoaded())
	require.NoError(t, m.SetPaintProperty("sky", "stars", true))
	v, err := m.GetPaintProperty("sky", "stars")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = m.GetPaintProperty("missing", "stars")
	assert.ErrorIs(t, err, host.ErrLayerNotFound)
}

func TestMap_Subscriptions(t *testing.T) {
	m, clock := newTestMap(t)
	var moves []core.CameraState
	var pointers []core.PointerEvent
	unsubMove := m.OnMove(func(c core.CameraState) { moves = append(moves, c) })
	m.OnPointer(func(ev core.PointerEvent) { pointers = append(pointers, ev) })

	m.JumpTo(core.CameraState{Center: core.GeodeticPoint{Lng: 1, Lat: 1}, Zoom: 3})
	unsubMove()
	m.JumpTo(berlin)
	require.Len(t, moves, 1)
	assert.Equal(t, 3.0, moves[0].Zoom)

	m.Enqueue(core.PointerEvent{Kind: core.PointerDown, X: 200, Y: 150})
	assert.Empty(t, pointers)
	clock.Flush()
	require.Len(t, pointers, 1)
	assert.InDelta(t, berlin.Center.Lng, pointers[0].Lng, 1e-6)
	assert.InDelta(t, berlin.Center.Lat, pointers[0].Lat, 1e-6)
	assert.True(t, pointers[0].Ground)

	tilted := berlin
	tilted.Pitch = 80
	m.JumpTo(tilted)
	m.Pointer(core.PointerMove, 200, 0)
	require.Len(t, pointers, 2)
	assert.False(t, pointers[1].Ground)
	assert.Zero(t, pointers[1].Lng)
}

func TestMap_DestroyRemovesLayersFirst(t *testing.T) {
	clock := loop.NewManual(time.Unix(0, 0))
	m := New(clock, Options{Camera: berlin})
	var log []string
	a := &recordingLayer{id: "a", log: &log}
	b := &recordingLayer{id: "b", log: &log}
	require.NoError(t, m.AddLayer(a, ""))
	require.NoError(t, m.AddLayer(b, ""))
	clock.Flush()
	log = nil

	require.NoError(t, m.Destroy())
	require.NoError(t, m.Destroy())
	assert.Equal(t, []string{"remove:a", "remove:b"}, log)
	assert.False(t, a.sawDestroyed, "layers see a live surface during teardown")
	assert.False(t, b.sawDestroyed)
	assert.True(t, m.Surface().Destroyed())
	assert.ErrorIs(t, m.AddLayer(a, ""), host.ErrHostDestroyed)

	m.TriggerRepaint()
	clock.Flush()
	assert.Len(t, m.Frames(), 1)
}
