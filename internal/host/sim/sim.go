// Package sim is a software map host. It keeps a camera, an ordered layer list
// and paint properties, and renders event-driven frames into a gg canvas so
// the engines can be driven exactly the way a real map engine drives them.
package sim

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/queue"
	"github.com/mapscene/animator/pkg/core"
)

// maxPendingInput caps pointer events buffered between frames.
const maxPendingInput = 256

// Options configures a simulated host.
type Options struct {
	Width  int
	Height int
	Camera core.CameraState
	// StyleLoadDelay is how long after creation the style reports loaded.
	// Zero means loaded immediately; negative means never.
	StyleLoadDelay time.Duration
	// Background clears the canvas at the start of every frame.
	Background string
	Logger     *slog.Logger
}

// FrameInfo describes one rendered frame.
type FrameInfo struct {
	Number int
	Matrix [16]float64
	Layers []string
}

// Map implements host.Map. All methods must be called on the loop, except
// Enqueue which may be called from any goroutine.
type Map struct {
	sched   loop.Scheduler
	logger  *slog.Logger
	surface *host.CanvasSurface
	width   int
	height  int

	camera     core.CameraState
	layers     []host.CustomLayer
	paint      map[string]map[string]any
	styleReady bool
	styleToken loop.Token
	background string

	repaintPending bool
	frames         []FrameInfo
	onFrame        []func(FrameInfo)

	subSeq      int
	moveSubs    map[int]func(core.CameraState)
	pointerSubs map[int]func(core.PointerEvent)
	input       *queue.Queue[core.PointerEvent]

	destroyed bool
}

var _ host.Map = (*Map)(nil)

// New creates a simulated host scheduling its frames on sched.
func New(sched loop.Scheduler, opts Options) *Map {
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}
	if opts.Background == "" {
		opts.Background = "#dfe6e9"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	m := &Map{
		sched:       sched,
		logger:      opts.Logger,
		surface:     host.NewCanvasSurface(opts.Width, opts.Height),
		width:       opts.Width,
		height:      opts.Height,
		camera:      opts.Camera,
		paint:       make(map[string]map[string]any),
		background:  opts.Background,
		moveSubs:    make(map[int]func(core.CameraState)),
		pointerSubs: make(map[int]func(core.PointerEvent)),
		input:       queue.NewBounded[core.PointerEvent](maxPendingInput),
	}
	switch {
	case opts.StyleLoadDelay == 0:
		m.styleReady = true
	case opts.StyleLoadDelay > 0:
		m.styleToken = sched.AfterFunc(opts.StyleLoadDelay, func() {
			m.styleToken = nil
			m.SetStyleLoaded(true)
		})
	}
	return m
}

// Surface returns the shared canvas.
func (m *Map) Surface() *host.CanvasSurface {
	return m.surface
}

// Size returns the viewport size in pixels.
func (m *Map) Size() (int, int) {
	return m.width, m.height
}

// Camera returns the current camera.
func (m *Map) Camera() core.CameraState {
	return m.camera
}

// JumpTo sets the camera, notifies move subscribers and schedules a frame.
func (m *Map) JumpTo(camera core.CameraState) {
	if m.destroyed {
		return
	}
	if camera.FOV <= 0 {
		camera.FOV = m.camera.FOV
	}
	m.camera = camera
	for _, id := range slices.Sorted(maps.Keys(m.moveSubs)) {
		if fn, ok := m.moveSubs[id]; ok {
			fn(camera)
		}
	}
	m.TriggerRepaint()
}

func (m *Map) indexOf(id string) int {
	return slices.IndexFunc(m.layers, func(l host.CustomLayer) bool { return l.ID() == id })
}

// AddLayer inserts layer before beforeID (or on top) and calls OnAdd.
func (m *Map) AddLayer(layer host.CustomLayer, beforeID string) error {
	if m.destroyed {
		return host.ErrHostDestroyed
	}
	if m.indexOf(layer.ID()) >= 0 {
		return fmt.Errorf("%w: %s", host.ErrLayerExists, layer.ID())
	}
	pos := len(m.layers)
	if beforeID != "" {
		idx := m.indexOf(beforeID)
		if idx < 0 {
			return fmt.Errorf("%w: before %s", host.ErrLayerNotFound, beforeID)
		}
		pos = idx
	}
	m.layers = slices.Insert(m.layers, pos, layer)
	m.logger.Debug("layer added", "layer", layer.ID(), "before", beforeID)
	layer.OnAdd(m, m.surface)
	m.TriggerRepaint()
	return nil
}

// RemoveLayer calls OnRemove and drops the layer.
func (m *Map) RemoveLayer(id string) error {
	if m.destroyed {
		return host.ErrHostDestroyed
	}
	idx := m.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", host.ErrLayerNotFound, id)
	}
	layer := m.layers[idx]
	m.layers = slices.Delete(m.layers, idx, idx+1)
	delete(m.paint, id)
	layer.OnRemove(m, m.surface)
	m.TriggerRepaint()
	return nil
}

// HasLayer reports whether id is present.
func (m *Map) HasLayer(id string) bool {
	return m.indexOf(id) >= 0
}

// LayerOrder returns ids bottom first.
func (m *Map) LayerOrder() []string {
	ids := make([]string, len(m.layers))
	for i, l := range m.layers {
		ids[i] = l.ID()
	}
	return ids
}

// SetPaintProperty stores a paint value and schedules a frame.
func (m *Map) SetPaintProperty(layerID, name string, value any) error {
	if m.destroyed {
		return host.ErrHostDestroyed
	}
	if !m.styleReady {
		return host.ErrHostNotReady
	}
	if m.indexOf(layerID) < 0 {
		return fmt.Errorf("%w: %s", host.ErrLayerNotFound, layerID)
	}
	props, ok := m.paint[layerID]
	if !ok {
		props = make(map[string]any)
		m.paint[layerID] = props
	}
	props[name] = value
	m.TriggerRepaint()
	return nil
}

// GetPaintProperty returns a stored paint value, or nil if unset.
func (m *Map) GetPaintProperty(layerID, name string) (any, error) {
	if m.destroyed {
		return nil, host.ErrHostDestroyed
	}
	if m.indexOf(layerID) < 0 {
		return nil, fmt.Errorf("%w: %s", host.ErrLayerNotFound, layerID)
	}
	return m.paint[layerID][name], nil
}

// IsStyleLoaded reports style readiness.
func (m *Map) IsStyleLoaded() bool {
	return m.styleReady && !m.destroyed
}

// SetStyleLoaded flips style readiness and repaints.
func (m *Map) SetStyleLoaded(ready bool) {
	m.styleReady = ready
	m.TriggerRepaint()
}

// TriggerRepaint schedules one frame; repeated calls before it runs coalesce.
func (m *Map) TriggerRepaint() {
	if m.destroyed || m.repaintPending {
		return
	}
	m.repaintPending = true
	m.sched.Post(m.renderFrame)
}

// Matrix returns the projection matrix for the current camera.
func (m *Map) Matrix() (mgl64.Mat4, error) {
	return ProjectionMatrix(m.camera, m.width, m.height)
}

func (m *Map) renderFrame() {
	m.repaintPending = false
	if m.destroyed {
		return
	}
	m.drainInput()
	matrix, err := m.Matrix()
	if err != nil {
		m.logger.Warn("skipping frame, invalid camera", "error", err)
		return
	}
	if err := m.surface.Clear(m.background); err != nil {
		return
	}
	info := FrameInfo{Number: len(m.frames) + 1, Matrix: matrix}
	// the layer list may change while rendering
	for _, layer := range slices.Clone(m.layers) {
		m.surface.ResetState()
		layer.Render(m.surface, matrix)
		info.Layers = append(info.Layers, layer.ID())
	}
	m.frames = append(m.frames, info)
	for _, fn := range m.onFrame {
		fn(info)
	}
}

// Frames returns every rendered frame so far.
func (m *Map) Frames() []FrameInfo {
	return m.frames
}

// OnFrame registers a callback invoked after each frame.
func (m *Map) OnFrame(fn func(FrameInfo)) {
	m.onFrame = append(m.onFrame, fn)
}

// Project maps a geodetic point to screen pixels.
func (m *Map) Project(p core.GeodeticPoint) (float64, float64, bool) {
	matrix, err := m.Matrix()
	if err != nil {
		return 0, 0, false
	}
	return geo.ProjectGeodetic(matrix, p, geo.Viewport{Width: float64(m.width), Height: float64(m.height)})
}

// Unproject maps screen pixels to the ground point under them.
func (m *Map) Unproject(x, y float64) (core.GeodeticPoint, bool) {
	matrix, err := m.Matrix()
	if err != nil {
		return core.GeodeticPoint{}, false
	}
	w, ok := unprojectGround(matrix, x, y, m.width, m.height)
	if !ok {
		return core.GeodeticPoint{}, false
	}
	p, err := geo.ToGeodetic(w)
	if err != nil {
		return core.GeodeticPoint{}, false
	}
	p.Alt = 0
	return p, true
}

// OnMove subscribes to camera changes.
func (m *Map) OnMove(fn func(core.CameraState)) func() {
	m.subSeq++
	id := m.subSeq
	m.moveSubs[id] = fn
	return func() { delete(m.moveSubs, id) }
}

// OnPointer subscribes to pointer events.
func (m *Map) OnPointer(fn func(core.PointerEvent)) func() {
	m.subSeq++
	id := m.subSeq
	m.pointerSubs[id] = fn
	return func() { delete(m.pointerSubs, id) }
}

// Enqueue buffers a pointer event from any goroutine. Buffered events are
// delivered at the start of the next frame.
func (m *Map) Enqueue(ev core.PointerEvent) {
	m.input.Push(ev)
	m.sched.Post(m.TriggerRepaint)
}

// Pointer delivers a pointer event at screen (x, y) immediately.
func (m *Map) Pointer(kind core.PointerKind, x, y float64) {
	m.dispatchPointer(core.PointerEvent{Kind: kind, X: x, Y: y})
}

func (m *Map) drainInput() {
	for _, ev := range m.input.Drain() {
		m.dispatchPointer(ev)
	}
}

func (m *Map) dispatchPointer(ev core.PointerEvent) {
	if m.destroyed {
		return
	}
	ev.Lng, ev.Lat, ev.Ground = 0, 0, false
	if p, ok := m.Unproject(ev.X, ev.Y); ok {
		ev.Lng, ev.Lat, ev.Ground = p.Lng, p.Lat, true
	}
	for _, id := range slices.Sorted(maps.Keys(m.pointerSubs)) {
		if fn, ok := m.pointerSubs[id]; ok {
			fn(ev)
		}
	}
}

// Destroy tears the host down: every layer gets OnRemove, in draw order,
// before the shared surface is closed.
func (m *Map) Destroy() error {
	if m.destroyed {
		return nil
	}
	if m.styleToken != nil {
		m.styleToken.Stop()
		m.styleToken = nil
	}
	layers := m.layers
	m.layers = nil
	for _, layer := range layers {
		layer.OnRemove(m, m.surface)
	}
	m.destroyed = true
	m.paint = map[string]map[string]any{}
	m.moveSubs = map[int]func(core.CameraState){}
	m.pointerSubs = map[int]func(core.PointerEvent){}
	return m.surface.Destroy()
}

// Destroyed reports whether Destroy has run.
func (m *Map) Destroyed() bool {
	return m.destroyed
}
