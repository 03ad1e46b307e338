package render

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/pkg/core"
)

// Surface is the shared drawing context.
type Surface = host.Surface

// Frame is everything a renderer needs to draw one host frame. Matrix is the
// host's matrix adopted unchanged.
type Frame struct {
	Number   int
	Matrix   mgl64.Mat4
	Viewport geo.Viewport
	Camera   core.CameraState
}

// Project maps a geodetic point to pixels with this frame's matrix.
func (f Frame) Project(p core.GeodeticPoint) (x, y float64, ok bool) {
	return geo.ProjectGeodetic(f.Matrix, p, f.Viewport)
}

// Renderer is a sub-renderer owning its own resources inside the host's
// render loop.
type Renderer interface {
	// Init runs once the host has handed over the surface. Returning
	// host.ErrHostNotReady schedules another attempt.
	Init(s Surface, a *host.Adapter) error
	// Render draws one frame. The surface state has already been reset.
	Render(s Surface, f Frame) error
	// Dispose frees the renderer's resources. It may be called after the
	// surface is gone.
	Dispose() error
}

// Animator is implemented by renderers that need continuous frames. The host
// requests another repaint after every frame in which Animating is true, with
// no throttle, so it must only report true while something visibly changes
// per frame. The built-in layers do not implement it: sky and path repaint
// through paint property writes and camera moves, and models request a single
// repaint when an asset load lands.
type Animator interface {
	Animating() bool
}

// RendererFunc adapts a draw function into a Renderer with no resources.
type RendererFunc func(s Surface, f Frame) error

func (fn RendererFunc) Init(Surface, *host.Adapter) error { return nil }
func (fn RendererFunc) Render(s Surface, f Frame) error { return fn(s, f) }
func (fn RendererFunc) Dispose() error { return nil }
