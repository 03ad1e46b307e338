package host

import (
	"errors"
	"sync"

	"github.com/gogpu/gg"
)

// ErrSurfaceDestroyed is returned when drawing into a closed surface.
var ErrSurfaceDestroyed = errors.New("surface destroyed")

// Surface is the single drawing context shared by the host and every layer.
type Surface interface {
	// Canvas returns the drawing context, or nil once destroyed.
	Canvas() *gg.Context
	Size() (width, height int)
	// ResetState restores the default transform, path, dash, line width and
	// brushes so no state leaks between layers.
	ResetState()
	Destroyed() bool
}

// CanvasSurface is a Surface backed by a gg context.
type CanvasSurface struct {
	mu        sync.Mutex
	dc        *gg.Context
	width     int
	height    int
	destroyed bool
}

// NewCanvasSurface allocates a width x height canvas.
func NewCanvasSurface(width, height int) *CanvasSurface {
	return &CanvasSurface{
		dc:     gg.NewContext(width, height),
		width:  width,
		height: height,
	}
}

// Canvas returns the gg context or nil after Destroy.
func (s *CanvasSurface) Canvas() *gg.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	return s.dc
}

// Size returns the canvas size in pixels.
func (s *CanvasSurface) Size() (int, int) {
	return s.width, s.height
}

// ResetState restores default drawing state.
func (s *CanvasSurface) ResetState() {
	dc := s.Canvas()
	if dc == nil {
		return
	}
	dc.Identity()
	dc.ResetClip()
	dc.ClearPath()
	dc.ClearDash()
	dc.SetLineWidth(1)
	dc.SetLineCap(gg.LineCapButt)
	dc.SetLineJoin(gg.LineJoinMiter)
	dc.SetFillBrush(gg.Solid(gg.RGB(0, 0, 0)))
	dc.SetStrokeBrush(gg.Solid(gg.RGB(0, 0, 0)))
}

// Clear fills the canvas with hex. Used by the host at the start of a frame.
func (s *CanvasSurface) Clear(hex string) error {
	dc := s.Canvas()
	if dc == nil {
		return ErrSurfaceDestroyed
	}
	dc.ClearWithColor(gg.Hex(hex))
	return nil
}

// SavePNG writes the current canvas to path.
func (s *CanvasSurface) SavePNG(path string) error {
	dc := s.Canvas()
	if dc == nil {
		return ErrSurfaceDestroyed
	}
	return dc.SavePNG(path)
}

// Destroyed reports whether Destroy has run.
func (s *CanvasSurface) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy releases the canvas. Safe to call more than once.
func (s *CanvasSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	return s.dc.Close()
}
