// Package layers holds the concrete renderers mounted on the render host.
package layers

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"

	"github.com/mapscene/animator/internal/cycle"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/render"
	"github.com/mapscene/animator/pkg/core"
)

// starCount is the size of the fixed star field.
const starCount = 120

type star struct {
	x, y, r float64
}

// Sky paints the applied cycle state: background, vertical gradient, sun
// marker and stars. It reads everything from its own paint properties, so
// whoever writes them (cycle engine, effects) stays decoupled from drawing.
type Sky struct {
	layerID string
	adapter *host.Adapter
	stars   []star
}

var _ render.Renderer = (*Sky)(nil)

// NewSky creates a sky renderer reading paint from layerID.
func NewSky(layerID string) *Sky {
	return &Sky{layerID: layerID}
}

func (s *Sky) Init(_ render.Surface, a *host.Adapter) error {
	s.adapter = a
	s.stars = starField(starCount)
	return nil
}

// starField spreads n stars over the upper sky with a golden-angle walk so
// every run draws the same field.
func starField(n int) []star {
	const golden = 0.6180339887498949
	out := make([]star, n)
	for i := range n {
		fx := math.Mod(float64(i)*golden, 1)
		fy := math.Mod(float64(i)*golden*golden*3.7, 1)
		out[i] = star{x: fx, y: fy * 0.7, r: 0.6 + math.Mod(float64(i)*0.37, 1)}
	}
	return out
}

func (s *Sky) paint(name string) any {
	v, err := s.adapter.Paint(s.layerID, name)
	if err != nil {
		return nil
	}
	return v
}

func (s *Sky) Render(surface render.Surface, _ render.Frame) error {
	dc := surface.Canvas()
	if dc == nil {
		return host.ErrSurfaceDestroyed
	}
	w, h := surface.Size()
	fw, fh := float64(w), float64(h)

	if bg, ok := s.paint(cycle.PropBackground).(string); ok && bg != "" {
		dc.SetFillBrush(gg.Solid(gg.Hex(bg)))
		dc.DrawRectangle(0, 0, fw, fh)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("sky background: %w", err)
		}
	}

	if points, ok := s.paint(cycle.PropGradient).([]core.GradientPoint); ok && len(points) > 0 {
		grad := gg.NewLinearGradientBrush(0, 0, 0, fh)
		for _, p := range points {
			grad.AddColorStop(p.Offset, gg.Hex(p.Color))
		}
		dc.SetFillBrush(grad)
		dc.DrawRectangle(0, 0, fw, fh)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("sky gradient: %w", err)
		}
	}

	if on, _ := s.paint(cycle.PropStars).(bool); on {
		dc.SetFillBrush(gg.Solid(gg.RGBA2(1, 1, 1, 0.85)))
		for _, st := range s.stars {
			dc.DrawCircle(st.x*fw, st.y*fh, st.r)
		}
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("sky stars: %w", err)
		}
	}

	if sun, ok := s.paint(cycle.PropSun).(core.SunMarker); ok && sun.Visible {
		dc.SetFillBrush(gg.Solid(gg.Hex(cycle.GlowColor)))
		dc.DrawCircle(sun.X*fw, sun.Y*fh, math.Min(fw, fh)*0.04)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("sky sun: %w", err)
		}
	}
	return nil
}

func (s *Sky) Dispose() error {
	s.adapter = nil
	s.stars = nil
	return nil
}
