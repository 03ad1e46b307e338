package layers

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gg"
	"github.com/peterstace/simplefeatures/geom"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/render"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/pkg/core"
)

// Path colors.
const (
	PathColor     = "#e17055"
	HandleColor   = "#ffffff"
	SelectedColor = "#fdcb6e"
	handleRadius  = 6.0
)

// Path draws the current scene's camera path as a line through its keyframe
// positions, with a handle per keyframe. The selected handle is highlighted.
type Path struct {
	scenes   *scene.Context
	selected func() int
	logger   *slog.Logger

	adapter *host.Adapter
	sceneID string
	line    geom.LineString
	handles []core.GeodeticPoint
}

var _ render.Renderer = (*Path)(nil)

// NewPath creates a path renderer. selected returns the highlighted keyframe
// index, or -1.
func NewPath(scenes *scene.Context, selected func() int, logger *slog.Logger) *Path {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if selected == nil {
		selected = func() int { return -1 }
	}
	return &Path{scenes: scenes, selected: selected, logger: logger}
}

func (p *Path) Init(_ render.Surface, a *host.Adapter) error {
	p.adapter = a
	if s, ok := p.scenes.Current(); ok {
		p.rebuild(s)
	}
	return nil
}

// Refresh rebuilds the path geometry after keyframes changed and requests a
// frame.
func (p *Path) Refresh(s core.Scene) {
	p.rebuild(s)
	if p.adapter == nil {
		return
	}
	if err := p.adapter.TriggerRepaint(); err != nil {
		p.logger.Debug("repaint request failed", "error", err)
	}
}

func (p *Path) rebuild(s core.Scene) {
	p.sceneID = s.ID
	p.handles = scene.CameraPoints(s)
	p.line = geom.LineString{}
	if len(p.handles) < 2 {
		return
	}
	line, err := geo.PathLineString(p.handles)
	if err != nil {
		p.logger.Warn("camera path not drawable", "scene", s.ID, "error", err)
		return
	}
	p.line = line
}

// Line returns the current path geometry.
func (p *Path) Line() geom.LineString {
	return p.line
}

func (p *Path) Render(surface render.Surface, f render.Frame) error {
	dc := surface.Canvas()
	if dc == nil {
		return host.ErrSurfaceDestroyed
	}
	if cur := p.scenes.CurrentID(); cur != p.sceneID {
		if s, ok := p.scenes.Get(cur); ok {
			p.rebuild(s)
		} else {
			p.sceneID, p.handles, p.line = "", nil, geom.LineString{}
		}
	}

	seq := p.line.Coordinates()
	if seq.Length() >= 2 {
		dc.SetStrokeBrush(gg.Solid(gg.Hex(PathColor)))
		dc.SetLineWidth(3)
		dc.SetLineCap(gg.LineCapRound)
		dc.SetLineJoin(gg.LineJoinRound)
		pen := false
		for i := range seq.Length() {
			xy := seq.GetXY(i)
			x, y, ok := f.Project(core.GeodeticPoint{Lng: xy.X, Lat: xy.Y})
			if !ok {
				pen = false
				continue
			}
			if pen {
				dc.LineTo(x, y)
			} else {
				dc.MoveTo(x, y)
				pen = true
			}
		}
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("camera path: %w", err)
		}
	}

	sel := p.selected()
	for i, h := range p.handles {
		x, y, ok := f.Project(h)
		if !ok {
			continue
		}
		color := HandleColor
		if i == sel {
			color = SelectedColor
		}
		dc.SetFillBrush(gg.Solid(gg.Hex(color)))
		dc.DrawCircle(x, y, handleRadius)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("keyframe handle %d: %w", i, err)
		}
	}
	return nil
}

func (p *Path) Dispose() error {
	p.adapter = nil
	p.handles = nil
	p.line = geom.LineString{}
	return nil
}
