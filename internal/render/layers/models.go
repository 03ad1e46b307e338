package layers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gg"

	"github.com/mapscene/animator/internal/assets"
	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/render"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/pkg/core"
)

// Models draws every actor of the current scene as an extruded box sized by
// its asset. Assets load in the background; an actor whose asset is missing
// or failed is simply not drawn.
type Models struct {
	scenes *scene.Context
	loader assets.Loader
	sched  loop.Scheduler
	logger *slog.Logger
	// run starts a background load.
	run func(func())

	adapter *host.Adapter
	ctx     context.Context
	cancel  context.CancelFunc
	loaded  map[string]*core.Asset
	pending map[string]bool
	failed  map[string]error
}

var _ render.Renderer = (*Models)(nil)

// NewModels creates a model renderer. Load results are posted back onto sched.
func NewModels(scenes *scene.Context, loader assets.Loader, sched loop.Scheduler, logger *slog.Logger) *Models {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Models{
		scenes: scenes,
		loader: loader,
		sched:  sched,
		logger: logger,
		run:    func(fn func()) { go fn() },
	}
}

func (m *Models) Init(_ render.Surface, a *host.Adapter) error {
	m.adapter = a
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.loaded = make(map[string]*core.Asset)
	m.pending = make(map[string]bool)
	m.failed = make(map[string]error)
	return nil
}

// Failed returns the load error per asset URL.
func (m *Models) Failed() map[string]error {
	return m.failed
}

// Loaded reports whether url is ready to draw.
func (m *Models) Loaded(url string) bool {
	_, ok := m.loaded[url]
	return ok
}

func (m *Models) request(url string) {
	if url == "" || m.pending[url] || m.loaded[url] != nil || m.failed[url] != nil {
		return
	}
	m.pending[url] = true
	ctx, loader := m.ctx, m.loader
	m.run(func() {
		a, err := loader.Load(ctx, url)
		m.sched.Post(func() { m.finish(url, a, err) })
	})
}

func (m *Models) finish(url string, a *core.Asset, err error) {
	if m.loaded == nil {
		// disposed while loading
		return
	}
	delete(m.pending, url)
	if err == nil {
		err = assets.Normalize(a, url)
	}
	if err != nil {
		if !errors.Is(err, assets.ErrAssetLoad) {
			err = fmt.Errorf("%w: %s: %w", assets.ErrAssetLoad, url, err)
		}
		m.failed[url] = err
		m.logger.Warn("asset load failed, actor stays hidden", "url", url, "error", err)
		return
	}
	m.loaded[url] = a
	m.logger.Debug("asset loaded", "url", url, "name", a.Name)
	if err := m.adapter.TriggerRepaint(); err != nil {
		m.logger.Debug("repaint request failed", "error", err)
	}
}

func (m *Models) Render(surface render.Surface, f render.Frame) error {
	dc := surface.Canvas()
	if dc == nil {
		return host.ErrSurfaceDestroyed
	}
	s, ok := m.scenes.Current()
	if !ok {
		return nil
	}
	for _, actor := range s.Actors {
		a, ok := m.loaded[actor.ModelURL]
		if !ok {
			m.request(actor.ModelURL)
			continue
		}
		if err := drawBox(dc, f, actor.Current, a); err != nil {
			m.logger.Debug("actor not drawn", "actor", actor.ID, "error", err)
		}
	}
	return nil
}

// footprint returns the four base corners of a box in world units.
func footprint(t core.Transform, a *core.Asset) ([4]core.WorldPosition, error) {
	var out [4]core.WorldPosition
	origin, err := geo.ToWorld(t.Position)
	if err != nil {
		return out, err
	}
	scale := t.Scale
	if scale <= 0 {
		scale = 1
	}
	perMeter := geo.MercatorScale(t.Position.Lat) * scale * a.Scale
	hw, hd := a.WidthM/2, a.DepthM/2
	rot := t.Rotation * math.Pi / 180
	sin, cos := math.Sin(rot), math.Cos(rot)
	local := [4][2]float64{{-hw, -hd}, {hw, -hd}, {hw, hd}, {-hw, hd}}
	for i, c := range local {
		east := c[0]*cos + c[1]*sin
		north := -c[0]*sin + c[1]*cos
		out[i] = core.WorldPosition{
			X: origin.X + east*perMeter,
			Y: origin.Y - north*perMeter,
			Z: origin.Z,
		}
	}
	return out, nil
}

func drawBox(dc *gg.Context, f render.Frame, t core.Transform, a *core.Asset) error {
	base, err := footprint(t, a)
	if err != nil {
		return err
	}
	scale := t.Scale
	if scale <= 0 {
		scale = 1
	}
	height := a.HeightM * geo.MercatorScale(t.Position.Lat) * scale * a.Scale

	var lower, upper [4][2]float64
	for i, w := range base {
		x, y, ok := geo.Project(f.Matrix, w, f.Viewport)
		if !ok {
			return host.ErrNotVisible
		}
		lower[i] = [2]float64{x, y}
		w.Z += height
		if x, y, ok = geo.Project(f.Matrix, w, f.Viewport); !ok {
			return host.ErrNotVisible
		}
		upper[i] = [2]float64{x, y}
	}

	fill := gg.Hex(a.Color)
	wall := gg.RGBA2(fill.R*0.7, fill.G*0.7, fill.B*0.7, 1)
	dc.SetFillBrush(gg.Solid(wall))
	for i := range 4 {
		j := (i + 1) % 4
		dc.MoveTo(lower[i][0], lower[i][1])
		dc.LineTo(lower[j][0], lower[j][1])
		dc.LineTo(upper[j][0], upper[j][1])
		dc.LineTo(upper[i][0], upper[i][1])
		dc.ClosePath()
	}
	if err := dc.Fill(); err != nil {
		return err
	}

	dc.SetFillBrush(gg.Solid(fill))
	polygon(dc, upper[:])
	return dc.Fill()
}

func polygon(dc *gg.Context, pts [][2]float64) {
	dc.MoveTo(pts[0][0], pts[0][1])
	for _, p := range pts[1:] {
		dc.LineTo(p[0], p[1])
	}
	dc.ClosePath()
}

func (m *Models) Dispose() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.loaded, m.pending, m.failed = nil, nil, nil
	m.adapter = nil
	return nil
}
