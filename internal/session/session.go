// Package session assembles one animator session: the simulated host, the
// render layer host with its sky, model and path layers, and the keyframe,
// sky and sun engines bound to them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mapscene/animator/internal/assets"
	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/cycle"
	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/host/sim"
	"github.com/mapscene/animator/internal/keyframe"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/render"
	"github.com/mapscene/animator/internal/render/layers"
	"github.com/mapscene/animator/internal/retry"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/pkg/core"
	"github.com/mapscene/animator/pkg/streaming"
)

// Layer ids, bottom first.
const (
	SkyLayer    = "sky"
	ModelsLayer = "models"
	PathLayer   = "path"
)

// Options configures a session.
type Options struct {
	Engine config.EngineConfig
	Retry  retry.Policy
	Camera core.CameraState
	// Library overrides Engine.PalettesFile.
	Library *cycle.Library
	// Loader fetches model assets. Nil fails every load.
	Loader assets.Loader
	Logger *slog.Logger
}

// Session owns every engine of one host. All methods run on the loop.
type Session struct {
	Sched    loop.Scheduler
	Map      *sim.Map
	Adapter  *host.Adapter
	Render   *render.Host
	Scenes   *scene.Context
	Keyframe *keyframe.Engine
	Sky      *cycle.Engine
	Sun      *cycle.SunCycle
	Models   *layers.Models
	Path     *layers.Path

	logger *slog.Logger
	unbind func()
	closed bool
}

var errNoLoader = fmt.Errorf("%w: no asset server configured", assets.ErrAssetLoad)

// New builds a session on sched. It must run on the loop.
func New(sched loop.Scheduler, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	eng := opts.Engine

	lib := opts.Library
	if lib == nil && eng.PalettesFile != "" {
		var err error
		if lib, err = cycle.LoadLibrary(eng.PalettesFile); err != nil {
			return nil, fmt.Errorf("loading palettes: %w", err)
		}
	}
	loader := opts.Loader
	if loader == nil {
		loader = assets.LoaderFunc(func(context.Context, string) (*core.Asset, error) {
			return nil, errNoLoader
		})
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}

	s := &Session{
		Sched:  sched,
		Scenes: scene.NewContext(),
		logger: logger,
	}
	s.Map = sim.New(sched, sim.Options{
		Width:  eng.CanvasWidth,
		Height: eng.CanvasHeight,
		Camera: opts.Camera,
		Logger: logger.With("component", "host"),
	})
	s.Adapter = host.NewAdapter(s.Map, logger.With("component", "adapter"))

	var err error
	s.Render, err = render.NewHost(s.Adapter, sched, opts.Retry, logger.With("component", "render"))
	if err != nil {
		return nil, err
	}

	s.Keyframe = keyframe.New(s.Scenes, s.Adapter, sched, keyframe.Config{
		TickInterval: eng.PlaybackTick,
		HitRadius:    eng.HitRadius,
	}, logger.With("component", "keyframe"))
	s.Keyframe.RegisterBuiltinEffects(SkyLayer)

	s.Sky, err = cycle.NewEngine(s.Adapter, sched, lib, eng.CycleTable, cycle.Config{
		LayerID:            SkyLayer,
		CycleDuration:      eng.CycleDuration,
		FrameInterval:      eng.FrameInterval,
		TransitionDuration: eng.TransitionDuration,
		TransitionSteps:    eng.TransitionSteps,
	}, logger.With("component", "sky"))
	if err != nil {
		return nil, err
	}
	s.Sun = cycle.NewSunCycle(s.Adapter, sched, SkyLayer, eng.SunCycleDuration, eng.FrameInterval, logger.With("component", "sun"))

	s.Models = layers.NewModels(s.Scenes, loader, sched, logger.With("layer", ModelsLayer))
	s.Path = layers.NewPath(s.Scenes, s.Keyframe.Selected, logger.With("layer", PathLayer))
	s.Keyframe.OnPathChange(s.Path.Refresh)

	for _, spec := range []render.Spec{
		{ID: SkyLayer, Renderer: layers.NewSky(SkyLayer)},
		{ID: ModelsLayer, Renderer: s.Models},
		{ID: PathLayer, Renderer: s.Path},
	} {
		if _, err := s.Render.Register(spec); err != nil {
			_ = s.Map.Destroy()
			return nil, fmt.Errorf("registering %s layer: %w", spec.ID, err)
		}
	}

	if s.unbind, err = s.Keyframe.Bind(); err != nil {
		_ = s.Map.Destroy()
		return nil, err
	}

	if eng.DefaultPalette != "" {
		if err := s.Sky.Transition(eng.DefaultPalette); err != nil {
			logger.Warn("default palette not applied", "palette", eng.DefaultPalette, "error", err)
		}
	}
	return s, nil
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// NewScene creates a scene, stores it and makes it current.
func (s *Session) NewScene(name string, duration float64) core.Scene {
	sc := scene.New(name, duration)
	s.Scenes.Put(sc)
	_ = s.Scenes.Select(sc.ID)
	s.Path.Refresh(sc)
	return sc
}

// Select makes id current and redraws its path.
func (s *Session) Select(id string) error {
	if err := s.Scenes.Select(id); err != nil {
		return err
	}
	sc, _ := s.Scenes.Get(id)
	s.Path.Refresh(sc)
	return nil
}

// Adopt stores a scene loaded from elsewhere and makes it current.
func (s *Session) Adopt(sc core.Scene) error {
	if sc.ID == "" {
		return errors.New("scene has no id")
	}
	s.Scenes.Put(scene.ResetActors(sc))
	return s.Select(sc.ID)
}

// Remove drops a scene, stopping playback if it was playing.
func (s *Session) Remove(id string) {
	if s.Keyframe.Status().SceneID == id {
		s.Keyframe.Stop()
	}
	s.Scenes.Remove(id)
	if s.Scenes.CurrentID() == "" {
		s.Path.Refresh(core.Scene{})
	}
}

// Status snapshots every engine for read-back.
func (s *Session) Status() streaming.StatusPayload {
	applied := s.Sky.Applied()
	st := streaming.StatusPayload{
		Playback: s.Keyframe.Status(),
		Cycle:    s.Sky.Status(),
		Sun:      s.Sun.Status(),
		Phase:    applied.Phase,
		Palette:  s.Sky.Palette(),
	}
	for _, l := range s.Render.Layers() {
		st.Layers = append(st.Layers, streaming.LayerState{ID: l.ID, State: l.State, Frames: l.Frames})
	}
	return st
}

// Snapshot writes the shared canvas to a PNG file.
func (s *Session) Snapshot(path string) error {
	return s.Map.Surface().SavePNG(path)
}

// Close stops every engine and destroys the host. Safe to call twice.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.unbind != nil {
		s.unbind()
	}
	s.Keyframe.Stop()
	s.Sky.Stop()
	s.Sun.Stop()
	err := s.Map.Destroy()
	s.Render.Teardown()
	return err
}
