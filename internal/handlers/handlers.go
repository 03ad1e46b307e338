// Package handlers registers every UI and script command on the dispatcher
// and bridges it to the session engines.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mapscene/animator/internal/cycle"
	"github.com/mapscene/animator/internal/dispatcher"
	"github.com/mapscene/animator/internal/keyframe"
	"github.com/mapscene/animator/internal/parser"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/internal/session"
	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/pkg/core"
	"github.com/mapscene/animator/pkg/streaming"
)

// ErrNoStore is returned by persistence commands when no backend is set.
var ErrNoStore = errors.New("no scene store configured")

// ErrNoScene is returned when a command needs a current scene and none is selected.
var ErrNoScene = errors.New("no scene selected")

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Session *session.Session
	// Store persists scenes. Optional.
	Store storage.Backend
	// Publisher receives frames and scene changes. Optional.
	Publisher storage.Publisher
	Logger    *slog.Logger
}

// Service implements every command. Handlers run on the engine loop.
type Service struct {
	deps   Dependencies
	s      *session.Session
	parser *parser.Parser
	logger *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	svc := &Service{
		deps:   deps,
		s:      deps.Session,
		parser: parser.NewParser(deps.Logger.With("component", "parser")),
		logger: deps.Logger,
	}
	if deps.Publisher != nil {
		svc.s.Keyframe.OnFrame(svc.publishFrame)
	}
	return svc
}

// LoopTimeout bounds how long a command waits for the loop to pick it up.
const LoopTimeout = 10 * time.Second

// RegisterHandlers registers all commands with the dispatcher. Every handler
// runs on the loop through r.
func (svc *Service) RegisterHandlers(d *dispatcher.Dispatcher, r dispatcher.Runner) {
	on := dispatcher.OnLoop(r)
	wait := dispatcher.Timeout(LoopTimeout)
	logged := dispatcher.Logged()

	// Scenes
	d.Register(":SCENE:NEW:", svc.handleSceneNew, on, wait, logged)
	d.Register(":SCENE:SELECT:", svc.handleSceneSelect, on, wait, logged)
	d.Register(":SCENE:LIST:", svc.handleSceneList, on, wait)
	d.Register(":SCENE:SAVE:", svc.handleSceneSave, on, wait, logged)
	d.Register(":SCENE:LOAD:", svc.handleSceneLoad, on, wait, logged)
	d.Register(":SCENE:DELETE:", svc.handleSceneDelete, on, wait, logged)

	// Authoring
	d.Register(":CAPTURE:", svc.handleCapture, on, wait, logged)
	d.Register(":ACTOR:ADD:", svc.handleActorAdd, on, wait, logged)
	d.Register(":ANIMATION:ADD:", svc.handleAnimationAdd, on, wait, logged)
	d.Register(":EFFECT:ADD:", svc.handleEffectAdd, on, wait, logged)

	// Playback and editing
	d.Register(":PLAY:", svc.handlePlay, on, wait, logged)
	d.Register(":STOP:", svc.handleStop, on, wait, logged)
	d.Register(":SEEK:", svc.handleSeek, on, wait, logged)
	d.Register(":EDIT:", svc.handleEdit, on, wait, logged)
	d.Register(":CAMERA:", svc.handleCamera, on, wait)
	d.Register(":POINTER:", svc.handlePointer, on, wait)

	// Sky
	d.Register(":SKY:PALETTE:", svc.handleSkyPalette, on, wait, logged)
	d.Register(":SKY:CYCLE:", svc.handleSkyCycle, on, wait, logged)
	d.Register(":SKY:STOP:", svc.handleSkyStop, on, wait, logged)
	d.Register(":SKY:DURATION:", svc.handleSkyDuration, on, wait, logged)
	d.Register(":SKY:SEEK:", svc.handleSkySeek, on, wait, logged)
	d.Register(":SUN:CYCLE:", svc.handleSunCycle, on, wait, logged)

	d.Register(":STATUS:", svc.handleStatus, on, wait)
}

// sceneID resolves an optional id argument to the current scene.
func (svc *Service) sceneID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if cur := svc.s.Scenes.CurrentID(); cur != "" {
		return cur, nil
	}
	return "", ErrNoScene
}

func (svc *Service) publish(msgType string, payload any) {
	if svc.deps.Publisher == nil {
		return
	}
	if err := svc.deps.Publisher.Publish(msgType, payload); err != nil {
		svc.logger.Warn("publish failed", "type", msgType, "error", err)
	}
}

func (svc *Service) publishFrame(f keyframe.Frame) {
	svc.publish(streaming.TypeFrame, streaming.FramePayload{
		SceneID: svc.s.Keyframe.Status().SceneID,
		Time:    f.Time,
		Camera:  keyframe.CameraState(f.Camera),
	})
}

func (svc *Service) handleSceneNew(e dispatcher.Event) (any, error) {
	msg, err := svc.parser.ParseNewScene(e.Args)
	if err != nil {
		return nil, err
	}
	sc := svc.s.NewScene(msg.Name, msg.Duration)
	svc.logger.Info("scene created", "scene", sc.ID, "name", sc.Name)
	return sc.ID, nil
}

func (svc *Service) handleSceneSelect(e dispatcher.Event) (any, error) {
	id := svc.parser.ParseSceneID(e.Args)
	if id == "" {
		return nil, fmt.Errorf("%w: scene id required", parser.ErrArgs)
	}
	return id, svc.s.Select(id)
}

func (svc *Service) handleSceneList(dispatcher.Event) (any, error) {
	return svc.s.Scenes.List(), nil
}

func (svc *Service) handleSceneSave(e dispatcher.Event) (any, error) {
	if svc.deps.Store == nil {
		return nil, ErrNoStore
	}
	id, err := svc.sceneID(svc.parser.ParseSceneID(e.Args))
	if err != nil {
		return nil, err
	}
	sc, ok := svc.s.Scenes.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: scene %s", scene.ErrNotFound, id)
	}
	if err := svc.deps.Store.SaveScene(sc); err != nil {
		return nil, fmt.Errorf("saving scene %s: %w", id, err)
	}
	return id, nil
}

func (svc *Service) handleSceneLoad(e dispatcher.Event) (any, error) {
	if svc.deps.Store == nil {
		return nil, ErrNoStore
	}
	id := svc.parser.ParseSceneID(e.Args)
	if id == "" {
		return nil, fmt.Errorf("%w: scene id required", parser.ErrArgs)
	}
	sc, err := svc.deps.Store.LoadScene(id)
	if err != nil {
		return nil, fmt.Errorf("loading scene %s: %w", id, err)
	}
	if err := svc.s.Adopt(sc); err != nil {
		return nil, err
	}
	return scene.Summarize(sc), nil
}

func (svc *Service) handleSceneDelete(e dispatcher.Event) (any, error) {
	id, err := svc.sceneID(svc.parser.ParseSceneID(e.Args))
	if err != nil {
		return nil, err
	}
	svc.s.Remove(id)
	if svc.deps.Store == nil {
		return id, nil
	}
	if err := svc.deps.Store.DeleteScene(id); err != nil && !errors.Is(err, storage.ErrSceneNotFound) {
		return nil, fmt.Errorf("deleting scene %s: %w", id, err)
	}
	return id, nil
}

func (svc *Service) handleCapture(e dispatcher.Event) (any, error) {
	t, err := svc.parser.ParseCaptureTime(e.Args)
	if err != nil {
		return nil, err
	}
	id, err := svc.sceneID("")
	if err != nil {
		return nil, err
	}
	sc, err := svc.s.Keyframe.CaptureFromHost(id, t)
	if err != nil {
		return nil, err
	}
	return len(sc.CameraPath), nil
}

func (svc *Service) handleActorAdd(e dispatcher.Event) (any, error) {
	actor, err := svc.parser.ParseActor(e.Args)
	if err != nil {
		return nil, err
	}
	if _, err := svc.sceneID(""); err != nil {
		return nil, err
	}
	var added core.Actor
	if _, err := svc.s.Scenes.UpdateCurrent(func(sc core.Scene) (core.Scene, error) {
		next, a, err := scene.AddActor(sc, actor)
		added = a
		return next, err
	}); err != nil {
		return nil, err
	}
	if err := svc.s.Adapter.TriggerRepaint(); err != nil {
		svc.logger.Debug("repaint request failed", "error", err)
	}
	return added.ID, nil
}

func (svc *Service) handleAnimationAdd(e dispatcher.Event) (any, error) {
	actorID, anim, err := svc.parser.ParseAnimation(e.Args)
	if err != nil {
		return nil, err
	}
	if _, err := svc.sceneID(""); err != nil {
		return nil, err
	}
	_, err = svc.s.Scenes.UpdateCurrent(func(sc core.Scene) (core.Scene, error) {
		return scene.AddAnimation(sc, actorID, anim)
	})
	return nil, err
}

func (svc *Service) handleEffectAdd(e dispatcher.Event) (any, error) {
	effect, err := svc.parser.ParseEffect(e.Args)
	if err != nil {
		return nil, err
	}
	if _, err := svc.sceneID(""); err != nil {
		return nil, err
	}
	_, err = svc.s.Scenes.UpdateCurrent(func(sc core.Scene) (core.Scene, error) {
		return scene.AddEffect(sc, effect)
	})
	return nil, err
}

func (svc *Service) handlePlay(e dispatcher.Event) (any, error) {
	msg, err := svc.parser.ParsePlay(e.Args)
	if err != nil {
		return nil, err
	}
	if msg.SceneID, err = svc.sceneID(msg.SceneID); err != nil {
		return nil, err
	}
	return nil, svc.s.Keyframe.Update(msg)
}

func (svc *Service) handleStop(dispatcher.Event) (any, error) {
	return nil, svc.s.Keyframe.Update(keyframe.StopMsg{})
}

func (svc *Service) handleSeek(e dispatcher.Event) (any, error) {
	msg, err := svc.parser.ParseSeek(e.Args)
	if err != nil {
		return nil, err
	}
	if msg.SceneID, err = svc.sceneID(msg.SceneID); err != nil {
		return nil, err
	}
	return nil, svc.s.Keyframe.Update(msg)
}

func (svc *Service) handleEdit(e dispatcher.Event) (any, error) {
	msg, err := svc.parser.ParseEditMode(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, svc.s.Keyframe.Update(msg)
}

func (svc *Service) handleCamera(e dispatcher.Event) (any, error) {
	camera, err := svc.parser.ParseCamera(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, svc.s.Adapter.JumpTo(camera)
}

// handlePointer edits the current scene. An explicit index skips the hit test.
func (svc *Service) handlePointer(e dispatcher.Event) (any, error) {
	ptr, err := svc.parser.ParsePointer(e.Args)
	if err != nil {
		return nil, err
	}
	id, err := svc.sceneID("")
	if err != nil {
		return nil, err
	}
	ev := core.PointerEvent{Kind: ptr.Kind, X: ptr.X, Y: ptr.Y}
	if p, err := svc.s.Adapter.Unproject(ptr.X, ptr.Y); err == nil {
		ev.Lng, ev.Lat, ev.Ground = p.Lng, p.Lat, true
	}
	if err := svc.s.Keyframe.Update(keyframe.PointerMsg{SceneID: id, Index: ptr.Index, Event: ev}); err != nil {
		return nil, err
	}
	return svc.s.Keyframe.Selected(), nil
}

func (svc *Service) handleSkyPalette(e dispatcher.Event) (any, error) {
	msg, err := svc.parser.ParsePalette(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, svc.s.Sky.Update(msg)
}

func (svc *Service) handleSkyCycle(dispatcher.Event) (any, error) {
	return nil, svc.s.Sky.Update(cycle.StartCycleMsg{})
}

func (svc *Service) handleSkyStop(dispatcher.Event) (any, error) {
	return nil, svc.s.Sky.Update(cycle.StopMsg{})
}

func (svc *Service) handleSkyDuration(e dispatcher.Event) (any, error) {
	msg, err := svc.parser.ParseCycleDuration(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, svc.s.Sky.Update(msg)
}

func (svc *Service) handleSkySeek(e dispatcher.Event) (any, error) {
	msg, err := svc.parser.ParseProgress(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, svc.s.Sky.Update(msg)
}

func (svc *Service) handleSunCycle(e dispatcher.Event) (any, error) {
	cmd, err := svc.parser.ParseSun(e.Args)
	if err != nil {
		return nil, err
	}
	if cmd.Duration > 0 {
		if err := svc.s.Sun.SetDuration(cmd.Duration); err != nil {
			return nil, err
		}
	}
	if cmd.Start {
		svc.s.Sun.Start()
	} else {
		svc.s.Sun.Stop()
	}
	return nil, nil
}

func (svc *Service) handleStatus(dispatcher.Event) (any, error) {
	return svc.s.Status(), nil
}
