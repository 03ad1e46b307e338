package parser

import (
	"encoding/json"
	"fmt"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/pkg/core"
)

// NewScene is the parsed form of :SCENE:NEW:.
type NewScene struct {
	Name     string
	Duration float64
}

// ParseNewScene parses [name, duration?].
func (p *Parser) ParseNewScene(args []string) (NewScene, error) {
	args = clean(args)
	if err := need(args, 1, "name [duration]"); err != nil {
		return NewScene{}, err
	}
	d, err := optFloat(args, 1, "duration", 0)
	if err != nil {
		return NewScene{}, err
	}
	if d < 0 {
		return NewScene{}, fmt.Errorf("%w: duration must be >= 0", ErrArgs)
	}
	return NewScene{Name: args[0], Duration: d}, nil
}

// ParseSceneID parses [id] where the id may be omitted for the current scene.
func (p *Parser) ParseSceneID(args []string) string {
	args = clean(args)
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

var actorKinds = map[string]core.ActorKind{
	string(core.ActorBuilding): core.ActorBuilding,
	string(core.ActorModel):    core.ActorModel,
	string(core.ActorVehicle):  core.ActorVehicle,
	string(core.ActorBridge):   core.ActorBridge,
}

// ParseActor parses [name, kind, modelURL, "lng,lat[,alt]", rotation?, scale?].
func (p *Parser) ParseActor(args []string) (core.Actor, error) {
	args = clean(args)
	if err := need(args, 4, "name kind modelUrl lng,lat[,alt] [rotation] [scale]"); err != nil {
		return core.Actor{}, err
	}
	kind, ok := actorKinds[args[1]]
	if !ok {
		return core.Actor{}, fmt.Errorf("%w: unknown actor kind %q", ErrArgs, args[1])
	}
	pos, err := geo.ParseGeodetic(args[3])
	if err != nil {
		return core.Actor{}, fmt.Errorf("%w: position: %w", ErrArgs, err)
	}
	rotation, err := optFloat(args, 4, "rotation", 0)
	if err != nil {
		return core.Actor{}, err
	}
	scale, err := optFloat(args, 5, "scale", 1)
	if err != nil {
		return core.Actor{}, err
	}
	p.logger.Debug("parsed actor", "name", args[0], "kind", kind)
	return core.Actor{
		Name:     args[0],
		Kind:     kind,
		ModelURL: args[2],
		Base:     core.Transform{Position: pos, Rotation: rotation, Scale: scale},
	}, nil
}

var animationKinds = map[string]core.AnimationKind{
	string(core.AnimationMove):   core.AnimationMove,
	string(core.AnimationRotate): core.AnimationRotate,
	string(core.AnimationScale):  core.AnimationScale,
	string(core.AnimationCustom): core.AnimationCustom,
}

// ParseAnimation parses [actorID, kind, start, duration, keyframesJSON].
func (p *Parser) ParseAnimation(args []string) (string, core.Animation, error) {
	args = clean(args)
	if err := need(args, 5, "actorId kind start duration keyframes"); err != nil {
		return "", core.Animation{}, err
	}
	kind, ok := animationKinds[args[1]]
	if !ok {
		return "", core.Animation{}, fmt.Errorf("%w: unknown animation kind %q", ErrArgs, args[1])
	}
	start, err := parseFloat(args[2], "start")
	if err != nil {
		return "", core.Animation{}, err
	}
	dur, err := parseFloat(args[3], "duration")
	if err != nil {
		return "", core.Animation{}, err
	}
	var values []core.AnimationValue
	if err := json.Unmarshal([]byte(args[4]), &values); err != nil {
		return "", core.Animation{}, fmt.Errorf("%w: keyframes: %w", ErrArgs, err)
	}
	return args[0], core.Animation{StartTime: start, Duration: dur, Kind: kind, Keyframes: values}, nil
}

var effectKinds = map[string]core.EffectKind{
	string(core.EffectParticle): core.EffectParticle,
	string(core.EffectLight):    core.EffectLight,
	string(core.EffectWeather):  core.EffectWeather,
	string(core.EffectCustom):   core.EffectCustom,
}

// ParseEffect parses [kind, start, duration, paramsJSON?].
func (p *Parser) ParseEffect(args []string) (core.Effect, error) {
	args = clean(args)
	if err := need(args, 3, "kind start duration [params]"); err != nil {
		return core.Effect{}, err
	}
	kind, ok := effectKinds[args[0]]
	if !ok {
		return core.Effect{}, fmt.Errorf("%w: unknown effect kind %q", ErrArgs, args[0])
	}
	start, err := parseFloat(args[1], "start")
	if err != nil {
		return core.Effect{}, err
	}
	dur, err := parseFloat(args[2], "duration")
	if err != nil {
		return core.Effect{}, err
	}
	e := core.Effect{Kind: kind, StartTime: start, Duration: dur}
	if len(args) > 3 && args[3] != "" {
		if err := json.Unmarshal([]byte(args[3]), &e.Params); err != nil {
			return core.Effect{}, fmt.Errorf("%w: params: %w", ErrArgs, err)
		}
	}
	return e, nil
}
