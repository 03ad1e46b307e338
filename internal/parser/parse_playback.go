package parser

import (
	"fmt"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/internal/keyframe"
	"github.com/mapscene/animator/pkg/core"
)

// ParsePlay parses [sceneID?, speed?].
func (p *Parser) ParsePlay(args []string) (keyframe.PlayMsg, error) {
	args = clean(args)
	msg := keyframe.PlayMsg{Speed: 1}
	if len(args) > 0 {
		msg.SceneID = args[0]
	}
	speed, err := optFloat(args, 1, "speed", 1)
	if err != nil {
		return msg, err
	}
	if speed <= 0 {
		return msg, fmt.Errorf("%w: speed must be > 0, got %v", ErrArgs, speed)
	}
	msg.Speed = speed
	return msg, nil
}

// ParseSeek parses [time, sceneID?].
func (p *Parser) ParseSeek(args []string) (keyframe.SeekMsg, error) {
	args = clean(args)
	if err := need(args, 1, "time [sceneId]"); err != nil {
		return keyframe.SeekMsg{}, err
	}
	t, err := parseFloat(args[0], "time")
	if err != nil {
		return keyframe.SeekMsg{}, err
	}
	msg := keyframe.SeekMsg{Time: t}
	if len(args) > 1 {
		msg.SceneID = args[1]
	}
	return msg, nil
}

// ParseCaptureTime parses [time].
func (p *Parser) ParseCaptureTime(args []string) (float64, error) {
	args = clean(args)
	if err := need(args, 1, "time"); err != nil {
		return 0, err
	}
	t, err := parseFloat(args[0], "time")
	if err != nil {
		return 0, err
	}
	if t < 0 {
		return 0, fmt.Errorf("%w: time must be >= 0", ErrArgs)
	}
	return t, nil
}

// ParseEditMode parses [on|off].
func (p *Parser) ParseEditMode(args []string) (keyframe.EditModeMsg, error) {
	args = clean(args)
	if err := need(args, 1, "on|off"); err != nil {
		return keyframe.EditModeMsg{}, err
	}
	on, err := parseBool(args[0])
	return keyframe.EditModeMsg{Enabled: on}, err
}

// ParseCamera parses ["lng,lat", zoom, pitch?, bearing?].
func (p *Parser) ParseCamera(args []string) (core.CameraState, error) {
	args = clean(args)
	if err := need(args, 2, "lng,lat zoom [pitch] [bearing]"); err != nil {
		return core.CameraState{}, err
	}
	center, err := geo.ParseGeodetic(args[0])
	if err != nil {
		return core.CameraState{}, fmt.Errorf("%w: center: %w", ErrArgs, err)
	}
	zoom, err := parseFloat(args[1], "zoom")
	if err != nil {
		return core.CameraState{}, err
	}
	pitch, err := optFloat(args, 2, "pitch", 0)
	if err != nil {
		return core.CameraState{}, err
	}
	bearing, err := optFloat(args, 3, "bearing", 0)
	if err != nil {
		return core.CameraState{}, err
	}
	return core.CameraState{Center: center, Zoom: zoom, Pitch: pitch, Bearing: bearing}, nil
}

var pointerKinds = map[string]core.PointerKind{
	string(core.PointerDown): core.PointerDown,
	string(core.PointerMove): core.PointerMove,
	string(core.PointerUp):   core.PointerUp,
}

// Pointer is the parsed form of :POINTER:.
type Pointer struct {
	Kind  core.PointerKind
	X, Y  float64
	Index int
}

// ParsePointer parses [kind, x, y, index?]. Index defaults to -1 (hit-test).
func (p *Parser) ParsePointer(args []string) (Pointer, error) {
	args = clean(args)
	if err := need(args, 3, "down|move|up x y [index]"); err != nil {
		return Pointer{}, err
	}
	kind, ok := pointerKinds[args[0]]
	if !ok {
		return Pointer{}, fmt.Errorf("%w: unknown pointer kind %q", ErrArgs, args[0])
	}
	x, err := parseFloat(args[1], "x")
	if err != nil {
		return Pointer{}, err
	}
	y, err := parseFloat(args[2], "y")
	if err != nil {
		return Pointer{}, err
	}
	ptr := Pointer{Kind: kind, X: x, Y: y, Index: -1}
	if len(args) > 3 && args[3] != "" {
		idx, err := parseIntFromFloat(args[3])
		if err != nil {
			return Pointer{}, fmt.Errorf("%w: index: %w", ErrArgs, err)
		}
		ptr.Index = int(idx)
	}
	return ptr, nil
}
