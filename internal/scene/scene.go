// Package scene holds scene data operations. Every function returns a new
// Scene and leaves its input untouched.
package scene

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/pkg/core"
)

// ErrNotFound is returned for unknown scene, actor or keyframe references.
var ErrNotFound = errors.New("not found")

// DefaultFOV is used for keyframes captured from a host that reports none.
const DefaultFOV = 36.87

// New creates an empty scene.
func New(name string, duration float64) core.Scene {
	return core.Scene{
		ID:       uuid.NewString(),
		Name:     name,
		Duration: duration,
	}
}

// Clone deep-copies the parts of s that operations mutate.
func Clone(s core.Scene) core.Scene {
	out := s
	out.CameraPath = slices.Clone(s.CameraPath)
	out.Actors = make([]core.Actor, len(s.Actors))
	for i, a := range s.Actors {
		a.Animations = slices.Clone(a.Animations)
		out.Actors[i] = a
	}
	out.Effects = slices.Clone(s.Effects)
	return out
}

// EffectiveDuration is the playback length: Duration, or the last keyframe
// time when Duration is not set.
func EffectiveDuration(s core.Scene) float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	if n := len(s.CameraPath); n > 0 {
		return s.CameraPath[n-1].Time
	}
	return 0
}

// KeyframeFromCamera builds a keyframe at t from a host camera snapshot. The
// position is the free camera eye when the host has one, else the map center.
func KeyframeFromCamera(camera core.CameraState, t float64) core.CameraKeyframe {
	pos := camera.Center
	if camera.Eye != nil {
		pos = *camera.Eye
	}
	fov := camera.FOV
	if fov <= 0 {
		fov = DefaultFOV
	}
	return core.CameraKeyframe{
		Time:     t,
		Position: core.CameraPosition{Lng: pos.Lng, Lat: pos.Lat, Zoom: camera.Zoom},
		Target:   core.CameraTarget{Lng: camera.Center.Lng, Lat: camera.Center.Lat, Pitch: camera.Pitch},
		FOV:      fov,
		Bearing:  camera.Bearing,
	}
}

// CaptureKeyframe appends a keyframe built from camera at time t. When t is
// earlier than the last keyframe the path is re-sorted; keyframes with equal
// times keep insertion order.
func CaptureKeyframe(s core.Scene, camera core.CameraState, t float64) (core.Scene, error) {
	if t < 0 {
		return s, fmt.Errorf("keyframe time must be >= 0, got %f", t)
	}
	if err := geo.Validate(core.GeodeticPoint{Lng: camera.Center.Lng, Lat: camera.Center.Lat}); err != nil {
		return s, fmt.Errorf("capturing keyframe: %w", err)
	}
	out := Clone(s)
	kf := KeyframeFromCamera(camera, t)
	n := len(out.CameraPath)
	out.CameraPath = append(out.CameraPath, kf)
	if n > 0 && t < out.CameraPath[n-1].Time {
		SortKeyframes(out.CameraPath)
	}
	return out, nil
}

// SortKeyframes stable-sorts keyframes by time.
func SortKeyframes(path []core.CameraKeyframe) {
	slices.SortStableFunc(path, byTime)
}

func byTime(a, b core.CameraKeyframe) int {
	return cmp.Compare(a.Time, b.Time)
}

// Ordered reports whether keyframe times are non-decreasing.
func Ordered(path []core.CameraKeyframe) bool {
	return slices.IsSortedFunc(path, byTime)
}

// MoveKeyframe sets the position of keyframe index, keeping its time.
func MoveKeyframe(s core.Scene, index int, p core.GeodeticPoint) (core.Scene, error) {
	if index < 0 || index >= len(s.CameraPath) {
		return s, fmt.Errorf("%w: keyframe %d", ErrNotFound, index)
	}
	if err := geo.Validate(p); err != nil {
		return s, err
	}
	out := Clone(s)
	out.CameraPath[index].Position.Lng = p.Lng
	out.CameraPath[index].Position.Lat = p.Lat
	return out, nil
}

// RemoveKeyframe drops keyframe index.
func RemoveKeyframe(s core.Scene, index int) (core.Scene, error) {
	if index < 0 || index >= len(s.CameraPath) {
		return s, fmt.Errorf("%w: keyframe %d", ErrNotFound, index)
	}
	out := Clone(s)
	out.CameraPath = slices.Delete(out.CameraPath, index, index+1)
	return out, nil
}

// AddActor appends an actor. Current starts at Base; a missing id is generated.
func AddActor(s core.Scene, a core.Actor) (core.Scene, core.Actor, error) {
	if err := geo.Validate(a.Base.Position); err != nil {
		return s, a, fmt.Errorf("actor %q: %w", a.Name, err)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Base.Scale == 0 {
		a.Base.Scale = 1
	}
	a.Current = a.Base
	out := Clone(s)
	out.Actors = append(out.Actors, a)
	return out, a, nil
}

// AddAnimation attaches an animation to actor actorID.
func AddAnimation(s core.Scene, actorID string, anim core.Animation) (core.Scene, error) {
	idx := slices.IndexFunc(s.Actors, func(a core.Actor) bool { return a.ID == actorID })
	if idx < 0 {
		return s, fmt.Errorf("%w: actor %s", ErrNotFound, actorID)
	}
	if anim.Duration <= 0 {
		return s, fmt.Errorf("animation duration must be > 0, got %f", anim.Duration)
	}
	if len(anim.Keyframes) < 2 {
		return s, fmt.Errorf("animation needs at least 2 keyframes, got %d", len(anim.Keyframes))
	}
	if anim.ID == "" {
		anim.ID = uuid.NewString()
	}
	out := Clone(s)
	out.Actors[idx].Animations = append(out.Actors[idx].Animations, anim)
	return out, nil
}

// AddEffect appends an effect.
func AddEffect(s core.Scene, e core.Effect) (core.Scene, error) {
	if e.Duration <= 0 {
		return s, fmt.Errorf("effect duration must be > 0, got %f", e.Duration)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	out := Clone(s)
	out.Effects = append(out.Effects, e)
	return out, nil
}

// ResetActors sets every actor's Current transform back to Base.
func ResetActors(s core.Scene) core.Scene {
	out := Clone(s)
	for i := range out.Actors {
		out.Actors[i].Current = out.Actors[i].Base
	}
	return out
}

// Summarize builds the listing view of s.
func Summarize(s core.Scene) core.SceneSummary {
	return core.SceneSummary{
		ID:        s.ID,
		Name:      s.Name,
		Duration:  EffectiveDuration(s),
		Keyframes: len(s.CameraPath),
		Actors:    len(s.Actors),
	}
}

// CameraPoints returns the keyframe positions as geodetic points.
func CameraPoints(s core.Scene) []core.GeodeticPoint {
	out := make([]core.GeodeticPoint, len(s.CameraPath))
	for i, kf := range s.CameraPath {
		out[i] = core.GeodeticPoint{Lng: kf.Position.Lng, Lat: kf.Position.Lat}
	}
	return out
}
