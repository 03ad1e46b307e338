package keyframe

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"sort"

	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/internal/util"
	"github.com/mapscene/animator/pkg/core"
)

// ErrInsufficientKeyframes is returned when a camera path has fewer than two keyframes.
var ErrInsufficientKeyframes = errors.New("camera path needs at least 2 keyframes")

// EffectSample is an effect active at the sampled time.
type EffectSample struct {
	Effect   core.Effect
	Progress float64
}

// Frame is the complete interpolated state of a scene at one instant.
type Frame struct {
	Time     float64
	Progress float64
	Camera   core.CameraKeyframe
	Actors   []core.Actor
	Effects  []EffectSample
}

// Sample computes the scene state at t seconds. It is pure.
func Sample(s core.Scene, t float64) (Frame, error) {
	if len(s.CameraPath) < 2 {
		return Frame{}, ErrInsufficientKeyframes
	}
	duration := scene.EffectiveDuration(s)
	f := Frame{
		Time:   t,
		Camera: InterpolateCamera(s.CameraPath, t),
	}
	if duration > 0 {
		f.Progress = util.Clamp01(t / duration)
	}
	f.Actors = make([]core.Actor, len(s.Actors))
	for i, a := range s.Actors {
		a.Current = SampleActor(a, t)
		f.Actors[i] = a
	}
	for _, e := range s.Effects {
		if e.Active(t) {
			f.Effects = append(f.Effects, EffectSample{Effect: e, Progress: (t - e.StartTime) / e.Duration})
		}
	}
	return f, nil
}

// Bracket returns indices i, j of the keyframes surrounding t, clamped to the
// path ends. path must be non-empty and ordered by time.
func Bracket(path []core.CameraKeyframe, t float64) (int, int) {
	last := len(path) - 1
	if t <= path[0].Time {
		return 0, 0
	}
	if t >= path[last].Time {
		return last, last
	}
	// first keyframe strictly after t
	j := sort.Search(len(path), func(k int) bool { return path[k].Time > t })
	return j - 1, j
}

// InterpolateCamera linearly interpolates every camera field at t.
func InterpolateCamera(path []core.CameraKeyframe, t float64) core.CameraKeyframe {
	i, j := Bracket(path, t)
	a, b := path[i], path[j]
	f := util.Factor(t, a.Time, b.Time)
	return LerpKeyframe(a, b, f, t)
}

// LerpKeyframe blends a and b component-wise at factor f and stamps time t.
func LerpKeyframe(a, b core.CameraKeyframe, f, t float64) core.CameraKeyframe {
	out := core.CameraKeyframe{
		Time: t,
		Position: core.CameraPosition{
			Lng:  util.Lerp(a.Position.Lng, b.Position.Lng, f),
			Lat:  util.Lerp(a.Position.Lat, b.Position.Lat, f),
			Zoom: util.Lerp(a.Position.Zoom, b.Position.Zoom, f),
		},
		Target: core.CameraTarget{
			Lng:   util.Lerp(a.Target.Lng, b.Target.Lng, f),
			Lat:   util.Lerp(a.Target.Lat, b.Target.Lat, f),
			Pitch: util.Lerp(a.Target.Pitch, b.Target.Pitch, f),
		},
		FOV:     util.Lerp(a.FOV, b.FOV, f),
		Bearing: util.Lerp(a.Bearing, b.Bearing, f),
	}
	switch {
	case a.Direction != nil && b.Direction != nil:
		out.Direction = &core.Vec3{
			X: util.Lerp(a.Direction.X, b.Direction.X, f),
			Y: util.Lerp(a.Direction.Y, b.Direction.Y, f),
			Z: util.Lerp(a.Direction.Z, b.Direction.Z, f),
		}
	case a.Direction != nil:
		d := *a.Direction
		out.Direction = &d
	case b.Direction != nil:
		d := *b.Direction
		out.Direction = &d
	}
	return out
}

// CameraState converts an interpolated keyframe into a host camera. The map
// centers on the target; zoom comes from the position.
func CameraState(kf core.CameraKeyframe) core.CameraState {
	return core.CameraState{
		Center:  core.GeodeticPoint{Lng: kf.Target.Lng, Lat: kf.Target.Lat},
		Zoom:    kf.Position.Zoom,
		Pitch:   kf.Target.Pitch,
		Bearing: kf.Bearing,
		FOV:     kf.FOV,
	}
}

// SampleActor returns the actor transform at t, starting from Base. Animations
// apply in start order; one that has finished holds its final value.
func SampleActor(a core.Actor, t float64) core.Transform {
	tr := a.Base
	tr.Custom = maps.Clone(a.Base.Custom)
	anims := slices.Clone(a.Animations)
	slices.SortStableFunc(anims, func(x, y core.Animation) int {
		return cmp.Compare(x.StartTime, y.StartTime)
	})
	for _, anim := range anims {
		if anim.Duration <= 0 || len(anim.Keyframes) == 0 || t < anim.StartTime {
			continue
		}
		p := 1.0
		if anim.Active(t) {
			p = (t - anim.StartTime) / anim.Duration
		}
		applyAnimation(&tr, anim, p)
	}
	return tr
}

// valueAt interpolates evenly spaced keyframes at progress p. Two keyframes
// are the start and end values.
func valueAt(kfs []core.AnimationValue, p float64) (core.AnimationValue, core.AnimationValue, float64) {
	n := len(kfs)
	if n == 1 {
		return kfs[0], kfs[0], 0
	}
	p = util.Clamp01(p)
	segments := float64(n - 1)
	seg := int(p * segments)
	if seg >= n-1 {
		seg = n - 2
	}
	return kfs[seg], kfs[seg+1], p*segments - float64(seg)
}

func applyAnimation(tr *core.Transform, anim core.Animation, p float64) {
	a, b, f := valueAt(anim.Keyframes, p)
	switch anim.Kind {
	case core.AnimationMove:
		if a.Position == nil || b.Position == nil {
			return
		}
		tr.Position = core.GeodeticPoint{
			Lng: util.Lerp(a.Position.Lng, b.Position.Lng, f),
			Lat: util.Lerp(a.Position.Lat, b.Position.Lat, f),
			Alt: util.Lerp(a.Position.Alt, b.Position.Alt, f),
		}
	case core.AnimationRotate:
		tr.Rotation = util.Lerp(a.Angle, b.Angle, f)
	case core.AnimationScale:
		tr.Scale = util.Lerp(a.Scale, b.Scale, f)
	case core.AnimationCustom:
		if tr.Custom == nil {
			tr.Custom = make(map[string]float64)
		}
		for k, av := range a.Values {
			if bv, ok := b.Values[k]; ok {
				tr.Custom[k] = util.Lerp(av, bv, f)
			}
		}
	}
}
