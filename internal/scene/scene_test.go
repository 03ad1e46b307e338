package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/pkg/core"
)

func camAt(lng, lat float64) core.CameraState {
	return core.CameraState{Center: core.GeodeticPoint{Lng: lng, Lat: lat}, Zoom: 15, Pitch: 45, Bearing: 10, FOV: 40}
}

func TestCaptureKeyframe_Appends(t *testing.T) {
	s := New("tour", 0)
	s, err := CaptureKeyframe(s, camAt(1, 2), 0)
	require.NoError(t, err)
	s, err = CaptureKeyframe(s, camAt(3, 4), 5)
	require.NoError(t, err)

	require.Len(t, s.CameraPath, 2)
	kf := s.CameraPath[1]
	assert.Equal(t, 5.0, kf.Time)
	assert.Equal(t, core.CameraPosition{Lng: 3, Lat: 4, Zoom: 15}, kf.Position)
	assert.Equal(t, core.CameraTarget{Lng: 3, Lat: 4, Pitch: 45}, kf.Target)
	assert.Equal(t, 40.0, kf.FOV)
	assert.Equal(t, 10.0, kf.Bearing)
	assert.Equal(t, 5.0, EffectiveDuration(s))
}

func TestCaptureKeyframe_ResortsStable(t *testing.T) {
	s := New("tour", 20)
	var err error
	for _, c := range []struct {
		lng float64
		t   float64
	}{{1, 0}, {2, 10}, {3, 5}, {4, 5}, {5, 2}} {
		s, err = CaptureKeyframe(s, camAt(c.lng, 0), c.t)
		require.NoError(t, err)
	}

	assert.True(t, Ordered(s.CameraPath))
	lngs := make([]float64, len(s.CameraPath))
	for i, kf := range s.CameraPath {
		lngs[i] = kf.Position.Lng
	}
	assert.Equal(t, []float64{1, 5, 3, 4, 2}, lngs)
}

func TestCaptureKeyframe_DoesNotMutateInput(t *testing.T) {
	s, err := CaptureKeyframe(New("a", 0), camAt(1, 1), 3)
	require.NoError(t, err)
	next, err := CaptureKeyframe(s, camAt(2, 2), 1)
	require.NoError(t, err)

	assert.Len(t, s.CameraPath, 1)
	assert.Equal(t, 1.0, s.CameraPath[0].Position.Lng)
	assert.Len(t, next.CameraPath, 2)
}

func TestCaptureKeyframe_UsesEye(t *testing.T) {
	cam := camAt(10, 10)
	cam.Eye = &core.GeodeticPoint{Lng: 9.9, Lat: 9.95, Alt: 400}
	cam.FOV = 0
	s, err := CaptureKeyframe(New("a", 0), cam, 0)
	require.NoError(t, err)

	kf := s.CameraPath[0]
	assert.Equal(t, 9.9, kf.Position.Lng)
	assert.Equal(t, 10.0, kf.Target.Lng)
	assert.Equal(t, DefaultFOV, kf.FOV)
}

func TestCaptureKeyframe_Rejects(t *testing.T) {
	_, err := CaptureKeyframe(New("a", 0), camAt(0, 0), -1)
	assert.Error(t, err)
	_, err = CaptureKeyframe(New("a", 0), camAt(500, 0), 1)
	assert.Error(t, err)
}

func TestMoveAndRemoveKeyframe(t *testing.T) {
	s, _ := CaptureKeyframe(New("a", 0), camAt(0, 0), 0)
	s, _ = CaptureKeyframe(s, camAt(1, 1), 4)

	moved, err := MoveKeyframe(s, 1, core.GeodeticPoint{Lng: 2, Lat: 3})
	require.NoError(t, err)
	assert.Equal(t, 4.0, moved.CameraPath[1].Time)
	assert.Equal(t, 2.0, moved.CameraPath[1].Position.Lng)
	assert.Equal(t, 1.0, s.CameraPath[1].Position.Lng)

	_, err = MoveKeyframe(s, 7, core.GeodeticPoint{})
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := RemoveKeyframe(s, 0)
	require.NoError(t, err)
	require.Len(t, removed.CameraPath, 1)
	assert.Equal(t, 4.0, removed.CameraPath[0].Time)
}

func TestActorsAnimationsEffects(t *testing.T) {
	s := New("a", 10)
	s, actor, err := AddActor(s, core.Actor{Name: "tower", Kind: core.ActorBuilding, Base: core.Transform{Position: core.GeodeticPoint{Lng: 1, Lat: 1}}})
	require.NoError(t, err)
	assert.NotEmpty(t, actor.ID)
	assert.Equal(t, 1.0, actor.Base.Scale)
	assert.Equal(t, actor.Base, actor.Current)

	anim := core.Animation{StartTime: 0, Duration: 2, Kind: core.AnimationRotate, Keyframes: []core.AnimationValue{{Angle: 0}, {Angle: 90}}}
	s, err = AddAnimation(s, actor.ID, anim)
	require.NoError(t, err)
	require.Len(t, s.Actors[0].Animations, 1)
	assert.NotEmpty(t, s.Actors[0].Animations[0].ID)

	_, err = AddAnimation(s, "nobody", anim)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = AddAnimation(s, actor.ID, core.Animation{Duration: 1, Keyframes: []core.AnimationValue{{}}})
	assert.Error(t, err)

	s, err = AddEffect(s, core.Effect{Kind: core.EffectLight, StartTime: 1, Duration: 3})
	require.NoError(t, err)
	assert.Len(t, s.Effects, 1)
	_, err = AddEffect(s, core.Effect{Kind: core.EffectLight})
	assert.Error(t, err)

	s.Actors[0].Current.Rotation = 45
	reset := ResetActors(s)
	assert.Equal(t, 0.0, reset.Actors[0].Current.Rotation)
	assert.Equal(t, 45.0, s.Actors[0].Current.Rotation)
}

func TestContext(t *testing.T) {
	c := NewContext()
	_, ok := c.Current()
	assert.False(t, ok)

	a := New("a", 5)
	b := New("b", 0)
	c.Put(a)
	c.Put(b)
	assert.ErrorIs(t, c.Select("missing"), ErrNotFound)
	require.NoError(t, c.Select(b.ID))

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.Name)

	updated, err := c.UpdateCurrent(func(s core.Scene) (core.Scene, error) {
		return CaptureKeyframe(s, camAt(1, 1), 2)
	})
	require.NoError(t, err)
	assert.Len(t, updated.CameraPath, 1)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, 1, list[1].Keyframes)
	assert.Equal(t, 2.0, list[1].Duration)

	c.Remove(b.ID)
	assert.Empty(t, c.CurrentID())
	assert.Len(t, c.List(), 1)
}
