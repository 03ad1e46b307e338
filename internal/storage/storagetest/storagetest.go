// Package storagetest is the behaviour suite every readable storage.Backend
// runs in its own tests.
package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/pkg/core"
)

// Scene returns a populated scene with the given id and name.
func Scene(id, name string) core.Scene {
	return core.Scene{
		ID:       id,
		Name:     name,
		Duration: 8,
		CameraPath: []core.CameraKeyframe{
			{Time: 0, Position: core.CameraPosition{Lng: 13.40, Lat: 52.52, Zoom: 14}, Target: core.CameraTarget{Lng: 13.40, Lat: 52.52, Pitch: 45}, FOV: 36.87},
			{Time: 8, Position: core.CameraPosition{Lng: 13.45, Lat: 52.53, Zoom: 15}, Target: core.CameraTarget{Lng: 13.45, Lat: 52.53, Pitch: 60}, FOV: 36.87, Bearing: 45},
		},
		Actors: []core.Actor{{
			ID:       "actor-1",
			Name:     "crane",
			Kind:     core.ActorModel,
			ModelURL: "/assets/crane.json",
			Base:     core.Transform{Position: core.GeodeticPoint{Lng: 13.41, Lat: 52.52, Alt: 5}, Scale: 1},
			Current:  core.Transform{Position: core.GeodeticPoint{Lng: 13.41, Lat: 52.52, Alt: 5}, Scale: 1},
			Animations: []core.Animation{{
				ID: "anim-1", Kind: core.AnimationRotate, StartTime: 0, Duration: 8,
				Keyframes: []core.AnimationValue{{Angle: 0}, {Angle: 90}},
			}},
		}},
		Effects: []core.Effect{{ID: "fx-1", Kind: core.EffectWeather, StartTime: 2, Duration: 4, Params: map[string]any{"density": 0.4}}},
	}
}

// Run exercises save, load, list and delete against the backend returned by
// newBackend. The backend is initialized and closed by Run.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Run("save and load", func(t *testing.T) {
		b := open(t, newBackend)
		in := Scene("s-1", "harbour")
		require.NoError(t, b.SaveScene(in))

		out, err := b.LoadScene("s-1")
		require.NoError(t, err)
		assert.Equal(t, in.Name, out.Name)
		assert.Equal(t, in.Duration, out.Duration)
		assert.Equal(t, in.CameraPath, out.CameraPath)
		require.Len(t, out.Actors, 1)
		assert.Equal(t, in.Actors[0].Base, out.Actors[0].Base)
		assert.Equal(t, in.Actors[0].Animations, out.Actors[0].Animations)
		require.Len(t, out.Effects, 1)
		assert.Equal(t, 0.4, out.Effects[0].Params["density"])
	})

	t.Run("save replaces", func(t *testing.T) {
		b := open(t, newBackend)
		s := Scene("s-1", "harbour")
		require.NoError(t, b.SaveScene(s))
		s.Name = "harbour at dusk"
		s.CameraPath = s.CameraPath[:1]
		require.NoError(t, b.SaveScene(s))

		out, err := b.LoadScene("s-1")
		require.NoError(t, err)
		assert.Equal(t, "harbour at dusk", out.Name)
		assert.Len(t, out.CameraPath, 1)

		list, err := b.ListScenes()
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		b := open(t, newBackend)
		s := Scene("s-1", "harbour")
		require.NoError(t, b.SaveScene(s))
		s.CameraPath[0].Time = 99

		out, err := b.LoadScene("s-1")
		require.NoError(t, err)
		assert.Equal(t, 0.0, out.CameraPath[0].Time)
	})

	t.Run("load unknown", func(t *testing.T) {
		b := open(t, newBackend)
		_, err := b.LoadScene("missing")
		require.ErrorIs(t, err, storage.ErrSceneNotFound)
	})

	t.Run("list ordered by name", func(t *testing.T) {
		b := open(t, newBackend)
		require.NoError(t, b.SaveScene(Scene("s-2", "zeppelin")))
		require.NoError(t, b.SaveScene(Scene("s-1", "airport")))
		require.NoError(t, b.SaveScene(Scene("s-3", "airport")))

		list, err := b.ListScenes()
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"s-1", "s-3", "s-2"}, []string{list[0].ID, list[1].ID, list[2].ID})
		assert.Equal(t, core.SceneSummary{ID: "s-1", Name: "airport", Duration: 8, Keyframes: 2, Actors: 1}, list[0])
	})

	t.Run("list empty", func(t *testing.T) {
		b := open(t, newBackend)
		list, err := b.ListScenes()
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("delete", func(t *testing.T) {
		b := open(t, newBackend)
		require.NoError(t, b.SaveScene(Scene("s-1", "harbour")))
		require.NoError(t, b.DeleteScene("s-1"))

		_, err := b.LoadScene("s-1")
		require.ErrorIs(t, err, storage.ErrSceneNotFound)
		require.ErrorIs(t, b.DeleteScene("s-1"), storage.ErrSceneNotFound)

		// saving again after a delete works
		require.NoError(t, b.SaveScene(Scene("s-1", "harbour")))
		_, err = b.LoadScene("s-1")
		require.NoError(t, err)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		b := open(t, newBackend)
		require.Error(t, b.SaveScene(core.Scene{Name: "no id"}))
	})
}

func open(t *testing.T, newBackend func(t *testing.T) storage.Backend) storage.Backend {
	t.Helper()
	b := newBackend(t)
	require.NoError(t, b.Init())
	t.Cleanup(func() { assert.NoError(t, b.Close()) })
	return b
}
